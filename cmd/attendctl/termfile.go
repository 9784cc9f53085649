package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"schoolhub/attendance/internal/calendar"
)

// termFile is the YAML definition pushed by "calendar push":
//
//	session: 0f8c...
//	from: 2025-09-01
//	to: 2025-12-12
//	exclude_weekends: true
//	holidays:
//	  2025-10-09: Independence Day
//	recurring_holidays:
//	  - rule: FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25
//	    label: Christmas
//	ics_feed: public-holidays.ics
type termFile struct {
	Session       string `yaml:"session" validate:"required,uuid"`
	calendar.Term `yaml:",inline"`
	ICSFeed       string `yaml:"ics_feed,omitempty"`

	dir string
}

func loadTermFile(path string) (*termFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf termFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validator.New().Struct(&tf); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	if tf.From.IsZero() || tf.To.IsZero() {
		return nil, fmt.Errorf("invalid %s: %w", path, calendar.ErrMissingBound)
	}
	tf.dir = filepath.Dir(path)
	return &tf, nil
}

// entries builds the calendar. ICS holidays win over the file's own.
func (tf *termFile) entries() ([]calendar.CalendarDate, error) {
	var extra []calendar.HolidayMap
	if tf.ICSFeed != "" {
		feed := tf.ICSFeed
		if !filepath.IsAbs(feed) {
			feed = filepath.Join(tf.dir, feed)
		}
		f, err := os.Open(feed)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		holidays, err := calendar.HolidaysFromICS(f, tf.From, tf.To)
		if err != nil {
			return nil, err
		}
		extra = append(extra, holidays)
	}
	b, err := tf.Build(extra...)
	if err != nil {
		return nil, err
	}
	entries := b.Entries()
	if len(entries) == 0 {
		return nil, calendar.ErrEmptyCalendar
	}
	return entries, nil
}
