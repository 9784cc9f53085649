package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultHolidayLabel is applied to holidays submitted without a label.
const DefaultHolidayLabel = "Holiday"

var (
	ErrNotHoliday    = errors.New("date is not a holiday")
	ErrDuplicateDate = errors.New("date listed more than once")
	ErrLabelOnSchool = errors.New("school day cannot carry a holiday label")
	ErrEmptyCalendar = errors.New("calendar has no dates")
)

type Classification int

const (
	Unselected Classification = iota
	SchoolDay
	Holiday
)

func (c Classification) String() string {
	switch c {
	case SchoolDay:
		return "school_day"
	case Holiday:
		return "holiday"
	default:
		return "unselected"
	}
}

// Classifier answers how a date is classified. Builders and persisted
// calendars both satisfy it.
type Classifier interface {
	Classify(d Date) Classification
	HolidayLabel(d Date) string
}

// CalendarDate is one persisted row of an attendance calendar.
type CalendarDate struct {
	Date         Date    `json:"date"`
	IsSchoolDay  bool    `json:"is_school_day"`
	HolidayLabel *string `json:"holiday_label"`
}

// HolidayMap maps a date to its holiday label. It is derived from calendar
// entries and never owned independently.
type HolidayMap map[Date]string

// Builder is the editable working copy of one session's calendar. A date is in
// at most one of schoolDays and holidays.
type Builder struct {
	schoolDays map[Date]struct{}
	holidays   HolidayMap
}

func NewBuilder() *Builder {
	return &Builder{
		schoolDays: make(map[Date]struct{}),
		holidays:   make(HolidayMap),
	}
}

// FromEntries loads a builder from stored entries, for editing.
func FromEntries(entries []CalendarDate) (*Builder, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}
	b := NewBuilder()
	for _, entry := range entries {
		if entry.IsSchoolDay {
			b.schoolDays[entry.Date] = struct{}{}
			continue
		}
		label := ""
		if entry.HolidayLabel != nil {
			label = *entry.HolidayLabel
		}
		b.holidays[entry.Date] = label
	}
	return b, nil
}

func (b *Builder) Classify(d Date) Classification {
	if _, ok := b.schoolDays[d]; ok {
		return SchoolDay
	}
	if _, ok := b.holidays[d]; ok {
		return Holiday
	}
	return Unselected
}

func (b *Builder) HolidayLabel(d Date) string {
	label, ok := b.holidays[d]
	if !ok {
		return ""
	}
	if strings.TrimSpace(label) == "" {
		return DefaultHolidayLabel
	}
	return label
}

// Toggle advances d one step through unselected, school day, holiday and back
// to unselected, and returns the new classification. A holiday created here
// has no label.
func (b *Builder) Toggle(d Date) Classification {
	switch b.Classify(d) {
	case SchoolDay:
		delete(b.schoolDays, d)
		b.holidays[d] = ""
		return Holiday
	case Holiday:
		delete(b.holidays, d)
		return Unselected
	default:
		b.schoolDays[d] = struct{}{}
		return SchoolDay
	}
}

// SetLabel sets the free-text label of an existing holiday.
func (b *Builder) SetLabel(d Date, label string) error {
	if _, ok := b.holidays[d]; !ok {
		return fmt.Errorf("%s: %w", d, ErrNotHoliday)
	}
	b.holidays[d] = strings.TrimSpace(label)
	return nil
}

// MarkHoliday classifies d as a holiday directly, overriding any school day.
// Used by imports where the label is already known.
func (b *Builder) MarkHoliday(d Date, label string) {
	delete(b.schoolDays, d)
	b.holidays[d] = strings.TrimSpace(label)
}

// Populate replaces the school-day set with the generated range. Manual
// school-day edits are discarded. Holidays inside the range stay holidays;
// holidays outside it are dropped.
func (b *Builder) Populate(from, to Date, excludeWeekends bool) error {
	dates, err := GenerateRange(from, to, excludeWeekends)
	if err != nil {
		return err
	}
	for d := range b.holidays {
		if d.Before(from) || d.After(to) {
			delete(b.holidays, d)
		}
	}
	b.schoolDays = make(map[Date]struct{}, len(dates))
	for _, d := range dates {
		if _, isHoliday := b.holidays[d]; isHoliday {
			continue
		}
		b.schoolDays[d] = struct{}{}
	}
	return nil
}

func (b *Builder) SchoolDays() []Date {
	out := make([]Date, 0, len(b.schoolDays))
	for d := range b.schoolDays {
		out = append(out, d)
	}
	sortDates(out)
	return out
}

// Holidays returns a copy of the holiday map with raw (possibly empty) labels.
func (b *Builder) Holidays() HolidayMap {
	out := make(HolidayMap, len(b.holidays))
	for d, label := range b.holidays {
		out[d] = label
	}
	return out
}

// Bounds returns the first and last classified dates.
func (b *Builder) Bounds() (Date, Date, bool) {
	entries := b.Entries()
	if len(entries) == 0 {
		return Date{}, Date{}, false
	}
	return entries[0].Date, entries[len(entries)-1].Date, true
}

// Entries is the submit payload: every classified date ascending, with empty
// holiday labels defaulted.
func (b *Builder) Entries() []CalendarDate {
	out := make([]CalendarDate, 0, len(b.schoolDays)+len(b.holidays))
	for d := range b.schoolDays {
		out = append(out, CalendarDate{Date: d, IsSchoolDay: true})
	}
	for d := range b.holidays {
		label := b.HolidayLabel(d)
		out = append(out, CalendarDate{Date: d, HolidayLabel: &label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Validate checks a submitted calendar: one entry per date and labels only on
// holidays.
func Validate(entries []CalendarDate) error {
	if len(entries) == 0 {
		return ErrEmptyCalendar
	}
	seen := make(map[Date]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Date.IsZero() {
			return ErrInvalidDate
		}
		if _, dup := seen[entry.Date]; dup {
			return fmt.Errorf("%s: %w", entry.Date, ErrDuplicateDate)
		}
		seen[entry.Date] = struct{}{}
		if entry.IsSchoolDay && entry.HolidayLabel != nil && *entry.HolidayLabel != "" {
			return fmt.Errorf("%s: %w", entry.Date, ErrLabelOnSchool)
		}
	}
	return nil
}

// Normalize sorts entries and applies the default holiday label. It does not
// validate.
func Normalize(entries []CalendarDate) []CalendarDate {
	out := make([]CalendarDate, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].IsSchoolDay {
			out[i].HolidayLabel = nil
			continue
		}
		if out[i].HolidayLabel == nil || strings.TrimSpace(*out[i].HolidayLabel) == "" {
			label := DefaultHolidayLabel
			out[i].HolidayLabel = &label
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Lookup is a read-only classifier over persisted entries.
type Lookup struct {
	days HolidayMap
	set  map[Date]bool
}

func NewLookup(entries []CalendarDate) *Lookup {
	l := &Lookup{days: make(HolidayMap), set: make(map[Date]bool, len(entries))}
	for _, entry := range entries {
		l.set[entry.Date] = entry.IsSchoolDay
		if !entry.IsSchoolDay {
			label := DefaultHolidayLabel
			if entry.HolidayLabel != nil && strings.TrimSpace(*entry.HolidayLabel) != "" {
				label = *entry.HolidayLabel
			}
			l.days[entry.Date] = label
		}
	}
	return l
}

func (l *Lookup) Classify(d Date) Classification {
	school, ok := l.set[d]
	switch {
	case !ok:
		return Unselected
	case school:
		return SchoolDay
	default:
		return Holiday
	}
}

func (l *Lookup) HolidayLabel(d Date) string {
	return l.days[d]
}

func (l *Lookup) HolidayMap() HolidayMap {
	out := make(HolidayMap, len(l.days))
	for d, label := range l.days {
		out[d] = label
	}
	return out
}

// SchoolDaysBetween lists the school days in [from, to], ascending.
func (l *Lookup) SchoolDaysBetween(from, to Date) []Date {
	out := make([]Date, 0)
	for d, school := range l.set {
		if school && !d.Before(from) && !d.After(to) {
			out = append(out, d)
		}
	}
	sortDates(out)
	return out
}

func sortDates(dates []Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}
