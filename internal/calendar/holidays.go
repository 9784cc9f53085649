package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

const (
	maxOccurrencesPerRule = 1000
	// maxRuleSteps bounds how far a rule is walked from DTSTART, matches or not.
	maxRuleSteps = 100000
)

var ErrInvalidRule = errors.New("invalid recurrence rule")

// RecurringHoliday is a holiday that repeats by RRULE, for example
// "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25".
type RecurringHoliday struct {
	Rule  string `json:"rule" yaml:"rule" validate:"required"`
	Label string `json:"label" yaml:"label"`
}

// ExpandRecurringHolidays returns the holidays every rule produces inside
// [from, to]. Later rules win when two land on the same date.
func ExpandRecurringHolidays(rules []RecurringHoliday, from, to Date) (HolidayMap, error) {
	if from.IsZero() || to.IsZero() {
		return nil, ErrMissingBound
	}
	out := make(HolidayMap)
	if to.Before(from) {
		return out, nil
	}
	start := from.In(time.UTC)
	end := to.In(time.UTC)
	for _, rule := range rules {
		r, err := parseRule(rule.Rule)
		if err != nil {
			return nil, err
		}
		r.DTStart(start)
		for _, occ := range occurrences(r, start, end) {
			out[DateOf(occ)] = strings.TrimSpace(rule.Label)
		}
	}
	return out, nil
}

// parseRule accepts day-granular rules only. Holidays are whole days, and
// HOURLY or finer rules would produce thousands of occurrences per day.
func parseRule(value string) (*rrule.RRule, error) {
	r, err := rrule.StrToRRule(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidRule, value, err)
	}
	if r.OrigOptions.Freq > rrule.DAILY {
		return nil, fmt.Errorf("%w %q: frequency finer than daily", ErrInvalidRule, value)
	}
	return r, nil
}

// occurrences walks r lazily and returns at most maxOccurrencesPerRule
// occurrences inside [start, end].
func occurrences(r *rrule.RRule, start, end time.Time) []time.Time {
	var out []time.Time
	next := r.Iterator()
	for steps := 0; steps < maxRuleSteps && len(out) < maxOccurrencesPerRule; steps++ {
		occ, ok := next()
		if !ok || occ.After(end) {
			break
		}
		if occ.Before(start) {
			continue
		}
		out = append(out, occ)
	}
	return out
}

// HolidaysFromICS reads all-day VEVENTs from an iCalendar feed and returns the
// holidays that fall inside [from, to]. Multi-day events cover every day up to
// their exclusive DTEND; recurring events are expanded.
func HolidaysFromICS(r io.Reader, from, to Date) (HolidayMap, error) {
	if from.IsZero() || to.IsZero() {
		return nil, ErrMissingBound
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}
	out := make(HolidayMap)
	for _, ev := range cal.Events() {
		start, ok := icsDate(ev.GetProperty(ical.ComponentPropertyDtStart))
		if !ok {
			continue
		}
		span := 1
		if end, ok := icsDate(ev.GetProperty(ical.ComponentPropertyDtEnd)); ok && end.After(start) {
			span = start.DaysUntil(end)
		}
		label := ""
		if p := ev.GetProperty(ical.ComponentPropertySummary); p != nil {
			label = strings.TrimSpace(p.Value)
		}

		starts := []Date{start}
		if p := ev.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
			rule, err := parseRule(p.Value)
			if err != nil {
				return nil, err
			}
			rule.DTStart(start.In(time.UTC))
			starts = starts[:0]
			// shift the window back so multi-day occurrences starting before
			// from still contribute their in-range days
			windowStart := from.AddDays(-(span - 1)).In(time.UTC)
			for _, occ := range occurrences(rule, windowStart, to.In(time.UTC)) {
				starts = append(starts, DateOf(occ))
			}
		}

		for _, s := range starts {
			first, last := max(0, s.DaysUntil(from)), min(span-1, s.DaysUntil(to))
			for i := first; i <= last; i++ {
				out[s.AddDays(i)] = label
			}
		}
	}
	return out, nil
}

// icsDate reads the calendar day of a DTSTART/DTEND property. Date-times are
// taken in their own zone, or UTC when suffixed with Z.
func icsDate(prop *ical.IANAProperty) (Date, bool) {
	if prop == nil {
		return Date{}, false
	}
	value := strings.TrimSpace(prop.Value)
	if len(value) < 8 {
		return Date{}, false
	}
	loc := time.UTC
	if tzs, ok := prop.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(tzs[0]); err == nil {
			loc = l
		}
	}
	if strings.Contains(value, "T") && !strings.HasSuffix(value, "Z") {
		t, err := time.ParseInLocation("20060102T150405", value, loc)
		if err != nil {
			return Date{}, false
		}
		return DateOf(t), true
	}
	t, err := time.Parse("20060102", value[:8])
	if err != nil {
		return Date{}, false
	}
	return DateOf(t), true
}

// ExportICS renders the holidays of a calendar as all-day events.
func ExportICS(name string, entries []CalendarDate) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//schoolhub//attendance calendar//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}
	stamp := time.Now().UTC()
	for _, entry := range Normalize(entries) {
		if entry.IsSchoolDay {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("%s-%s@schoolhub", entry.Date, slug(name)))
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(entry.Date.In(time.UTC))
		event.SetAllDayEndAt(entry.Date.AddDays(1).In(time.UTC))
		event.SetSummary(*entry.HolidayLabel)
	}
	return cal.Serialize()
}

func slug(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "calendar"
	}
	return strings.Join(strings.Fields(value), "-")
}
