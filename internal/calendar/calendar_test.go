package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, value string) Date {
	t.Helper()
	d, err := ParseDate(value)
	require.NoError(t, err)
	return d
}

func TestParseDate(t *testing.T) {
	d := mustDate(t, "2024-02-29")
	assert.Equal(t, NewDate(2024, time.February, 29), d)
	assert.Equal(t, "2024-02-29", d.String())

	for _, bad := range []string{"", "2025-9-1", "2025/09/01", "2025-13-01", "2025-02-29", "01-09-2025", "2025-09-01T00:00:00Z"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, bad)
	}
}

func TestFormatDateRoundTripAcrossZones(t *testing.T) {
	zones := []string{"UTC", "America/Los_Angeles", "Asia/Kolkata", "Pacific/Kiritimati", "Pacific/Pago_Pago"}
	for _, name := range zones {
		loc, err := time.LoadLocation(name)
		if err != nil {
			t.Skipf("zone %s unavailable: %v", name, err)
		}
		for _, instant := range []time.Time{
			time.Date(2025, 9, 1, 0, 0, 0, 0, loc),
			time.Date(2025, 3, 30, 23, 30, 0, 0, loc),
			time.Date(2024, 12, 31, 12, 0, 0, 0, loc),
		} {
			formatted := FormatDate(instant)
			parsed, err := ParseDate(formatted)
			require.NoError(t, err)
			midnight := parsed.In(loc)
			assert.Equal(t, formatted, FormatDate(midnight), name)
			assert.Equal(t, DateOf(instant), DateOf(midnight), name)
		}
	}
}

func TestGenerateRangeContiguous(t *testing.T) {
	from := mustDate(t, "2025-02-20")
	to := mustDate(t, "2025-03-10")
	dates, err := GenerateRange(from, to, false)
	require.NoError(t, err)
	require.Len(t, dates, from.DaysUntil(to)+1)
	assert.Equal(t, from, dates[0])
	assert.Equal(t, to, dates[len(dates)-1])
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, dates[i-1].AddDays(1), dates[i])
	}
}

func TestGenerateRangeExcludesWeekends(t *testing.T) {
	dates, err := GenerateRange(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-07"), true)
	require.NoError(t, err)
	got := make([]string, 0, len(dates))
	for _, d := range dates {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2025-09-01", "2025-09-02", "2025-09-03", "2025-09-04", "2025-09-05"}, got)

	long, err := GenerateRange(mustDate(t, "2025-01-01"), mustDate(t, "2025-12-31"), true)
	require.NoError(t, err)
	for _, d := range long {
		assert.False(t, d.IsWeekend(), d.String())
	}
}

func TestGenerateRangeBounds(t *testing.T) {
	_, err := GenerateRange(Date{}, mustDate(t, "2025-09-07"), false)
	assert.ErrorIs(t, err, ErrMissingBound)
	_, err = GenerateRange(mustDate(t, "2025-09-07"), Date{}, true)
	assert.ErrorIs(t, err, ErrMissingBound)

	dates, err := GenerateRange(mustDate(t, "2025-09-07"), mustDate(t, "2025-09-01"), false)
	require.NoError(t, err)
	assert.Empty(t, dates)

	single, err := GenerateRange(mustDate(t, "2025-09-06"), mustDate(t, "2025-09-06"), true)
	require.NoError(t, err)
	assert.Empty(t, single)
}

func TestToggleCyclesThreeStates(t *testing.T) {
	b := NewBuilder()
	d := mustDate(t, "2025-09-03")

	assert.Equal(t, Unselected, b.Classify(d))
	assert.Equal(t, SchoolDay, b.Toggle(d))
	assert.Equal(t, Holiday, b.Toggle(d))
	assert.Equal(t, DefaultHolidayLabel, b.HolidayLabel(d))
	assert.Equal(t, Unselected, b.Toggle(d))

	require.NoError(t, b.Populate(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-05"), true))
	for _, start := range []Classification{SchoolDay, Holiday, Unselected} {
		day := mustDate(t, "2025-09-02")
		for b.Classify(day) != start {
			b.Toggle(day)
		}
		b.Toggle(day)
		b.Toggle(day)
		b.Toggle(day)
		assert.Equal(t, start, b.Classify(day))
	}
}

func TestSetLabel(t *testing.T) {
	b := NewBuilder()
	d := mustDate(t, "2025-12-25")
	assert.ErrorIs(t, b.SetLabel(d, "Christmas"), ErrNotHoliday)

	b.Toggle(d)
	b.Toggle(d)
	require.NoError(t, b.SetLabel(d, "  Christmas "))
	assert.Equal(t, "Christmas", b.HolidayLabel(d))
}

func TestPopulateReplacesSchoolDaysKeepsHolidays(t *testing.T) {
	b := NewBuilder()
	manual := mustDate(t, "2025-08-30")
	b.Toggle(manual)

	holiday := mustDate(t, "2025-09-03")
	b.MarkHoliday(holiday, "Founders Day")
	outside := mustDate(t, "2025-10-01")
	b.MarkHoliday(outside, "Later")

	require.NoError(t, b.Populate(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-07"), true))

	assert.Equal(t, Unselected, b.Classify(manual))
	assert.Equal(t, Holiday, b.Classify(holiday))
	assert.Equal(t, "Founders Day", b.HolidayLabel(holiday))
	assert.Equal(t, Unselected, b.Classify(outside))
	assert.Len(t, b.SchoolDays(), 4)

	for _, entry := range b.Entries() {
		if entry.IsSchoolDay {
			_, isHoliday := b.Holidays()[entry.Date]
			assert.False(t, isHoliday, entry.Date.String())
		}
	}
}

func TestEntriesDefaultLabelAndRoundTrip(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Populate(mustDate(t, "2025-09-01"), mustDate(t, "2025-09-05"), false))
	b.Toggle(mustDate(t, "2025-09-02"))

	entries := b.Entries()
	require.Len(t, entries, 5)
	require.NoError(t, Validate(entries))
	assert.False(t, entries[1].IsSchoolDay)
	require.NotNil(t, entries[1].HolidayLabel)
	assert.Equal(t, DefaultHolidayLabel, *entries[1].HolidayLabel)

	rebuilt, err := FromEntries(entries)
	require.NoError(t, err)
	assert.Equal(t, entries, rebuilt.Entries())

	from, to, ok := rebuilt.Bounds()
	require.True(t, ok)
	assert.Equal(t, "2025-09-01", from.String())
	assert.Equal(t, "2025-09-05", to.String())
}

func TestValidate(t *testing.T) {
	label := "Holiday"
	d := mustDate(t, "2025-09-01")
	assert.ErrorIs(t, Validate(nil), ErrEmptyCalendar)
	assert.ErrorIs(t, Validate([]CalendarDate{{Date: d, IsSchoolDay: true}, {Date: d}}), ErrDuplicateDate)
	assert.ErrorIs(t, Validate([]CalendarDate{{Date: d, IsSchoolDay: true, HolidayLabel: &label}}), ErrLabelOnSchool)
	assert.ErrorIs(t, Validate([]CalendarDate{{IsSchoolDay: true}}), ErrInvalidDate)
}

func TestLookup(t *testing.T) {
	empty := ""
	lookup := NewLookup([]CalendarDate{
		{Date: mustDate(t, "2025-09-01"), IsSchoolDay: true},
		{Date: mustDate(t, "2025-09-02"), HolidayLabel: &empty},
		{Date: mustDate(t, "2025-09-03"), IsSchoolDay: true},
	})
	assert.Equal(t, SchoolDay, lookup.Classify(mustDate(t, "2025-09-01")))
	assert.Equal(t, Holiday, lookup.Classify(mustDate(t, "2025-09-02")))
	assert.Equal(t, DefaultHolidayLabel, lookup.HolidayLabel(mustDate(t, "2025-09-02")))
	assert.Equal(t, Unselected, lookup.Classify(mustDate(t, "2025-09-04")))
	assert.Equal(t, []Date{mustDate(t, "2025-09-01"), mustDate(t, "2025-09-03")},
		lookup.SchoolDaysBetween(mustDate(t, "2025-08-01"), mustDate(t, "2025-09-30")))
}

func TestExpandRecurringHolidays(t *testing.T) {
	holidays, err := ExpandRecurringHolidays([]RecurringHoliday{
		{Rule: "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25", Label: "Christmas"},
		{Rule: "FREQ=YEARLY;BYMONTH=1;BYMONTHDAY=1", Label: "New Year"},
	}, mustDate(t, "2025-09-01"), mustDate(t, "2026-08-31"))
	require.NoError(t, err)
	assert.Equal(t, HolidayMap{
		mustDate(t, "2025-12-25"): "Christmas",
		mustDate(t, "2026-01-01"): "New Year",
	}, holidays)

	_, err = ExpandRecurringHolidays([]RecurringHoliday{{Rule: "FREQ=NEVER"}}, mustDate(t, "2025-09-01"), mustDate(t, "2025-09-30"))
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestExpandRecurringHolidaysRejectsSubDailyRules(t *testing.T) {
	for _, rule := range []string{"FREQ=SECONDLY", "FREQ=MINUTELY", "FREQ=HOURLY;INTERVAL=24"} {
		_, err := ExpandRecurringHolidays([]RecurringHoliday{{Rule: rule}}, mustDate(t, "2025-09-01"), mustDate(t, "2026-09-30"))
		assert.ErrorIs(t, err, ErrInvalidRule, rule)
	}
}

func TestExpandRecurringHolidaysCapsOccurrences(t *testing.T) {
	from := mustDate(t, "2025-01-01")
	holidays, err := ExpandRecurringHolidays([]RecurringHoliday{{Rule: "FREQ=DAILY", Label: "Daily"}}, from, from.AddDays(4000))
	require.NoError(t, err)
	assert.Len(t, holidays, maxOccurrencesPerRule)
	assert.Equal(t, "Daily", holidays[from])
	_, past := holidays[from.AddDays(maxOccurrencesPerRule)]
	assert.False(t, past)
}

func TestHolidaysFromICSRejectsSubDailyRules(t *testing.T) {
	feed := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//holidays//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:noisy@test\r\n" +
		"DTSTAMP:20250101T000000Z\r\n" +
		"DTSTART;VALUE=DATE:20250901\r\n" +
		"RRULE:FREQ=SECONDLY\r\n" +
		"SUMMARY:Noise\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	_, err := HolidaysFromICS(strings.NewReader(feed), mustDate(t, "2025-09-01"), mustDate(t, "2025-09-30"))
	assert.ErrorIs(t, err, ErrInvalidRule)
}

const holidayFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//holidays//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:midterm@test\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20251027\r\n" +
	"DTEND;VALUE=DATE:20251030\r\n" +
	"SUMMARY:Mid-term break\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:heroes@test\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20200609\r\n" +
	"RRULE:FREQ=YEARLY\r\n" +
	"SUMMARY:Heroes Day\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestHolidaysFromICS(t *testing.T) {
	holidays, err := HolidaysFromICS(strings.NewReader(holidayFeed), mustDate(t, "2025-09-01"), mustDate(t, "2026-08-31"))
	require.NoError(t, err)
	assert.Equal(t, HolidayMap{
		mustDate(t, "2025-10-27"): "Mid-term break",
		mustDate(t, "2025-10-28"): "Mid-term break",
		mustDate(t, "2025-10-29"): "Mid-term break",
		mustDate(t, "2026-06-09"): "Heroes Day",
	}, holidays)
}

func TestExportICS(t *testing.T) {
	label := "Founders Day"
	out := ExportICS("Term 1", []CalendarDate{
		{Date: mustDate(t, "2025-09-01"), IsSchoolDay: true},
		{Date: mustDate(t, "2025-09-02"), HolidayLabel: &label},
	})
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Founders Day")
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))

	back, err := HolidaysFromICS(strings.NewReader(out), mustDate(t, "2025-09-01"), mustDate(t, "2025-09-30"))
	require.NoError(t, err)
	assert.Equal(t, HolidayMap{mustDate(t, "2025-09-02"): "Founders Day"}, back)
}

func TestTermBuild(t *testing.T) {
	term := Term{
		From:            mustDate(t, "2025-12-22"),
		To:              mustDate(t, "2026-01-02"),
		ExcludeWeekends: true,
		Holidays:        HolidayMap{mustDate(t, "2025-12-26"): "Boxing Day", mustDate(t, "2026-03-01"): "Outside"},
		Recurring:       []RecurringHoliday{{Rule: "FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25", Label: "Christmas"}},
	}
	b, err := term.Build(HolidayMap{mustDate(t, "2026-01-01"): "New Year"})
	require.NoError(t, err)

	assert.Equal(t, HolidayMap{
		mustDate(t, "2025-12-25"): "Christmas",
		mustDate(t, "2025-12-26"): "Boxing Day",
		mustDate(t, "2026-01-01"): "New Year",
	}, b.Holidays())
	assert.Equal(t, []Date{
		mustDate(t, "2025-12-22"),
		mustDate(t, "2025-12-23"),
		mustDate(t, "2025-12-24"),
		mustDate(t, "2025-12-29"),
		mustDate(t, "2025-12-30"),
		mustDate(t, "2025-12-31"),
		mustDate(t, "2026-01-02"),
	}, b.SchoolDays())

	_, err = Term{From: mustDate(t, "2025-12-22")}.Build()
	assert.ErrorIs(t, err, ErrMissingBound)
}
