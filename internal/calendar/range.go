package calendar

import "errors"

var ErrMissingBound = errors.New("both from and to dates are required")

// GenerateRange returns every date from from to to inclusive, ascending. With
// excludeWeekends, Saturdays and Sundays are skipped. A to before from gives an
// empty range.
func GenerateRange(from, to Date, excludeWeekends bool) ([]Date, error) {
	if from.IsZero() || to.IsZero() {
		return nil, ErrMissingBound
	}
	if to.Before(from) {
		return []Date{}, nil
	}
	dates := make([]Date, 0, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		if excludeWeekends && d.IsWeekend() {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// RangeLength is the inclusive day count between from and to, zero when the
// range is empty.
func RangeLength(from, to Date) int {
	if to.Before(from) {
		return 0
	}
	return from.DaysUntil(to) + 1
}
