package calendar

// Term describes a calendar to generate rather than one listed date by date:
// a range, whether weekends are skipped, and the holidays that interrupt it.
type Term struct {
	From            Date               `json:"from" yaml:"from"`
	To              Date               `json:"to" yaml:"to"`
	ExcludeWeekends bool               `json:"exclude_weekends" yaml:"exclude_weekends"`
	Holidays        HolidayMap         `json:"holidays,omitempty" yaml:"holidays,omitempty"`
	Recurring       []RecurringHoliday `json:"recurring_holidays,omitempty" yaml:"recurring_holidays,omitempty" validate:"omitempty,dive"`
}

// Build populates a builder from the term. Fixed holidays are applied after
// recurring ones, then each extra map in order, so later sources win on a
// shared date. Holidays outside the range are ignored.
func (t Term) Build(extra ...HolidayMap) (*Builder, error) {
	b := NewBuilder()
	if err := b.Populate(t.From, t.To, t.ExcludeWeekends); err != nil {
		return nil, err
	}
	recurring, err := ExpandRecurringHolidays(t.Recurring, t.From, t.To)
	if err != nil {
		return nil, err
	}
	sources := append([]HolidayMap{recurring, t.Holidays}, extra...)
	for _, holidays := range sources {
		for d, label := range holidays {
			if d.Before(t.From) || d.After(t.To) {
				continue
			}
			b.MarkHoliday(d, label)
		}
	}
	return b, nil
}
