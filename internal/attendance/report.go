package attendance

import (
	"schoolhub/attendance/internal/calendar"
)

type StudentReport struct {
	Student  Student `json:"student"`
	Present  int     `json:"present"`
	Absent   int     `json:"absent"`
	Unmarked int     `json:"unmarked"`
	Rate     float64 `json:"rate"`
}

// Tally counts each student's marks over the given school days. Marks on other
// dates are ignored; a school day with no mark counts as unmarked. Rate is
// present over marked days, zero when nothing is marked.
func Tally(schoolDays []calendar.Date, roster []Student, marks []Mark) []StudentReport {
	days := make(map[calendar.Date]struct{}, len(schoolDays))
	for _, d := range schoolDays {
		days[d] = struct{}{}
	}
	type key struct {
		student string
		date    calendar.Date
	}
	seen := make(map[key]bool, len(marks))
	for _, m := range marks {
		if _, ok := days[m.Date]; !ok {
			continue
		}
		seen[key{m.StudentID, m.Date}] = m.IsPresent
	}

	out := make([]StudentReport, 0, len(roster))
	for _, st := range roster {
		report := StudentReport{Student: st}
		for d := range days {
			present, ok := seen[key{st.ID, d}]
			switch {
			case !ok:
				report.Unmarked++
			case present:
				report.Present++
			default:
				report.Absent++
			}
		}
		if marked := report.Present + report.Absent; marked > 0 {
			report.Rate = float64(report.Present) / float64(marked)
		}
		out = append(out, report)
	}
	return out
}
