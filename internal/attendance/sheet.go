// Package attendance holds the per-date marking sheet a teacher fills in for
// one class session.
package attendance

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"schoolhub/attendance/internal/calendar"
)

var ErrUnknownStudent = errors.New("student not enrolled in class session")

const (
	ReasonHoliday      = "holiday"
	ReasonNotSchoolDay = "not_school_day"
)

// GateError reports why a date cannot be marked.
type GateError struct {
	Date   calendar.Date
	Reason string
	Label  string
}

func (e *GateError) Error() string {
	if e.Reason == ReasonHoliday {
		return fmt.Sprintf("%s is a holiday (%s)", e.Date, e.Label)
	}
	return fmt.Sprintf("%s is not a school day", e.Date)
}

// Gate allows marking only on school days.
func Gate(c calendar.Classifier, d calendar.Date) error {
	switch c.Classify(d) {
	case calendar.SchoolDay:
		return nil
	case calendar.Holiday:
		return &GateError{Date: d, Reason: ReasonHoliday, Label: c.HolidayLabel(d)}
	default:
		return &GateError{Date: d, Reason: ReasonNotSchoolDay}
	}
}

type Student struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	AdmissionNo string `json:"admission_no"`
}

// Mark is one student's attendance on one date.
type Mark struct {
	StudentID string        `json:"student_id"`
	Date      calendar.Date `json:"date"`
	IsPresent bool          `json:"is_present"`
}

// InitializeAttendance marks every student absent.
func InitializeAttendance(students []Student) map[string]bool {
	out := make(map[string]bool, len(students))
	for _, s := range students {
		out[s.ID] = false
	}
	return out
}

// Sheet is the working copy of one date's marks. Changes stay local until the
// caller persists Marks.
type Sheet struct {
	date    calendar.Date
	roster  []Student
	present map[string]bool
	query   string
	loaded  bool
}

// NewSheet gates the date, then loads existing marks, or starts every student
// absent when none exist. Students missing from existing also start absent.
func NewSheet(c calendar.Classifier, d calendar.Date, roster []Student, existing []Mark) (*Sheet, error) {
	if err := Gate(c, d); err != nil {
		return nil, err
	}
	sorted := make([]Student, len(roster))
	copy(sorted, roster)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].FullName) < strings.ToLower(sorted[j].FullName)
	})
	s := &Sheet{
		date:    d,
		roster:  sorted,
		present: InitializeAttendance(sorted),
	}
	for _, m := range existing {
		if m.Date != d {
			continue
		}
		if _, enrolled := s.present[m.StudentID]; !enrolled {
			continue
		}
		s.present[m.StudentID] = m.IsPresent
		s.loaded = true
	}
	return s, nil
}

func (s *Sheet) Date() calendar.Date { return s.date }

// Loaded reports whether prior marks existed for the date.
func (s *Sheet) Loaded() bool { return s.loaded }

func (s *Sheet) Roster() []Student {
	out := make([]Student, len(s.roster))
	copy(out, s.roster)
	return out
}

func (s *Sheet) IsPresent(studentID string) (bool, error) {
	present, ok := s.present[studentID]
	if !ok {
		return false, fmt.Errorf("%s: %w", studentID, ErrUnknownStudent)
	}
	return present, nil
}

// Toggle flips one student and returns the new value.
func (s *Sheet) Toggle(studentID string) (bool, error) {
	present, err := s.IsPresent(studentID)
	if err != nil {
		return false, err
	}
	s.present[studentID] = !present
	return !present, nil
}

func (s *Sheet) SetPresent(studentID string, present bool) error {
	if _, err := s.IsPresent(studentID); err != nil {
		return err
	}
	s.present[studentID] = present
	return nil
}

// Search narrows the visible subset to students whose name or admission
// number contains query. An empty query shows everyone.
func (s *Sheet) Search(query string) {
	s.query = strings.ToLower(strings.TrimSpace(query))
}

func (s *Sheet) Filtered() []Student {
	if s.query == "" {
		return s.Roster()
	}
	out := make([]Student, 0)
	for _, st := range s.roster {
		if strings.Contains(strings.ToLower(st.FullName), s.query) ||
			strings.Contains(strings.ToLower(st.AdmissionNo), s.query) {
			out = append(out, st)
		}
	}
	return out
}

// MarkFiltered sets every student in the current search result, and nobody
// else, and returns how many were set.
func (s *Sheet) MarkFiltered(present bool) int {
	filtered := s.Filtered()
	for _, st := range filtered {
		s.present[st.ID] = present
	}
	return len(filtered)
}

// Marks is the bulk-upsert payload for the whole roster.
func (s *Sheet) Marks() []Mark {
	out := make([]Mark, 0, len(s.roster))
	for _, st := range s.roster {
		out = append(out, Mark{StudentID: st.ID, Date: s.date, IsPresent: s.present[st.ID]})
	}
	return out
}

type Summary struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Total   int `json:"total"`
}

func (s *Sheet) Summary() Summary {
	var sum Summary
	for _, present := range s.present {
		if present {
			sum.Present++
		} else {
			sum.Absent++
		}
	}
	sum.Total = len(s.present)
	return sum
}
