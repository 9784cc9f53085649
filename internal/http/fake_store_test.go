package http

import (
	"context"
	"sync"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/db"
)

type markKey struct {
	classID   string
	studentID string
	date      calendar.Date
}

// memoryStore mirrors *db.Store semantics over maps.
type memoryStore struct {
	mu        sync.Mutex
	sessions  map[string]bool
	calendars map[string][]calendar.CalendarDate
	classes   map[string]db.ClassSession
	rosters   map[string][]attendance.Student
	marks     map[markKey]bool
	markedBy  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions:  make(map[string]bool),
		calendars: make(map[string][]calendar.CalendarDate),
		classes:   make(map[string]db.ClassSession),
		rosters:   make(map[string][]attendance.Student),
		marks:     make(map[markKey]bool),
	}
}

func (m *memoryStore) GetCalendar(_ context.Context, sessionID string) ([]calendar.CalendarDate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.calendars[sessionID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return append([]calendar.CalendarDate(nil), entries...), nil
}

func (m *memoryStore) CreateCalendar(_ context.Context, sessionID string, entries []calendar.CalendarDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.sessions[sessionID] {
		return db.ErrMissingReference
	}
	if _, ok := m.calendars[sessionID]; ok {
		return db.ErrCalendarExists
	}
	m.calendars[sessionID] = calendar.Normalize(entries)
	return nil
}

func (m *memoryStore) ReplaceCalendar(_ context.Context, sessionID string, entries []calendar.CalendarDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calendars[sessionID]; !ok {
		return db.ErrNotFound
	}
	m.calendars[sessionID] = calendar.Normalize(entries)
	return nil
}

func (m *memoryStore) DeleteCalendar(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calendars[sessionID]; !ok {
		return db.ErrNotFound
	}
	delete(m.calendars, sessionID)
	return nil
}

func (m *memoryStore) GetClassSession(_ context.Context, classID string) (db.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.classes[classID]
	if !ok {
		return db.ClassSession{}, db.ErrNotFound
	}
	return cs, nil
}

func (m *memoryStore) ListRoster(_ context.Context, classID string) ([]attendance.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]attendance.Student(nil), m.rosters[classID]...), nil
}

func (m *memoryStore) ListMarks(_ context.Context, classID string, from, to calendar.Date) ([]attendance.Mark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.Mark, 0)
	for key, present := range m.marks {
		if key.classID != classID || key.date.Before(from) || key.date.After(to) {
			continue
		}
		out = append(out, attendance.Mark{StudentID: key.studentID, Date: key.date, IsPresent: present})
	}
	return out, nil
}

func (m *memoryStore) UpsertMarks(_ context.Context, classID, markedBy string, marks []attendance.Mark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mark := range marks {
		m.marks[markKey{classID: classID, studentID: mark.StudentID, date: mark.Date}] = mark.IsPresent
	}
	m.markedBy = markedBy
	return nil
}
