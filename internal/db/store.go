package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
)

//go:embed schema.sql
var schema string

var (
	ErrNotFound         = errors.New("not found")
	ErrCalendarExists   = errors.New("calendar already exists")
	ErrMissingReference = errors.New("referenced record not found")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type ClassSession struct {
	ID                string `json:"id"`
	AcademicSessionID string `json:"academic_session_id"`
	Name              string `json:"name"`
}

type Store struct {
	Pool *pgxpool.Pool
}

func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Calendars

func (s *Store) GetCalendar(ctx context.Context, sessionID string) ([]calendar.CalendarDate, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT date, is_school_day, holiday_label
    FROM calendar_dates
    WHERE academic_session_id = $1
    ORDER BY date
  `, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]calendar.CalendarDate, 0)
	for rows.Next() {
		var (
			date   pgtype.Date
			school bool
			label  pgtype.Text
		)
		if err := rows.Scan(&date, &school, &label); err != nil {
			return nil, err
		}
		entry := calendar.CalendarDate{Date: calendar.DateOf(date.Time), IsSchoolDay: school}
		if label.Valid {
			value := label.String
			entry.HolidayLabel = &value
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}

func (s *Store) CreateCalendar(ctx context.Context, sessionID string, entries []calendar.CalendarDate) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM calendar_dates WHERE academic_session_id = $1)`, sessionID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrCalendarExists
		}
		return insertCalendar(ctx, tx, sessionID, entries)
	})
}

// ReplaceCalendar supersedes a stored calendar wholesale.
func (s *Store) ReplaceCalendar(ctx context.Context, sessionID string, entries []calendar.CalendarDate) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM calendar_dates WHERE academic_session_id = $1`, sessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertCalendar(ctx, tx, sessionID, entries)
	})
}

func (s *Store) DeleteCalendar(ctx context.Context, sessionID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM calendar_dates WHERE academic_session_id = $1`, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertCalendar(ctx context.Context, tx pgx.Tx, sessionID string, entries []calendar.CalendarDate) error {
	batch := &pgx.Batch{}
	for _, entry := range calendar.Normalize(entries) {
		batch.Queue(`
      INSERT INTO calendar_dates (academic_session_id, date, is_school_day, holiday_label)
      VALUES ($1, $2, $3, $4)
    `, sessionID, pgDate(entry.Date), entry.IsSchoolDay, entry.HolidayLabel)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapPgError(err)
	}
	return nil
}

// Class sessions and rosters

func (s *Store) GetClassSession(ctx context.Context, classID string) (ClassSession, error) {
	var cs ClassSession
	err := s.Pool.QueryRow(ctx, `
    SELECT id, academic_session_id, name
    FROM class_sessions
    WHERE id = $1
  `, classID).Scan(&cs.ID, &cs.AcademicSessionID, &cs.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return cs, ErrNotFound
	}
	return cs, err
}

func (s *Store) ListRoster(ctx context.Context, classID string) ([]attendance.Student, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT st.id, st.full_name, st.admission_no
    FROM enrollments e
    JOIN students st ON st.id = e.student_id
    WHERE e.class_session_id = $1
    ORDER BY st.full_name
  `, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := make([]attendance.Student, 0)
	for rows.Next() {
		var st attendance.Student
		if err := rows.Scan(&st.ID, &st.FullName, &st.AdmissionNo); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// Attendance marks

func (s *Store) ListMarks(ctx context.Context, classID string, from, to calendar.Date) ([]attendance.Mark, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT student_id, date, is_present
    FROM attendance_marks
    WHERE class_session_id = $1 AND date BETWEEN $2 AND $3
    ORDER BY date, student_id
  `, classID, pgDate(from), pgDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make([]attendance.Mark, 0)
	for rows.Next() {
		var (
			m    attendance.Mark
			date pgtype.Date
		)
		if err := rows.Scan(&m.StudentID, &date, &m.IsPresent); err != nil {
			return nil, err
		}
		m.Date = calendar.DateOf(date.Time)
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

// UpsertMarks writes every mark in one transaction. The last write for a
// (class, student, date) wins.
func (s *Store) UpsertMarks(ctx context.Context, classID, markedBy string, marks []attendance.Mark) error {
	if len(marks) == 0 {
		return nil
	}
	var marker pgtype.Text
	if _, err := uuid.Parse(markedBy); err == nil {
		marker = pgtype.Text{String: markedBy, Valid: true}
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range marks {
			batch.Queue(`
        INSERT INTO attendance_marks (class_session_id, student_id, date, is_present, marked_by, updated_at)
        VALUES ($1, $2, $3, $4, $5::uuid, now())
        ON CONFLICT (class_session_id, student_id, date)
        DO UPDATE SET is_present = EXCLUDED.is_present, marked_by = EXCLUDED.marked_by, updated_at = now()
      `, classID, m.StudentID, pgDate(m.Date), m.IsPresent, marker)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return mapPgError(err)
		}
		return nil
	})
}

// ListUnmarkedClassSessions returns class sessions whose calendar makes d a
// school day and that have no marks for d.
func (s *Store) ListUnmarkedClassSessions(ctx context.Context, d calendar.Date) ([]ClassSession, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT cs.id, cs.academic_session_id, cs.name
    FROM class_sessions cs
    JOIN calendar_dates cd
      ON cd.academic_session_id = cs.academic_session_id AND cd.date = $1 AND cd.is_school_day
    WHERE NOT EXISTS (
      SELECT 1 FROM attendance_marks am
      WHERE am.class_session_id = cs.id AND am.date = $1
    )
    ORDER BY cs.name
  `, pgDate(d))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ClassSession, 0)
	for rows.Next() {
		var cs ClassSession
		if err := rows.Scan(&cs.ID, &cs.AcademicSessionID, &cs.Name); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func pgDate(d calendar.Date) pgtype.Date {
	return pgtype.Date{Time: d.In(time.UTC), Valid: true}
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrMissingReference, pgErr.ConstraintName)
	case pgUniqueViolation:
		return ErrCalendarExists
	default:
		return err
	}
}
