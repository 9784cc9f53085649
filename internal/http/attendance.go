package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/db"
	"schoolhub/attendance/internal/report"
)

type saveAttendanceRequest struct {
	ClassID string           `json:"class_id" validate:"required,uuid"`
	Date    *calendar.Date   `json:"date" validate:"required"`
	Marks   []markRequestRow `json:"marks" validate:"required,min=1,dive"`
}

type markRequestRow struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
	IsPresent bool   `json:"is_present"`
}

type attendanceStudent struct {
	attendance.Student
	IsPresent bool `json:"is_present"`
}

type attendanceResponse struct {
	ClassID   string              `json:"class_id"`
	SessionID string              `json:"session_id"`
	Date      calendar.Date       `json:"date"`
	Loaded    bool                `json:"loaded"`
	Students  []attendanceStudent `json:"students"`
	Summary   attendance.Summary  `json:"summary"`
}

type summaryResponse struct {
	ClassID    string                     `json:"class_id"`
	From       calendar.Date              `json:"from"`
	To         calendar.Date              `json:"to"`
	SchoolDays int                        `json:"school_days"`
	Students   []attendance.StudentReport `json:"students"`
}

// classContext is what every attendance handler resolves before touching marks.
type classContext struct {
	class    db.ClassSession
	calendar *calendar.Lookup
	roster   []attendance.Student
}

func (s *Server) handleGetAttendance(w http.ResponseWriter, r *http.Request) {
	classID, ok := classParam(w, r)
	if !ok {
		return
	}
	d, code := queryDate(r, "date")
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	cc, ok := s.resolveClass(r.Context(), w, classID)
	if !ok {
		return
	}
	if !s.gate(w, cc.calendar, d) {
		return
	}
	existing, err := s.store.ListMarks(r.Context(), classID, d, d)
	if err != nil {
		s.serverError(w, "list marks", err)
		return
	}
	sheet, err := attendance.NewSheet(cc.calendar, d, cc.roster, existing)
	if err != nil {
		s.serverError(w, "build sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSheet(cc.class, sheet))
}

func (s *Server) handleSaveAttendance(w http.ResponseWriter, r *http.Request) {
	var req saveAttendanceRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	cc, ok := s.resolveClass(r.Context(), w, req.ClassID)
	if !ok {
		return
	}
	d := *req.Date
	if !s.gate(w, cc.calendar, d) {
		return
	}

	enrolled := make(map[string]struct{}, len(cc.roster))
	for _, st := range cc.roster {
		enrolled[st.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(req.Marks))
	marks := make([]attendance.Mark, 0, len(req.Marks))
	for _, row := range req.Marks {
		if _, ok := enrolled[row.StudentID]; !ok {
			writeError(w, http.StatusBadRequest, "unknown_student")
			return
		}
		if _, dup := seen[row.StudentID]; dup {
			writeError(w, http.StatusBadRequest, "duplicate_student")
			return
		}
		seen[row.StudentID] = struct{}{}
		marks = append(marks, attendance.Mark{StudentID: row.StudentID, Date: d, IsPresent: row.IsPresent})
	}

	claims := claimsFromContext(r.Context())
	err := s.store.UpsertMarks(r.Context(), req.ClassID, claims.UserID, marks)
	if errors.Is(err, db.ErrMissingReference) {
		writeError(w, http.StatusBadRequest, "unknown_student")
		return
	}
	if err != nil {
		s.serverError(w, "upsert marks", err)
		return
	}
	marksSavedTotal.Add(float64(len(marks)))
	s.logger.Info("attendance saved",
		zap.String("class_id", req.ClassID),
		zap.Stringer("date", d),
		zap.Int("marks", len(marks)),
		zap.String("marked_by", claims.UserID),
	)

	sheet, err := attendance.NewSheet(cc.calendar, d, cc.roster, marks)
	if err != nil {
		s.serverError(w, "build sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSheet(cc.class, sheet))
}

func (s *Server) handleAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	classID, ok := classParam(w, r)
	if !ok {
		return
	}
	from, code := queryDate(r, "from")
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	to, code := queryDate(r, "to")
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	if code := s.checkRange(from, to); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format != "" && format != "json" && report.ContentType(format) == "" {
		writeError(w, http.StatusBadRequest, "invalid_format")
		return
	}
	if format == "json" {
		format = ""
	}
	cc, ok := s.resolveClass(r.Context(), w, classID)
	if !ok {
		return
	}
	marks, err := s.store.ListMarks(r.Context(), classID, from, to)
	if err != nil {
		s.serverError(w, "list marks", err)
		return
	}
	days := cc.calendar.SchoolDaysBetween(from, to)
	reports := attendance.Tally(days, cc.roster, marks)
	if format != "" {
		var buf bytes.Buffer
		err := report.Write(&buf, format, report.Summary{
			Title:      cc.class.Name + " attendance",
			From:       from,
			To:         to,
			SchoolDays: len(days),
			Students:   reports,
		})
		if err != nil {
			s.serverError(w, "render summary", err)
			return
		}
		w.Header().Set("Content-Type", report.ContentType(format))
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance-%s-%s-%s.%s"`, classID, from, to, format))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		ClassID:    classID,
		From:       from,
		To:         to,
		SchoolDays: len(days),
		Students:   reports,
	})
}

// resolveClass loads the class session, its calendar and its roster, writing
// the error response on failure.
func (s *Server) resolveClass(ctx context.Context, w http.ResponseWriter, classID string) (classContext, bool) {
	class, err := s.store.GetClassSession(ctx, classID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "class_not_found")
		return classContext{}, false
	}
	if err != nil {
		s.serverError(w, "get class session", err)
		return classContext{}, false
	}
	entries, err := s.loadCalendar(ctx, class.AcademicSessionID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "calendar_not_found")
		return classContext{}, false
	}
	if err != nil {
		s.serverError(w, "load calendar", err)
		return classContext{}, false
	}
	roster, err := s.store.ListRoster(ctx, classID)
	if err != nil {
		s.serverError(w, "list roster", err)
		return classContext{}, false
	}
	return classContext{class: class, calendar: calendar.NewLookup(entries), roster: roster}, true
}

// gate refuses dates that are not school days with 422 and the reason as the
// error code. Holidays also carry their label.
func (s *Server) gate(w http.ResponseWriter, c calendar.Classifier, d calendar.Date) bool {
	err := attendance.Gate(c, d)
	if err == nil {
		return true
	}
	var gateErr *attendance.GateError
	if !errors.As(err, &gateErr) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return false
	}
	gateRejectionsTotal.WithLabelValues(gateErr.Reason).Inc()
	payload := map[string]string{"error": gateErr.Reason, "date": d.String()}
	if gateErr.Label != "" {
		payload["label"] = gateErr.Label
	}
	writeJSON(w, http.StatusUnprocessableEntity, payload)
	return false
}

func classParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	classID := strings.TrimSpace(r.URL.Query().Get("class_id"))
	if classID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return "", false
	}
	if _, err := uuid.Parse(classID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return "", false
	}
	return classID, true
}

func mapSheet(class db.ClassSession, sheet *attendance.Sheet) attendanceResponse {
	roster := sheet.Roster()
	students := make([]attendanceStudent, 0, len(roster))
	for _, st := range roster {
		present, _ := sheet.IsPresent(st.ID)
		students = append(students, attendanceStudent{Student: st, IsPresent: present})
	}
	return attendanceResponse{
		ClassID:   class.ID,
		SessionID: class.AcademicSessionID,
		Date:      sheet.Date(),
		Loaded:    sheet.Loaded(),
		Students:  students,
		Summary:   sheet.Summary(),
	}
}
