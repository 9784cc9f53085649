package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/db"
)

// calendarRequest carries either explicit dates or a term to generate. Dates
// win when both are present.
type calendarRequest struct {
	SessionID         string                      `json:"session_id" validate:"required,uuid"`
	Dates             []calendar.CalendarDate     `json:"dates"`
	From              *calendar.Date              `json:"from"`
	To                *calendar.Date              `json:"to"`
	ExcludeWeekends   bool                        `json:"exclude_weekends"`
	Holidays          calendar.HolidayMap         `json:"holidays"`
	RecurringHolidays []calendar.RecurringHoliday `json:"recurring_holidays" validate:"omitempty,dive"`
}

type generateRequest struct {
	From            *calendar.Date `json:"from" validate:"required"`
	To              *calendar.Date `json:"to" validate:"required"`
	ExcludeWeekends bool           `json:"exclude_weekends"`
}

type calendarResponse struct {
	SessionID  string                  `json:"session_id"`
	From       calendar.Date           `json:"from"`
	To         calendar.Date           `json:"to"`
	SchoolDays int                     `json:"school_days"`
	Dates      []calendar.CalendarDate `json:"dates"`
	Holidays   calendar.HolidayMap     `json:"holidays"`
}

func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	entries, err := s.loadCalendar(r.Context(), sessionID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "calendar_not_found")
		return
	}
	if err != nil {
		s.serverError(w, "load calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, mapCalendar(sessionID, entries))
}

func (s *Server) handleCreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	entries, code := s.buildEntries(req)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	err := s.store.CreateCalendar(r.Context(), req.SessionID, entries)
	switch {
	case errors.Is(err, db.ErrCalendarExists):
		writeError(w, http.StatusConflict, "calendar_exists")
		return
	case errors.Is(err, db.ErrMissingReference):
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	case err != nil:
		s.serverError(w, "create calendar", err)
		return
	}
	s.invalidateCalendar(r.Context(), req.SessionID)
	calendarWritesTotal.WithLabelValues("create").Inc()
	s.logger.Info("calendar created", zap.String("session_id", req.SessionID), zap.Int("dates", len(entries)))
	writeJSON(w, http.StatusCreated, mapCalendar(req.SessionID, entries))
}

func (s *Server) handleUpdateCalendar(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	entries, code := s.buildEntries(req)
	if code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}

	err := s.store.ReplaceCalendar(r.Context(), req.SessionID, entries)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "calendar_not_found")
		return
	}
	if err != nil {
		s.serverError(w, "replace calendar", err)
		return
	}
	s.invalidateCalendar(r.Context(), req.SessionID)
	calendarWritesTotal.WithLabelValues("update").Inc()
	s.logger.Info("calendar replaced", zap.String("session_id", req.SessionID), zap.Int("dates", len(entries)))
	writeJSON(w, http.StatusOK, mapCalendar(req.SessionID, entries))
}

func (s *Server) handleDeleteCalendar(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	err := s.store.DeleteCalendar(r.Context(), sessionID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "calendar_not_found")
		return
	}
	if err != nil {
		s.serverError(w, "delete calendar", err)
		return
	}
	s.invalidateCalendar(r.Context(), sessionID)
	calendarWritesTotal.WithLabelValues("delete").Inc()
	s.logger.Info("calendar deleted", zap.String("session_id", sessionID))
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateRange previews a range without storing anything.
func (s *Server) handleGenerateRange(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if code := s.checkRange(*req.From, *req.To); code != "" {
		writeError(w, http.StatusBadRequest, code)
		return
	}
	dates, err := calendar.GenerateRange(*req.From, *req.To, req.ExcludeWeekends)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dates": dates,
		"count": len(dates),
	})
}

func (s *Server) handleExportCalendar(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	entries, err := s.loadCalendar(r.Context(), sessionID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "calendar_not_found")
		return
	}
	if err != nil {
		s.serverError(w, "load calendar", err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar-`+sessionID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.ExportICS("session "+sessionID, entries)))
}

// buildEntries returns the entries to store, or an error code.
func (s *Server) buildEntries(req calendarRequest) ([]calendar.CalendarDate, string) {
	if len(req.Dates) > 0 {
		if err := calendar.Validate(req.Dates); err != nil {
			if errors.Is(err, calendar.ErrInvalidDate) {
				return nil, "invalid_date"
			}
			return nil, "invalid_calendar"
		}
		entries := calendar.Normalize(req.Dates)
		if code := s.checkRange(entries[0].Date, entries[len(entries)-1].Date); code != "" {
			return nil, code
		}
		return entries, ""
	}

	if req.From == nil || req.To == nil {
		return nil, "missing_fields"
	}
	if code := s.checkRange(*req.From, *req.To); code != "" {
		return nil, code
	}
	term := calendar.Term{
		From:            *req.From,
		To:              *req.To,
		ExcludeWeekends: req.ExcludeWeekends,
		Holidays:        req.Holidays,
		Recurring:       req.RecurringHolidays,
	}
	b, err := term.Build()
	switch {
	case errors.Is(err, calendar.ErrInvalidRule):
		return nil, "invalid_rule"
	case err != nil:
		return nil, "missing_fields"
	}
	entries := b.Entries()
	if len(entries) == 0 {
		return nil, "invalid_range"
	}
	return entries, ""
}

func (s *Server) checkRange(from, to calendar.Date) string {
	if to.Before(from) {
		return "invalid_range"
	}
	if calendar.RangeLength(from, to) > s.cfg.MaxRangeDays {
		return "range_too_long"
	}
	return ""
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error")
}

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return "", false
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return "", false
	}
	return sessionID, true
}

func mapCalendar(sessionID string, entries []calendar.CalendarDate) calendarResponse {
	lookup := calendar.NewLookup(entries)
	resp := calendarResponse{
		SessionID: sessionID,
		Dates:     entries,
		Holidays:  lookup.HolidayMap(),
	}
	if len(entries) > 0 {
		resp.From = entries[0].Date
		resp.To = entries[len(entries)-1].Date
		resp.SchoolDays = len(lookup.SchoolDaysBetween(resp.From, resp.To))
	}
	return resp
}
