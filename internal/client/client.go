// Package client talks to the attendance REST API. Every non-2xx response
// becomes an *APIError; nothing is retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
)

type APIError struct {
	Status int
	Code   string
	Label  string
}

func (e *APIError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Label)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

// IsCode reports whether err is an *APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type Calendar struct {
	SessionID  string                  `json:"session_id"`
	From       calendar.Date           `json:"from"`
	To         calendar.Date           `json:"to"`
	SchoolDays int                     `json:"school_days"`
	Dates      []calendar.CalendarDate `json:"dates"`
	Holidays   calendar.HolidayMap     `json:"holidays"`
}

type SheetStudent struct {
	attendance.Student
	IsPresent bool `json:"is_present"`
}

type AttendanceSheet struct {
	ClassID   string             `json:"class_id"`
	SessionID string             `json:"session_id"`
	Date      calendar.Date      `json:"date"`
	Loaded    bool               `json:"loaded"`
	Students  []SheetStudent     `json:"students"`
	Summary   attendance.Summary `json:"summary"`
}

// Marks rebuilds the marks the sheet was loaded with, for NewSheet.
func (s *AttendanceSheet) Marks() []attendance.Mark {
	out := make([]attendance.Mark, 0, len(s.Students))
	for _, st := range s.Students {
		out = append(out, attendance.Mark{StudentID: st.ID, Date: s.Date, IsPresent: st.IsPresent})
	}
	return out
}

func (s *AttendanceSheet) Roster() []attendance.Student {
	out := make([]attendance.Student, 0, len(s.Students))
	for _, st := range s.Students {
		out = append(out, st.Student)
	}
	return out
}

type AttendanceSummary struct {
	ClassID    string                     `json:"class_id"`
	From       calendar.Date              `json:"from"`
	To         calendar.Date              `json:"to"`
	SchoolDays int                        `json:"school_days"`
	Students   []attendance.StudentReport `json:"students"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient gets a 15s timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Calendars

func (c *Client) GetCalendar(ctx context.Context, sessionID string) (*Calendar, error) {
	var out Calendar
	err := c.do(ctx, http.MethodGet, "/api/attendance/calendar/", url.Values{"session_id": {sessionID}}, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCalendar(ctx context.Context, sessionID string, entries []calendar.CalendarDate) (*Calendar, error) {
	var out Calendar
	body := map[string]interface{}{"session_id": sessionID, "dates": entries}
	if err := c.do(ctx, http.MethodPost, "/api/attendance/calendar/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCalendar replaces the stored calendar wholesale.
func (c *Client) UpdateCalendar(ctx context.Context, sessionID string, entries []calendar.CalendarDate) (*Calendar, error) {
	var out Calendar
	body := map[string]interface{}{"session_id": sessionID, "dates": entries}
	if err := c.do(ctx, http.MethodPut, "/api/attendance/calendar/update/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCalendar(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/attendance/calendar/delete/", url.Values{"session_id": {sessionID}}, nil, nil)
}

func (c *Client) GenerateRange(ctx context.Context, from, to calendar.Date, excludeWeekends bool) ([]calendar.Date, error) {
	var out struct {
		Dates []calendar.Date `json:"dates"`
	}
	body := map[string]interface{}{"from": from, "to": to, "exclude_weekends": excludeWeekends}
	if err := c.do(ctx, http.MethodPost, "/api/attendance/calendar/generate/", nil, body, &out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

func (c *Client) ExportICS(ctx context.Context, sessionID string) (string, error) {
	var buf bytes.Buffer
	err := c.do(ctx, http.MethodGet, "/api/attendance/calendar/ics/", url.Values{"session_id": {sessionID}}, nil, &buf)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Attendance

func (c *Client) GetAttendance(ctx context.Context, classID string, d calendar.Date) (*AttendanceSheet, error) {
	var out AttendanceSheet
	query := url.Values{"class_id": {classID}, "date": {d.String()}}
	if err := c.do(ctx, http.MethodGet, "/api/schooladmin/attendance/", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveAttendance bulk-upserts marks for one date. Marks dated otherwise are
// sent under d.
func (c *Client) SaveAttendance(ctx context.Context, classID string, d calendar.Date, marks []attendance.Mark) (*AttendanceSheet, error) {
	type row struct {
		StudentID string `json:"student_id"`
		IsPresent bool   `json:"is_present"`
	}
	rows := make([]row, 0, len(marks))
	for _, m := range marks {
		rows = append(rows, row{StudentID: m.StudentID, IsPresent: m.IsPresent})
	}
	var out AttendanceSheet
	body := map[string]interface{}{"class_id": classID, "date": d, "marks": rows}
	if err := c.do(ctx, http.MethodPost, "/api/schooladmin/attendance/", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Summary(ctx context.Context, classID string, from, to calendar.Date) (*AttendanceSummary, error) {
	var out AttendanceSummary
	query := url.Values{"class_id": {classID}, "from": {from.String()}, "to": {to.String()}}
	if err := c.do(ctx, http.MethodGet, "/api/schooladmin/attendance/summary/", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportSummary streams the summary rendered as format ("xlsx" or "pdf") to w.
func (c *Client) ExportSummary(ctx context.Context, classID string, from, to calendar.Date, format string, w io.Writer) error {
	query := url.Values{"class_id": {classID}, "from": {from.String()}, "to": {to.String()}, "format": {format}}
	return c.do(ctx, http.MethodGet, "/api/schooladmin/attendance/summary/", query, nil, w)
}

// do sends one request. out may be nil, an io.Writer for raw bodies, or a
// JSON target.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	switch target := out.(type) {
	case nil:
		return nil
	case io.Writer:
		_, err := io.Copy(target, resp.Body)
		return err
	default:
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error string `json:"error"`
		Label string `json:"label"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&payload); err == nil {
		apiErr.Code = payload.Error
		apiErr.Label = payload.Label
	}
	if apiErr.Code == "" {
		apiErr.Code = strings.ReplaceAll(strings.ToLower(http.StatusText(resp.StatusCode)), " ", "_")
	}
	return apiErr
}
