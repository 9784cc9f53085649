package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/calendar"
)

func TestClientSendsTokenAndDates(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"class_id":"c-1","date":"2025-09-02","loaded":true,
			"students":[{"id":"s-1","full_name":"Amina Nakato","admission_no":"A001","is_present":true}],
			"summary":{"present":1,"absent":0,"total":1}}`)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok", nil)
	sheet, err := c.GetAttendance(context.Background(), "c-1", calendar.NewDate(2025, time.September, 2))
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "class_id=c-1&date=2025-09-02", gotQuery)
	assert.True(t, sheet.Loaded)
	assert.Equal(t, []attendance.Mark{{StudentID: "s-1", Date: calendar.NewDate(2025, time.September, 2), IsPresent: true}}, sheet.Marks())
	assert.Equal(t, "Amina Nakato", sheet.Roster()[0].FullName)
}

func TestClientFlattensErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/schooladmin/attendance/":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"error":"holiday","date":"2025-09-03","label":"Heroes Day"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "<html>upstream</html>")
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	_, err := c.GetAttendance(context.Background(), "c-1", calendar.NewDate(2025, time.September, 3))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "holiday", apiErr.Code)
	assert.Equal(t, "Heroes Day", apiErr.Label)
	assert.True(t, IsCode(err, "holiday"))

	_, err = c.GetCalendar(context.Background(), "term-1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad_gateway", apiErr.Code)
}

func TestSaveAttendancePayload(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, `{"class_id":"c-1","date":"2025-09-02","loaded":true,"students":[],"summary":{}}`)
	}))
	defer srv.Close()

	d := calendar.NewDate(2025, time.September, 2)
	_, err := New(srv.URL, "tok", nil).SaveAttendance(context.Background(), "c-1", d, []attendance.Mark{
		{StudentID: "s-1", Date: d, IsPresent: true},
		{StudentID: "s-2", Date: d},
	})
	require.NoError(t, err)

	assert.Equal(t, "c-1", payload["class_id"])
	assert.Equal(t, "2025-09-02", payload["date"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"student_id": "s-1", "is_present": true},
		map[string]interface{}{"student_id": "s-2", "is_present": false},
	}, payload["marks"])
}

func TestCalendarRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/attendance/calendar/update/":
			var body struct {
				SessionID string                  `json:"session_id"`
				Dates     []calendar.CalendarDate `json:"dates"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"session_id": body.SessionID, "dates": body.Dates})
		case r.Method == http.MethodDelete:
			assert.Equal(t, "term-1", r.URL.Query().Get("session_id"))
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/attendance/calendar/ics/":
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	ctx := context.Background()
	label := "Heroes Day"
	entries := []calendar.CalendarDate{
		{Date: calendar.NewDate(2025, time.September, 1), IsSchoolDay: true},
		{Date: calendar.NewDate(2025, time.September, 3), HolidayLabel: &label},
	}
	cal, err := c.UpdateCalendar(ctx, "term-1", entries)
	require.NoError(t, err)
	assert.Equal(t, entries, cal.Dates)

	require.NoError(t, c.DeleteCalendar(ctx, "term-1"))

	ics, err := c.ExportICS(ctx, "term-1")
	require.NoError(t, err)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
}
