package clients

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/db"
	attendancegrpc "schoolhub/attendance/internal/grpc"
)

const testSessionID = "5b0e6a52-3c1f-4d8e-9a7b-2f6c1d0e9a41"

type oneCalendar []calendar.CalendarDate

func (c oneCalendar) GetCalendar(_ context.Context, sessionID string) ([]calendar.CalendarDate, error) {
	if sessionID != testSessionID {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func startServer(t *testing.T) string {
	t.Helper()
	label := "Mid-term break"
	server, _, err := attendancegrpc.NewServer("shared-token", oneCalendar{
		{Date: calendar.NewDate(2025, time.October, 27), HolidayLabel: &label},
		{Date: calendar.NewDate(2025, time.October, 28), IsSchoolDay: true},
	})
	if err != nil {
		t.Fatalf("server init: %v", err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)
	return listener.Addr().String()
}

func TestCalendarQuery(t *testing.T) {
	addr := startServer(t)
	ctx := context.Background()

	client, err := NewCalendarQuery(ctx, addr, "shared-token", time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	resp, err := client.ClassifyDate(ctx, testSessionID, "2025-10-27")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if resp.Classification != "holiday" || resp.HolidayLabel != "Mid-term break" {
		t.Fatalf("unexpected classification %+v", resp)
	}

	days, err := client.ListSchoolDays(ctx, testSessionID, "2025-10-01", "2025-10-31")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(days) != 1 || days[0] != "2025-10-28" {
		t.Fatalf("unexpected school days %v", days)
	}

	if _, err := client.ClassifyDate(ctx, "term-2", "2025-10-27"); status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCalendarQueryWrongToken(t *testing.T) {
	addr := startServer(t)
	client, err := NewCalendarQuery(context.Background(), addr, "other-token", time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if _, err := client.ClassifyDate(context.Background(), testSessionID, "2025-10-27"); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}
