package clients

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	attendancegrpc "schoolhub/attendance/internal/grpc"
)

// CalendarQuery calls the calendar query service of an attendance server.
type CalendarQuery struct {
	conn *grpc.ClientConn
}

func NewCalendarQuery(ctx context.Context, addr, serviceToken string, timeout time.Duration) (*CalendarQuery, error) {
	conn, err := dial(ctx, addr, serviceToken, timeout)
	if err != nil {
		return nil, err
	}
	return &CalendarQuery{conn: conn}, nil
}

func (c *CalendarQuery) ClassifyDate(ctx context.Context, sessionID, date string) (*attendancegrpc.ClassifyDateResponse, error) {
	out := new(attendancegrpc.ClassifyDateResponse)
	req := &attendancegrpc.ClassifyDateRequest{SessionID: sessionID, Date: date}
	if err := c.conn.Invoke(ctx, "/schoolhub.attendance.v1.CalendarQuery/ClassifyDate", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CalendarQuery) ListSchoolDays(ctx context.Context, sessionID, from, to string) ([]string, error) {
	out := new(attendancegrpc.ListSchoolDaysResponse)
	req := &attendancegrpc.ListSchoolDaysRequest{SessionID: sessionID, From: from, To: to}
	if err := c.conn.Invoke(ctx, "/schoolhub.attendance.v1.CalendarQuery/ListSchoolDays", req, out); err != nil {
		return nil, err
	}
	return out.Dates, nil
}

func (c *CalendarQuery) Close() {
	if c == nil || c.conn == nil {
		return
	}
	_ = c.conn.Close()
}

func dial(ctx context.Context, addr, serviceToken string, timeout time.Duration) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(attendancegrpc.CodecName)),
		grpc.WithUnaryInterceptor(serviceTokenInterceptor(serviceToken)),
	)
}

func serviceTokenInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if token != "" {
			ctx = attendancegrpc.WithServiceToken(ctx, token)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
