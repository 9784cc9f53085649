package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/db"
)

const calendarQueryServiceName = "schoolhub.attendance.v1.CalendarQuery"

type ClassifyDateRequest struct {
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
}

type ClassifyDateResponse struct {
	Date           string `json:"date"`
	Classification string `json:"classification"`
	IsSchoolDay    bool   `json:"is_school_day"`
	HolidayLabel   string `json:"holiday_label,omitempty"`
}

type ListSchoolDaysRequest struct {
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type ListSchoolDaysResponse struct {
	Dates []string `json:"dates"`
}

// CalendarQuery lets other services ask whether a date is a school day without
// going through the REST API.
type CalendarQuery interface {
	ClassifyDate(ctx context.Context, req *ClassifyDateRequest) (*ClassifyDateResponse, error)
	ListSchoolDays(ctx context.Context, req *ListSchoolDaysRequest) (*ListSchoolDaysResponse, error)
}

type CalendarSource interface {
	GetCalendar(ctx context.Context, sessionID string) ([]calendar.CalendarDate, error)
}

type CalendarQueryServer struct {
	source CalendarSource
}

func NewCalendarQueryServer(source CalendarSource) *CalendarQueryServer {
	return &CalendarQueryServer{source: source}
}

func (s *CalendarQueryServer) ClassifyDate(ctx context.Context, req *ClassifyDateRequest) (*ClassifyDateResponse, error) {
	d, err := calendar.ParseDate(req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid_date")
	}
	lookup, err := s.lookup(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	class := lookup.Classify(d)
	return &ClassifyDateResponse{
		Date:           d.String(),
		Classification: class.String(),
		IsSchoolDay:    class == calendar.SchoolDay,
		HolidayLabel:   lookup.HolidayLabel(d),
	}, nil
}

func (s *CalendarQueryServer) ListSchoolDays(ctx context.Context, req *ListSchoolDaysRequest) (*ListSchoolDaysResponse, error) {
	from, err := calendar.ParseDate(req.From)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid_date")
	}
	to, err := calendar.ParseDate(req.To)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid_date")
	}
	if to.Before(from) {
		return nil, status.Error(codes.InvalidArgument, "invalid_range")
	}
	lookup, err := s.lookup(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	days := lookup.SchoolDaysBetween(from, to)
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return &ListSchoolDaysResponse{Dates: out}, nil
}

func (s *CalendarQueryServer) lookup(ctx context.Context, sessionID string) (*calendar.Lookup, error) {
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing_session")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid_request")
	}
	entries, err := s.source.GetCalendar(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "calendar_not_found")
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "server_error")
	}
	return calendar.NewLookup(entries), nil
}

// RegisterCalendarQueryServer registers srv under a hand-written descriptor.
// Calls must use the json content subtype.
func RegisterCalendarQueryServer(s grpc.ServiceRegistrar, srv CalendarQuery) {
	s.RegisterService(&calendarQueryServiceDesc, srv)
}

var calendarQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: calendarQueryServiceName,
	HandlerType: (*CalendarQuery)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ClassifyDate", Handler: classifyDateHandler},
		{MethodName: "ListSchoolDays", Handler: listSchoolDaysHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calendar_query",
}

func classifyDateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ClassifyDateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarQuery).ClassifyDate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + calendarQueryServiceName + "/ClassifyDate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CalendarQuery).ClassifyDate(ctx, req.(*ClassifyDateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listSchoolDaysHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListSchoolDaysRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalendarQuery).ListSchoolDays(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + calendarQueryServiceName + "/ListSchoolDays"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CalendarQuery).ListSchoolDays(ctx, req.(*ListSchoolDaysRequest))
	}
	return interceptor(ctx, in, info, handler)
}
