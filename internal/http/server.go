package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"schoolhub/attendance/internal/attendance"
	"schoolhub/attendance/internal/auth"
	"schoolhub/attendance/internal/cache"
	"schoolhub/attendance/internal/calendar"
	"schoolhub/attendance/internal/config"
	"schoolhub/attendance/internal/db"
)

// Repository is the storage the handlers need. *db.Store implements it.
type Repository interface {
	GetCalendar(ctx context.Context, sessionID string) ([]calendar.CalendarDate, error)
	CreateCalendar(ctx context.Context, sessionID string, entries []calendar.CalendarDate) error
	ReplaceCalendar(ctx context.Context, sessionID string, entries []calendar.CalendarDate) error
	DeleteCalendar(ctx context.Context, sessionID string) error
	GetClassSession(ctx context.Context, classID string) (db.ClassSession, error)
	ListRoster(ctx context.Context, classID string) ([]attendance.Student, error)
	ListMarks(ctx context.Context, classID string, from, to calendar.Date) ([]attendance.Mark, error)
	UpsertMarks(ctx context.Context, classID, markedBy string, marks []attendance.Mark) error
}

type Server struct {
	cfg      config.Config
	store    Repository
	cache    *cache.CalendarCache
	logger   *zap.Logger
	validate *validator.Validate
}

func NewServer(cfg config.Config, store Repository, calendarCache *cache.CalendarCache, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 400
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		cache:    calendarCache,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/attendance/calendar", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleGetCalendar)
		r.Get("/ics/", s.handleExportCalendar)
		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(auth.RoleAdmin))
			r.Post("/", s.handleCreateCalendar)
			r.Put("/update/", s.handleUpdateCalendar)
			r.Delete("/delete/", s.handleDeleteCalendar)
			r.Post("/generate/", s.handleGenerateRange)
		})
	})

	r.Route("/api/schooladmin/attendance", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireRole(auth.RoleAdmin, auth.RoleTeacher))
		r.Get("/", s.handleGetAttendance)
		r.Post("/", s.handleSaveAttendance)
		r.Get("/summary/", s.handleAttendanceSummary)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			if !claims.HasRole(roles...) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observeRequest(r.Method, route, status)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Calendar loading

// loadCalendar reads a session calendar through the cache. Cache failures
// fall back to the store.
func (s *Server) loadCalendar(ctx context.Context, sessionID string) ([]calendar.CalendarDate, error) {
	entries, ok, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("calendar cache read failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if ok {
		return entries, nil
	}
	gen, genErr := s.cache.Generation(ctx, sessionID)
	entries, err = s.store.GetCalendar(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		s.logger.Warn("calendar cache read failed", zap.String("session_id", sessionID), zap.Error(genErr))
		return entries, nil
	}
	if err := s.cache.Set(ctx, sessionID, gen, entries); err != nil {
		s.logger.Warn("calendar cache write failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	return entries, nil
}

func (s *Server) invalidateCalendar(ctx context.Context, sessionID string) {
	if err := s.cache.Invalidate(ctx, sessionID); err != nil {
		s.logger.Warn("calendar cache invalidate failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

// decodeAndValidate writes the error response itself and reports whether the
// handler may continue.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := decodeJSON(r, out); err != nil {
		if errors.Is(err, calendar.ErrInvalidDate) {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request")
		return false
	}
	if err := s.validate.Struct(out); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	fields := make(map[string]string, len(fieldErrs))
	code := "invalid_request"
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
		if fe.Tag() == "required" {
			code = "missing_fields"
		}
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": code, "fields": fields})
}

func queryDate(r *http.Request, key string) (calendar.Date, string) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return calendar.Date{}, "missing_fields"
	}
	d, err := calendar.ParseDate(value)
	if err != nil {
		return calendar.Date{}, "invalid_date"
	}
	return d, ""
}
