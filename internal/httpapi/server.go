// Package httpapi serves the record service over HTTP with bearer token sessions.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hengadev/carevault"
	"github.com/hengadev/carevault/internal/health"
	"github.com/hengadev/carevault/internal/monitoring"
)

// RequestIDHeader carries the request id echoed back on every response.
const RequestIDHeader = "X-Request-ID"

type contextKey int

const sessionKey contextKey = 0

// Server routes HTTP requests to the record service.
type Server struct {
	router   *mux.Router
	records  *carevault.Service
	auth     *carevault.Authenticator
	tokens   *TokenIssuer
	uploader carevault.ObjectUploader
	checker  *health.Checker
	gatherer prometheus.Gatherer
	logger   *monitoring.StructuredLogger
	metrics  monitoring.MetricsCollector
	now      func() time.Time
}

type Option func(s *Server)

func WithLogger(logger *monitoring.StructuredLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(collector monitoring.MetricsCollector) Option {
	return func(s *Server) {
		if collector != nil {
			s.metrics = collector
		}
	}
}

// WithGatherer serves g at /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithHealthChecker serves checker's report under /healthz.
func WithHealthChecker(checker *health.Checker) Option {
	return func(s *Server) {
		s.checker = checker
	}
}

// WithUploader enables POST /export/{kind}/upload.
func WithUploader(uploader carevault.ObjectUploader) Option {
	return func(s *Server) {
		s.uploader = uploader
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func NewServer(records *carevault.Service, auth *carevault.Authenticator, tokens *TokenIssuer, options ...Option) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		records:  records,
		auth:     auth,
		tokens:   tokens,
		gatherer: prometheus.DefaultGatherer,
		logger:   monitoring.NewNopLogger(),
		metrics:  &monitoring.NoOpMetricsCollector{},
		now:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.WithComponent("httpapi")
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	if s.checker != nil {
		health.NewHandler(s.checker).Mount(s.router, "/healthz")
	}

	api := s.router.NewRoute().Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/analytics", s.handleAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/patients", s.handleListPatients).Methods(http.MethodGet)
	api.HandleFunc("/patients", s.handleAddPatient).Methods(http.MethodPost)
	api.HandleFunc("/patients/editable", s.handleListEditable).Methods(http.MethodGet)
	api.HandleFunc("/patients/{id:[0-9]+}", s.handleUpdatePatient).Methods(http.MethodPut)
	api.HandleFunc("/patients/{id:[0-9]+}", s.handleDeletePatient).Methods(http.MethodDelete)
	api.HandleFunc("/logs", s.handleViewLogs).Methods(http.MethodGet)
	api.HandleFunc("/export/{kind}.csv", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/export/{kind}/upload", s.handleUploadExport).Methods(http.MethodPost)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), monitoring.RequestIDKey, id)))
	})
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		route := routeTemplate(r)
		s.metrics.RecordTiming(monitoring.MetricHTTPRequestDuration, duration, map[string]string{
			"method": r.Method,
			"route":  route,
		})
		s.logger.WithContext(r.Context()).Info("Request processed",
			"method", r.Method,
			"route", route,
			"status_code", recorder.statusCode,
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			s.writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		session, err := s.tokens.Validate(token)
		if err != nil {
			s.logger.WithContext(r.Context()).Security("invalid_token", map[string]any{"error": err.Error()})
			s.writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		ctx = context.WithValue(ctx, monitoring.UserIDKey, session.Principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFrom returns the session the auth middleware stored in ctx.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(monitoring.RequestIDKey).(string)
	return id
}

// routeTemplate keeps metric labels bounded by using the matched path template.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
