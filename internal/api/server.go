// Package api provides the HTTP server for LevelUp.
// It exposes activity recording, progression status, the achievement
// catalog and the notification inbox as a JSON API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/levelup-learning/levelup/internal/app/engagement"
	"github.com/levelup-learning/levelup/internal/domain"
	"github.com/levelup-learning/levelup/internal/health"
	"github.com/levelup-learning/levelup/internal/infra/metrics"
)

// Version is reported by /api/version.
const Version = "0.3.0"

// HealthReporter is satisfied by *health.Checker.
type HealthReporter interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// Options configures the server. Zero values use the defaults.
type Options struct {
	// AllowedOrigins for CORS. Default "*".
	AllowedOrigins []string
	// ActivityRate is the sustained per-user activity rate (events/sec).
	// Zero disables limiting.
	ActivityRate  float64
	ActivityBurst int
	// RequestTimeout bounds every request. Default 30s.
	RequestTimeout time.Duration
	Metrics        bool
	Logger         *logrus.Entry
}

// Server is the LevelUp HTTP API server.
type Server struct {
	svc      *engagement.Service
	health   HealthReporter
	opts     Options
	limiter  *userLimiter
	validate *validator.Validate
	log      *logrus.Entry
}

// NewServer creates a new API server. health may be nil.
func NewServer(svc *engagement.Service, health HealthReporter, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	s := &Server{
		svc:      svc,
		health:   health,
		opts:     opts,
		validate: v,
		log:      log.WithField("component", "api"),
	}
	if opts.ActivityRate > 0 {
		s.limiter = newUserLimiter(opts.ActivityRate, opts.ActivityBurst)
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.countRequests)

	r.Get("/health", s.handleHealth)

	r.Get("/api/status", s.handleStatus)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":         Version,
			"catalog_version": s.svc.Engine().Catalog().Version,
		})
	})

	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Get("/achievements", s.handleUserAchievements)
			r.Get("/notifications", s.handleNotifications)
			r.Post("/notifications/{nid}/shown", s.handleNotificationShown)
		})

		r.Post("/progress/activities", s.handleRecordActivity)
		r.Post("/progress/simple-xp", s.handleAwardXP)
		r.Get("/progress/xp-status", s.handleXPStatus)

		r.Put("/modules/{moduleId}", s.handlePutModule)
		r.Get("/modules/{moduleId}/stats", s.handleModuleStats)

		r.Get("/achievements", s.handleCatalog)
		r.Get("/levels", s.handleLevel)
		r.Post("/notifications/demo", s.handleDemo)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.UserCount(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "LevelUp is running",
		"users":  users,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// countRequests records every response by route pattern and status code.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, errType, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeDomainError maps service errors onto status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidActivity), errors.Is(err, domain.ErrInvalidModule):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrStateUnavailable), errors.Is(err, domain.ErrModuleNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrDuplicateActivity), errors.Is(err, domain.ErrUserExists):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrSinkUnavailable):
		writeError(w, http.StatusNotImplemented, "unavailable", err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
