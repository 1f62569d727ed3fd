package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mintenance/surveyor/pkg/domain/model"
	"github.com/mintenance/surveyor/pkg/service/metrics"
	"github.com/mintenance/surveyor/pkg/usecase"
	"github.com/mintenance/surveyor/pkg/utils/logging"
)

// AssessmentUseCase is the assessment surface the server needs
type AssessmentUseCase interface {
	AssessAndRecord(ctx context.Context, imageURLs []string, actx *model.AssessmentContext) (*model.AssessmentRecord, usecase.Decision, error)
}

// ValidationUseCase is the validation surface the server needs
type ValidationUseCase interface {
	CanAutoValidate(ctx context.Context, assessment *model.Assessment, id model.AssessmentID) usecase.Decision
	Review(ctx context.Context, id model.AssessmentID, input usecase.ReviewInput) (*model.AssessmentRecord, error)
}

// AssessmentReader loads stored records
type AssessmentReader interface {
	Get(ctx context.Context, id model.AssessmentID) (*model.AssessmentRecord, error)
}

// MetricsSource exposes aggregated sub-call counters
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

type Server struct {
	router     *chi.Mux
	assessment AssessmentUseCase
	validation ValidationUseCase
	records    AssessmentReader
	metrics    MetricsSource
	maxBody    int64
}

type Options func(*Server)

// WithMaxBodySize limits request bodies. Default is 1 MiB.
func WithMaxBodySize(n int64) Options {
	return func(s *Server) {
		s.maxBody = n
	}
}

// WithMetrics serves the counters at GET /metrics
func WithMetrics(m MetricsSource) Options {
	return func(s *Server) {
		s.metrics = m
	}
}

func New(assessment AssessmentUseCase, validation ValidationUseCase, records AssessmentReader, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:     r,
		assessment: assessment,
		validation: validation,
		records:    records,
		maxBody:    1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	if s.metrics != nil {
		r.Get("/metrics", s.metricsHandler)
	}

	r.Route("/api/v1/assessments", func(r chi.Router) {
		r.Post("/", s.createAssessment)
		r.Get("/{id}", s.getAssessment)
		r.Get("/{id}/auto-validation", s.getAutoValidation)
		r.Post("/{id}/review", s.reviewAssessment)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger attaches a logger carrying the request ID to the request context
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logging.With(r.Context(), logger)))
	})
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to write response", "error", err.Error())
	}
}
