// Package rest exposes the booking API over HTTP.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/service/booking"
	"therabook/backend/internal/service/therapists"
)

type therapistService interface {
	ListTherapists(ctx context.Context, f therapists.ListFilter) ([]therapists.Profile, error)
	GetTherapist(ctx context.Context, id string) (therapists.Profile, error)
	ListSessionTypes(ctx context.Context, therapistID string) ([]domain.SessionType, error)
	ListTopics(ctx context.Context) ([]domain.Topic, error)
	WeeklyAvailability(ctx context.Context, q therapists.AvailabilityQuery) (therapists.WeeklyAvailability, error)
	WeeklyAvailabilityAll(ctx context.Context, q therapists.AvailabilityQuery) (therapists.AllAvailability, error)
}

type bookingService interface {
	Create(ctx context.Context, in booking.CreateInput, idempotencyKey string) (domain.Session, bool, error)
	Detail(ctx context.Context, id uuid.UUID) (booking.SessionDetail, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Session, error)
}

type Deps struct {
	Therapists therapistService
	Booking    bookingService
	// Ready reports whether dependencies (the database) are reachable.
	Ready          func(ctx context.Context) error
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Log            *slog.Logger
}

type Server struct {
	therapists therapistService
	booking    bookingService
	ready      func(ctx context.Context) error
	log        *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		therapists: d.Therapists,
		booking:    d.Booking,
		ready:      d.Ready,
		log:        log.With(slog.String("component", "http")),
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Route("/therapists", func(r chi.Router) {
			r.Get("/", s.listTherapists)
			r.Get("/{id}", s.getTherapist)
			r.Get("/{id}/session-types", s.listSessionTypes)
			r.Get("/{id}/availability", s.availability)
		})
		r.Get("/topics", s.listTopics)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Get("/{id}", s.getSession)
			r.Patch("/{id}/cancel", s.cancelSession)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, s.log, &domain.Error{Kind: domain.KindNotFound, Code: "NOT_FOUND", Message: "route not found"})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.log.Warn("readiness check failed", slog.Any("err", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
