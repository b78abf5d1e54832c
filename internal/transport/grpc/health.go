// Package grpc serves the gRPC side of therabook: health checking plus the
// shared unary interceptors.
package grpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name under which booking readiness is reported.
const ServiceName = "therabook.v1.Booking"

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthReporter publishes grpc.health.v1 status derived from a database ping.
type HealthReporter struct {
	srv    *health.Server
	db     pinger
	log    *slog.Logger
	mu     sync.Mutex
	status healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(db pinger, log *slog.Logger) *HealthReporter {
	if log == nil {
		log = slog.Default()
	}
	h := &HealthReporter{
		srv: health.NewServer(),
		db:  db,
		log: log.With(slog.String("component", "grpc.health")),
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Check pings the database once and updates the published status.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.db.PingContext(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	next := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		next = healthpb.HealthCheckResponse_NOT_SERVING
		if h.status != next {
			h.log.Warn("database ping failed", slog.Any("err", err))
		}
	}
	if h.status != next {
		h.log.Info("health status changed", slog.String("status", next.String()))
	}
	h.set(next)
	return next
}

// Run re-checks every interval until ctx is done, then marks everything
// NOT_SERVING so clients drain before the server stops.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

func (h *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.status = status
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
}

// DefaultRequestTimeoutInterceptor bounds unary calls that arrive without a
// deadline.
func DefaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}
