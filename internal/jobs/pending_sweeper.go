// Package jobs holds background work that runs alongside the API.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"therabook/backend/internal/domain"
)

const fallbackSweepSpec = "@every 5m"

// ExpiredPendingCanceler cancels PENDING sessions whose start has passed.
type ExpiredPendingCanceler interface {
	CancelExpiredPending(ctx context.Context, now time.Time) ([]domain.Session, error)
}

type sweepMetrics interface {
	AddSwept(n int)
}

// PendingSweeper periodically cancels PENDING sessions that were never
// confirmed before their start. The sweep is a single conditional UPDATE, so
// running it on several instances at once is harmless.
type PendingSweeper struct {
	store   ExpiredPendingCanceler
	spec    string
	now     func() time.Time
	log     *slog.Logger
	metrics sweepMetrics

	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewPendingSweeper(store ExpiredPendingCanceler, spec string, log *slog.Logger, m sweepMetrics) *PendingSweeper {
	if log == nil {
		log = slog.Default()
	}
	return &PendingSweeper{
		store:   store,
		spec:    spec,
		now:     time.Now,
		log:     log.With(slog.String("component", "pending_sweeper")),
		metrics: m,
	}
}

func (s *PendingSweeper) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() { _, _ = s.RunOnce(runCtx) }); err != nil {
		s.log.Warn("invalid sweep schedule; falling back", slog.String("spec", s.spec), slog.String("fallback", fallbackSweepSpec), slog.Any("err", err))
		c = cron.New()
		_, _ = c.AddFunc(fallbackSweepSpec, func() { _, _ = s.RunOnce(runCtx) })
	}
	c.Start()
	s.cron = c
	s.log.Info("pending sweeper started", slog.String("spec", s.spec))
}

// Stop cancels any in-flight sweep and waits for it to return.
func (s *PendingSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce performs a single sweep and reports how many sessions it canceled.
func (s *PendingSweeper) RunOnce(ctx context.Context) (int, error) {
	rows, err := s.store.CancelExpiredPending(ctx, s.now().UTC())
	if err != nil {
		s.log.Error("pending sweep failed", slog.Any("err", err))
		return 0, err
	}
	for _, row := range rows {
		s.log.Info("expired pending session canceled",
			slog.String("session_id", row.ID.String()),
			slog.String("therapist_id", row.TherapistID),
			slog.Time("start_utc", row.StartUTC),
		)
	}
	if len(rows) > 0 {
		s.log.Info("pending sweep finished", slog.Int("canceled", len(rows)))
	}
	if s.metrics != nil {
		s.metrics.AddSwept(len(rows))
	}
	return len(rows), nil
}
