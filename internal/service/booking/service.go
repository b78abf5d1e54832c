package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"therabook/backend/internal/availability"
	"therabook/backend/internal/domain"
	"therabook/backend/internal/metrics"
	"therabook/backend/internal/store"
	"therabook/backend/internal/tzmath"
)

type SessionTypeSource interface {
	GetSessionType(ctx context.Context, id string) (domain.SessionType, error)
}

type WindowExpander interface {
	WeekContaining(ctx context.Context, therapistID string, at time.Time, modality domain.Modality) (availability.Week, error)
}

type OverlapDetector interface {
	Overlaps(ctx context.Context, tx store.SessionTx, therapistID string, candidate availability.Span) (bool, error)
}

// TherapistLock runs fn in a transaction that holds the therapist's
// exclusive booking lock until it ends.
type TherapistLock interface {
	InTherapistTransaction(ctx context.Context, therapistID string, fn func(ctx context.Context, tx store.SessionTx) error) error
}

type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error)
	GetSessionByIdempotencyKey(ctx context.Context, key string) (domain.Session, error)
	CancelSession(ctx context.Context, id uuid.UUID, canceledAt time.Time) (domain.Session, error)
}

type Deps struct {
	SessionTypes SessionTypeSource
	Expander     WindowExpander
	Overlap      OverlapDetector
	Lock         TherapistLock
	Sessions     SessionStore
	LeadTime     availability.LeadTime
	Now          func() time.Time
	Log          *slog.Logger
	Metrics      *metrics.Metrics
}

type Service struct {
	types    SessionTypeSource
	expander WindowExpander
	overlap  OverlapDetector
	lock     TherapistLock
	sessions SessionStore
	lead     availability.LeadTime
	now      func() time.Time
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	overlap := d.Overlap
	if overlap == nil {
		overlap = availability.StorageOverlap{}
	}
	return &Service{
		types:    d.SessionTypes,
		expander: d.Expander,
		overlap:  overlap,
		lock:     d.Lock,
		sessions: d.Sessions,
		lead:     d.LeadTime,
		now:      now,
		log:      log.With(slog.String("component", "booking")),
		metrics:  d.Metrics,
	}
}

type CreateInput struct {
	TherapistID   string
	SessionTypeID string
	StartUTC      time.Time
	PatientID     string
	PatientName   string
	PatientEmail  string
	PatientTz     string
}

// Create books a session. The returned bool is false when the key was
// already used, in which case the stored session is returned unchanged and
// the input is not validated.
func (s *Service) Create(ctx context.Context, in CreateInput, idempotencyKey string) (domain.Session, bool, error) {
	key, err := NormalizeIdempotencyKey(idempotencyKey)
	if err != nil {
		s.metrics.ObserveBooking(metrics.OutcomeRejected)
		return domain.Session{}, false, err
	}

	existing, err := s.sessions.GetSessionByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		s.metrics.ObserveBooking(metrics.OutcomeReplayed)
		return existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		s.metrics.ObserveBooking(metrics.OutcomeError)
		return domain.Session{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}

	session, err := s.validate(ctx, in)
	if err != nil {
		s.observeFailure(err)
		return domain.Session{}, false, err
	}
	session.IdempotencyKey = key

	out, created, err := s.commit(ctx, session)
	if err != nil {
		s.observeFailure(err)
		if !errors.Is(err, domain.ErrSlotTaken) {
			s.log.Error("booking failed",
				slog.Any("err", err),
				slog.String("therapist_id", session.TherapistID),
				slog.Time("start_utc", session.StartUTC),
			)
		}
		return domain.Session{}, false, err
	}

	if created {
		s.metrics.ObserveBooking(metrics.OutcomeCreated)
		s.log.Info("session booked",
			slog.String("session_id", out.ID.String()),
			slog.String("therapist_id", out.TherapistID),
			slog.Time("start_utc", out.StartUTC),
			slog.Time("end_utc", out.EndUTC),
		)
	} else {
		s.metrics.ObserveBooking(metrics.OutcomeReplayed)
	}
	return out, created, nil
}

// validate resolves the session type, derives the end instant and checks
// lead time and window containment. It returns the session to insert.
func (s *Service) validate(ctx context.Context, in CreateInput) (domain.Session, error) {
	therapistID := strings.TrimSpace(in.TherapistID)
	if therapistID == "" {
		return domain.Session{}, domain.InvalidArgument("therapistId is required")
	}
	sessionTypeID := strings.TrimSpace(in.SessionTypeID)
	if sessionTypeID == "" {
		return domain.Session{}, domain.InvalidArgument("sessionTypeId is required")
	}
	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return domain.Session{}, domain.InvalidArgument("patientId is required")
	}
	patientName := strings.TrimSpace(in.PatientName)
	if patientName == "" {
		return domain.Session{}, domain.InvalidArgument("patientName is required")
	}
	email := strings.TrimSpace(in.PatientEmail)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Session{}, domain.InvalidArgument("patientEmail must be a valid email address")
	}
	patientTz := strings.TrimSpace(in.PatientTz)
	if _, err := tzmath.LoadZone(patientTz); err != nil {
		return domain.Session{}, err
	}
	if in.StartUTC.IsZero() {
		return domain.Session{}, fmt.Errorf("%w: startUtc is required", domain.ErrInvalidDateTime)
	}

	st, err := s.types.GetSessionType(ctx, sessionTypeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrSessionTypeUnknown
		}
		return domain.Session{}, fmt.Errorf("load session type: %w", err)
	}
	if st.TherapistID != therapistID {
		return domain.Session{}, domain.ErrSessionTypeUnknown
	}

	start := in.StartUTC.UTC()
	span := availability.Span{Start: start, End: start.Add(st.Duration())}

	if !s.lead.Allows(span.Start, s.now().UTC()) {
		return domain.Session{}, domain.ErrInsufficientLeadTime
	}

	week, err := s.expander.WeekContaining(ctx, therapistID, span.Start, st.Modality)
	if err != nil {
		return domain.Session{}, err
	}
	if _, ok := week.Containing(span); !ok {
		return domain.Session{}, domain.ErrOutOfWindow
	}

	return domain.Session{
		TherapistID:   therapistID,
		SessionTypeID: st.ID,
		PatientID:     patientID,
		PatientName:   patientName,
		PatientEmail:  email,
		StartUTC:      span.Start,
		EndUTC:        span.End,
		PatientTz:     patientTz,
		Status:        domain.SessionStatusConfirmed,
	}, nil
}

func (s *Service) commit(ctx context.Context, session domain.Session) (domain.Session, bool, error) {
	var (
		out     domain.Session
		created bool
	)
	err := s.lock.InTherapistTransaction(ctx, session.TherapistID, func(ctx context.Context, tx store.SessionTx) error {
		// A concurrent request with the same key may have committed while
		// this one waited for the lock.
		existing, err := tx.GetSessionByIdempotencyKey(ctx, session.IdempotencyKey)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup idempotency key: %w", err)
		}

		taken, err := s.overlap.Overlaps(ctx, tx, session.TherapistID, availability.Span{Start: session.StartUTC, End: session.EndUTC})
		if err != nil {
			return fmt.Errorf("overlap check: %w", err)
		}
		if taken {
			return domain.ErrSlotTaken
		}

		inserted, err := tx.CreateSession(ctx, session)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return domain.ErrSlotTaken
			}
			return err
		}
		out = inserted
		created = true
		return nil
	})
	if err == nil {
		return out, created, nil
	}

	// The same key was committed under a different therapist lock.
	if errors.Is(err, store.ErrDuplicateKey) {
		existing, lookupErr := s.sessions.GetSessionByIdempotencyKey(ctx, session.IdempotencyKey)
		if lookupErr != nil {
			return domain.Session{}, false, fmt.Errorf("reload after duplicate key: %w", lookupErr)
		}
		return existing, false, nil
	}
	return domain.Session{}, false, err
}

func (s *Service) observeFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrSlotTaken):
		s.metrics.ObserveBooking(metrics.OutcomeSlotTaken)
	case errors.Is(err, domain.ErrOutOfWindow):
		s.metrics.ObserveBooking(metrics.OutcomeOutOfWindow)
	default:
		if _, ok := domain.AsError(err); ok {
			s.metrics.ObserveBooking(metrics.OutcomeRejected)
			return
		}
		s.metrics.ObserveBooking(metrics.OutcomeError)
	}
}

// NormalizeIdempotencyKey validates key as a UUID and returns its canonical
// lowercase form.
func NormalizeIdempotencyKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", domain.ErrInvalidIdempotencyKey
	}
	id, err := uuid.Parse(key)
	if err != nil || len(key) != 36 {
		return "", domain.ErrInvalidIdempotencyKey
	}
	return id.String(), nil
}

// SessionDetail is a session with its times expressed in the patient's zone.
type SessionDetail struct {
	Session     domain.Session
	StartLocal  time.Time
	EndLocal    time.Time
	SessionType *domain.SessionType
}

func (s *Service) Detail(ctx context.Context, id uuid.UUID) (SessionDetail, error) {
	session, err := s.get(ctx, id)
	if err != nil {
		return SessionDetail{}, err
	}

	loc, err := tzmath.LoadZone(session.PatientTz)
	if err != nil {
		s.log.Warn("stored patient timezone invalid; using UTC",
			slog.String("session_id", session.ID.String()),
			slog.String("patient_tz", session.PatientTz),
		)
		loc = time.UTC
	}

	detail := SessionDetail{
		Session:    session,
		StartLocal: session.StartUTC.In(loc),
		EndLocal:   session.EndUTC.In(loc),
	}

	st, err := s.types.GetSessionType(ctx, session.SessionTypeID)
	switch {
	case err == nil:
		detail.SessionType = &st
	case !errors.Is(err, store.ErrNotFound):
		return SessionDetail{}, fmt.Errorf("load session type: %w", err)
	}
	return detail, nil
}

// Cancel marks the session canceled. Canceling a canceled session returns
// it unchanged without writing.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	session, err := s.get(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Status == domain.SessionStatusCanceled {
		s.metrics.ObserveCancel("noop")
		return session, nil
	}

	out, err := s.sessions.CancelSession(ctx, id, s.now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		// Lost a race with another cancel; report the winner's row.
		s.metrics.ObserveCancel("noop")
		return s.get(ctx, id)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("cancel session: %w", err)
	}

	s.metrics.ObserveCancel("canceled")
	s.log.Info("session canceled",
		slog.String("session_id", out.ID.String()),
		slog.String("therapist_id", out.TherapistID),
	)
	return out, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	if id == uuid.Nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}
