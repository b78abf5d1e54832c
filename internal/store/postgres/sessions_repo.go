package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/store"
)

type SessionRepo struct {
	db *bun.DB
}

func NewSessionRepo(db *bun.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

type sessionTx struct {
	tx bun.Tx
}

// InTherapistTransaction runs fn in a transaction holding the therapist's
// advisory lock. Any error from fn rolls the transaction back.
func (r *SessionRepo) InTherapistTransaction(ctx context.Context, therapistID string, fn func(ctx context.Context, tx store.SessionTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockTherapist(ctx, tx, therapistID); err != nil {
			return err
		}
		return fn(ctx, sessionTx{tx: tx})
	})
}

func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	var s domain.Session
	err := r.db.NewSelect().
		Model(&s).
		Where("s.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Session{}, mapError(err)
	}
	return s, nil
}

func (r *SessionRepo) GetSessionByIdempotencyKey(ctx context.Context, key string) (domain.Session, error) {
	return sessionByKey(ctx, r.db, key)
}

func (r *SessionRepo) ListActiveSessions(ctx context.Context, therapistID string, windowStart, windowEnd time.Time) ([]domain.Session, error) {
	return overlapping(ctx, r.db, therapistID, windowStart, windowEnd)
}

func (r *SessionRepo) CancelSession(ctx context.Context, id uuid.UUID, canceledAt time.Time) (domain.Session, error) {
	var s domain.Session
	err := r.db.NewUpdate().
		Model(&s).
		Set("status = ?", domain.SessionStatusCanceled).
		Set("canceled_at = ?", canceledAt.UTC()).
		Where("s.id = ?", id).
		Where("s.status <> ?", domain.SessionStatusCanceled).
		Returning("*").
		Scan(ctx)
	if err != nil {
		return domain.Session{}, mapError(err)
	}
	return s, nil
}

// CancelExpiredPending cancels every PENDING session that started before
// now and returns the rows it changed.
func (r *SessionRepo) CancelExpiredPending(ctx context.Context, now time.Time) ([]domain.Session, error) {
	var rows []domain.Session
	now = now.UTC()
	err := r.db.NewUpdate().
		Model((*domain.Session)(nil)).
		Set("status = ?", domain.SessionStatusCanceled).
		Set("canceled_at = ?", now).
		Where("s.status = ?", domain.SessionStatusPending).
		Where("s.start_utc < ?", now).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t sessionTx) GetSessionByIdempotencyKey(ctx context.Context, key string) (domain.Session, error) {
	return sessionByKey(ctx, t.tx, key)
}

func (t sessionTx) FindOverlapping(ctx context.Context, therapistID string, start, end time.Time) ([]domain.Session, error) {
	return overlapping(ctx, t.tx, therapistID, start, end)
}

func (t sessionTx) CreateSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	m := s
	m.StartUTC = s.StartUTC.UTC()
	m.EndUTC = s.EndUTC.UTC()
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Session{}, mapError(err)
	}
	return m, nil
}

func sessionByKey(ctx context.Context, db bun.IDB, key string) (domain.Session, error) {
	var s domain.Session
	err := db.NewSelect().
		Model(&s).
		Where("s.idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Session{}, mapError(err)
	}
	return s, nil
}

// overlapping is the storage form of the half-open overlap test:
// existing.start < end AND start < existing.end, ignoring canceled rows.
func overlapping(ctx context.Context, db bun.IDB, therapistID string, start, end time.Time) ([]domain.Session, error) {
	var rows []domain.Session
	err := db.NewSelect().
		Model(&rows).
		Where("s.therapist_id = ?", therapistID).
		Where("s.status <> ?", domain.SessionStatusCanceled).
		Where("s.start_utc < ?", end.UTC()).
		Where("s.end_utc > ?", start.UTC()).
		OrderExpr("s.start_utc ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
