package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"therabook/backend/internal/domain"
)

// SessionTx is the view of storage available inside a therapist-locked
// transaction.
type SessionTx interface {
	GetSessionByIdempotencyKey(ctx context.Context, key string) (domain.Session, error)
	// FindOverlapping returns the non-canceled sessions of therapistID whose
	// [start,end) intersects [start,end).
	FindOverlapping(ctx context.Context, therapistID string, start, end time.Time) ([]domain.Session, error)
	CreateSession(ctx context.Context, s domain.Session) (domain.Session, error)
}

type SessionRepository interface {
	GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error)
	GetSessionByIdempotencyKey(ctx context.Context, key string) (domain.Session, error)
	// ListActiveSessions reads without locking; callers must tolerate a stale view.
	ListActiveSessions(ctx context.Context, therapistID string, windowStart, windowEnd time.Time) ([]domain.Session, error)
	// CancelSession cancels a non-canceled session. It returns ErrNotFound
	// when no row changed, either because the id is unknown or because the
	// session was already canceled.
	CancelSession(ctx context.Context, id uuid.UUID, canceledAt time.Time) (domain.Session, error)
	CancelExpiredPending(ctx context.Context, now time.Time) ([]domain.Session, error)

	InTherapistTransaction(ctx context.Context, therapistID string, fn func(ctx context.Context, tx SessionTx) error) error
}
