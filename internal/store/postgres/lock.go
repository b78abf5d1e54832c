package postgres

import (
	"context"
	"hash/fnv"

	"github.com/uptrace/bun"
)

// LockKey maps a therapist id to a non-negative 31-bit advisory lock key
// using FNV-1a. Two therapists may share a key, which only serializes their
// bookings with each other. The overlap query still filters by therapist_id,
// so a collision never changes its result.
func LockKey(therapistID string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(therapistID))
	return int64(h.Sum32() & 0x7fffffff)
}

// lockTherapist takes the transaction-scoped advisory lock for the
// therapist. It is released when tx commits or rolls back.
func lockTherapist(ctx context.Context, tx bun.Tx, therapistID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(?)", LockKey(therapistID)).Exec(ctx)
	return err
}
