package availability

import (
	"context"
	"time"

	"therabook/backend/internal/store"
)

// Span is a half-open UTC interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return !other.Start.Before(s.Start) && !other.End.After(s.End)
}

// Overlaps is the half-open interval test shared by the in-memory and
// storage checks: a.Start < b.End && b.Start < a.End. Touching intervals do
// not overlap.
func Overlaps(a, b Span) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func OverlapsAny(candidate Span, busy []Span) bool {
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// StorageOverlap runs the overlap check against storage inside the caller's
// transaction. It is the authoritative check at booking time.
type StorageOverlap struct{}

func (StorageOverlap) Overlaps(ctx context.Context, tx store.SessionTx, therapistID string, candidate Span) (bool, error) {
	rows, err := tx.FindOverlapping(ctx, therapistID, candidate.Start, candidate.End)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
