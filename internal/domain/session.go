package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "PENDING"
	SessionStatusConfirmed SessionStatus = "CONFIRMED"
	SessionStatusCanceled  SessionStatus = "CANCELED"
)

// Session is a booking. EndUTC is always StartUTC plus the session type's
// duration, and IdempotencyKey is unique across all sessions.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID             uuid.UUID     `bun:"id,pk,type:uuid"`
	TherapistID    string        `bun:"therapist_id,notnull"`
	SessionTypeID  string        `bun:"session_type_id,notnull"`
	PatientID      string        `bun:"patient_id,notnull"`
	PatientName    string        `bun:"patient_name,notnull"`
	PatientEmail   string        `bun:"patient_email,notnull"`
	StartUTC       time.Time     `bun:"start_utc,notnull"`
	EndUTC         time.Time     `bun:"end_utc,notnull"`
	PatientTz      string        `bun:"patient_tz,notnull"`
	Status         SessionStatus `bun:"status,notnull"`
	IdempotencyKey string        `bun:"idempotency_key,notnull,unique"`
	CreatedAt      time.Time     `bun:"created_at,notnull"`
	CanceledAt     *time.Time    `bun:"canceled_at"`
}

func (s *Session) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if s.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		s.ID = id
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (s Session) Active() bool {
	return s.Status != SessionStatusCanceled
}
