package domain

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

type Modality string

const (
	ModalityOnline   Modality = "online"
	ModalityInPerson Modality = "in_person"
)

func (m Modality) Valid() bool {
	return m == ModalityOnline || m == ModalityInPerson
}

type Therapist struct {
	bun.BaseModel `bun:"table:therapists,alias:t"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Timezone  string    `bun:"timezone,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (t *Therapist) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}

type Topic struct {
	bun.BaseModel `bun:"table:topics,alias:tp"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
}

type TherapistTopic struct {
	bun.BaseModel `bun:"table:therapist_topics,alias:tt"`

	TherapistID string `bun:"therapist_id,pk"`
	TopicID     string `bun:"topic_id,pk"`
}

// AvailabilityWindow is a recurring weekly interval in the therapist's zone.
// Weekday uses time.Weekday numbering (0=Sunday); StartMin and EndMin are
// minutes since local midnight with StartMin < EndMin. Overlapping windows
// for the same weekday are allowed.
type AvailabilityWindow struct {
	bun.BaseModel `bun:"table:availability_windows,alias:aw"`

	ID          string   `bun:"id,pk"`
	TherapistID string   `bun:"therapist_id,notnull"`
	Weekday     int16    `bun:"weekday,notnull"`
	StartMin    int      `bun:"start_min,notnull"`
	EndMin      int      `bun:"end_min,notnull"`
	Modality    Modality `bun:"modality,notnull"`
}

type SessionType struct {
	bun.BaseModel `bun:"table:session_types,alias:st"`

	ID          string   `bun:"id,pk"`
	TherapistID string   `bun:"therapist_id,notnull"`
	Name        string   `bun:"name,notnull"`
	DurationMin int      `bun:"duration_min,notnull"`
	Modality    Modality `bun:"modality,notnull"`
	PriceMinor  int64    `bun:"price_minor,notnull"`
}

func (s SessionType) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}
