package store

import (
	"context"

	"therabook/backend/internal/domain"
)

type TherapistFilter struct {
	TopicIDs   []string
	RequireAll bool
	Modality   domain.Modality
	// Limit <= 0 means no limit.
	Limit  int
	Offset int
}

type TherapistRepository interface {
	GetTherapist(ctx context.Context, id string) (domain.Therapist, error)
	ListTherapists(ctx context.Context, filter TherapistFilter) ([]domain.Therapist, error)
	ListTopics(ctx context.Context) ([]domain.Topic, error)
	ListTopicsByTherapist(ctx context.Context, therapistIDs []string) (map[string][]domain.Topic, error)

	ListAvailabilityWindows(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error)

	GetSessionType(ctx context.Context, id string) (domain.SessionType, error)
	ListSessionTypes(ctx context.Context, therapistID string) ([]domain.SessionType, error)
	ListSessionTypesByTherapist(ctx context.Context, therapistIDs []string) (map[string][]domain.SessionType, error)
}
