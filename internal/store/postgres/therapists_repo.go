package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/store"
)

type TherapistRepo struct {
	db *bun.DB
}

func NewTherapistRepo(db *bun.DB) *TherapistRepo {
	return &TherapistRepo{db: db}
}

func (r *TherapistRepo) GetTherapist(ctx context.Context, id string) (domain.Therapist, error) {
	var t domain.Therapist
	err := r.db.NewSelect().
		Model(&t).
		Where("t.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Therapist{}, mapError(err)
	}
	return t, nil
}

func (r *TherapistRepo) ListTherapists(ctx context.Context, f store.TherapistFilter) ([]domain.Therapist, error) {
	var rows []domain.Therapist
	q := r.db.NewSelect().Model(&rows)

	if topics := distinct(f.TopicIDs); len(topics) > 0 {
		if f.RequireAll {
			q = q.Where("(SELECT count(DISTINCT tt.topic_id) FROM therapist_topics AS tt WHERE tt.therapist_id = t.id AND tt.topic_id IN (?)) = ?",
				bun.In(topics), len(topics))
		} else {
			q = q.Where("EXISTS (SELECT 1 FROM therapist_topics AS tt WHERE tt.therapist_id = t.id AND tt.topic_id IN (?))",
				bun.In(topics))
		}
	}
	if f.Modality != "" {
		q = q.Where("EXISTS (SELECT 1 FROM session_types AS st WHERE st.therapist_id = t.id AND st.modality = ?)", f.Modality)
	}

	q = q.OrderExpr("t.name ASC, t.id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TherapistRepo) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	var rows []domain.Topic
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("tp.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type therapistTopicRow struct {
	TherapistID string `bun:"therapist_id"`
	ID          string `bun:"id"`
	Name        string `bun:"name"`
}

func (r *TherapistRepo) ListTopicsByTherapist(ctx context.Context, therapistIDs []string) (map[string][]domain.Topic, error) {
	out := make(map[string][]domain.Topic, len(therapistIDs))
	if len(therapistIDs) == 0 {
		return out, nil
	}

	var rows []therapistTopicRow
	err := r.db.NewSelect().
		TableExpr("therapist_topics AS tt").
		ColumnExpr("tt.therapist_id, tp.id, tp.name").
		Join("JOIN topics AS tp ON tp.id = tt.topic_id").
		Where("tt.therapist_id IN (?)", bun.In(therapistIDs)).
		OrderExpr("tp.name ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.TherapistID] = append(out[row.TherapistID], domain.Topic{ID: row.ID, Name: row.Name})
	}
	return out, nil
}

// ListAvailabilityWindows returns windows ordered by weekday, then start.
func (r *TherapistRepo) ListAvailabilityWindows(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error) {
	var rows []domain.AvailabilityWindow
	err := r.db.NewSelect().
		Model(&rows).
		Where("aw.therapist_id = ?", therapistID).
		Where("aw.modality = ?", modality).
		OrderExpr("aw.weekday ASC, aw.start_min ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TherapistRepo) GetSessionType(ctx context.Context, id string) (domain.SessionType, error) {
	var st domain.SessionType
	err := r.db.NewSelect().
		Model(&st).
		Where("st.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.SessionType{}, mapError(err)
	}
	return st, nil
}

func (r *TherapistRepo) ListSessionTypes(ctx context.Context, therapistID string) ([]domain.SessionType, error) {
	var rows []domain.SessionType
	err := r.db.NewSelect().
		Model(&rows).
		Where("st.therapist_id = ?", therapistID).
		OrderExpr("st.duration_min ASC, st.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TherapistRepo) ListSessionTypesByTherapist(ctx context.Context, therapistIDs []string) (map[string][]domain.SessionType, error) {
	out := make(map[string][]domain.SessionType, len(therapistIDs))
	if len(therapistIDs) == 0 {
		return out, nil
	}

	var rows []domain.SessionType
	err := r.db.NewSelect().
		Model(&rows).
		Where("st.therapist_id IN (?)", bun.In(therapistIDs)).
		OrderExpr("st.duration_min ASC, st.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range rows {
		out[st.TherapistID] = append(out[st.TherapistID], st)
	}
	return out, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
