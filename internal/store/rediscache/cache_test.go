package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/store"
)

type countingSource struct {
	therapistCalls int
	windowCalls    int
	typeCalls      int
}

func (s *countingSource) GetTherapist(ctx context.Context, id string) (domain.Therapist, error) {
	s.therapistCalls++
	if id != "t1" {
		return domain.Therapist{}, store.ErrNotFound
	}
	return domain.Therapist{ID: "t1", Name: "Lucía", Timezone: "Europe/Madrid"}, nil
}

func (s *countingSource) ListAvailabilityWindows(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error) {
	s.windowCalls++
	return []domain.AvailabilityWindow{
		{ID: "w1", TherapistID: therapistID, Weekday: 3, StartMin: 480, EndMin: 960, Modality: modality},
	}, nil
}

func (s *countingSource) GetSessionType(ctx context.Context, id string) (domain.SessionType, error) {
	s.typeCalls++
	return domain.SessionType{ID: id, TherapistID: "t1", DurationMin: 60, Modality: domain.ModalityOnline}, nil
}

func newCache(t *testing.T) (*Cache, *countingSource, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	src := &countingSource{}
	return New(src, rdb, time.Minute, nil), src, mr
}

func TestCache_ReadThroughAndHit(t *testing.T) {
	c, src, mr := newCache(t)
	ctx := context.Background()

	first, err := c.GetTherapist(ctx, "t1")
	require.NoError(t, err)
	second, err := c.GetTherapist(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, first.Timezone, second.Timezone)
	require.Equal(t, 1, src.therapistCalls)
	require.True(t, mr.Exists("therabook:therapist:t1"))

	w1, err := c.ListAvailabilityWindows(ctx, "t1", domain.ModalityOnline)
	require.NoError(t, err)
	w2, err := c.ListAvailabilityWindows(ctx, "t1", domain.ModalityOnline)
	require.NoError(t, err)
	require.Equal(t, w1, w2)
	require.Equal(t, 1, src.windowCalls)

	_, err = c.ListAvailabilityWindows(ctx, "t1", domain.ModalityInPerson)
	require.NoError(t, err)
	require.Equal(t, 2, src.windowCalls)

	st, err := c.GetSessionType(ctx, "st60")
	require.NoError(t, err)
	_, err = c.GetSessionType(ctx, "st60")
	require.NoError(t, err)
	require.Equal(t, 60, st.DurationMin)
	require.Equal(t, 1, src.typeCalls)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c, src, mr := newCache(t)
	ctx := context.Background()

	_, err := c.GetTherapist(ctx, "t1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = c.GetTherapist(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 2, src.therapistCalls)
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c, src, mr := newCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.GetTherapist(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	}
	require.Equal(t, 2, src.therapistCalls)
	require.False(t, mr.Exists("therabook:therapist:missing"))
}

func TestCache_FallsThroughWhenRedisIsDown(t *testing.T) {
	c, src, mr := newCache(t)
	mr.Close()

	got, err := c.GetTherapist(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ID)
	require.Equal(t, 1, src.therapistCalls)
}

func TestCache_DropsCorruptEntries(t *testing.T) {
	c, src, mr := newCache(t)
	require.NoError(t, mr.Set("therabook:therapist:t1", "{not json"))

	got, err := c.GetTherapist(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "Europe/Madrid", got.Timezone)
	require.Equal(t, 1, src.therapistCalls)
}
