package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/store"
)

type fakeSource struct {
	getTherapistFn func(ctx context.Context, id string) (domain.Therapist, error)
	listWindowsFn  func(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error)
}

func (f *fakeSource) GetTherapist(ctx context.Context, id string) (domain.Therapist, error) {
	if f.getTherapistFn == nil {
		panic("GetTherapist not configured")
	}
	return f.getTherapistFn(ctx, id)
}

func (f *fakeSource) ListAvailabilityWindows(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error) {
	if f.listWindowsFn == nil {
		panic("ListAvailabilityWindows not configured")
	}
	return f.listWindowsFn(ctx, therapistID, modality)
}

func sourceWith(tz string, windows ...domain.AvailabilityWindow) *fakeSource {
	return &fakeSource{
		getTherapistFn: func(ctx context.Context, id string) (domain.Therapist, error) {
			return domain.Therapist{ID: id, Name: "T", Timezone: tz}, nil
		},
		listWindowsFn: func(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error) {
			var out []domain.AvailabilityWindow
			for _, w := range windows {
				if w.Modality == modality {
					out = append(out, w)
				}
			}
			return out, nil
		},
	}
}

func TestExpand_MadridWednesday(t *testing.T) {
	src := sourceWith("Europe/Madrid", domain.AvailabilityWindow{
		ID: "w1", TherapistID: "t1", Weekday: int16(time.Wednesday), StartMin: 8 * 60, EndMin: 16 * 60, Modality: domain.ModalityOnline,
	})

	week, err := NewExpander(src).Expand(context.Background(), "t1", civil.Date{Year: 2024, Month: time.January, Day: 15}, domain.ModalityOnline)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}

	ws := week.Windows[time.Wednesday]
	if len(ws) != 1 {
		t.Fatalf("wednesday windows = %d, want 1", len(ws))
	}
	w := ws[0]
	if w.Date.String() != "2024-01-17" {
		t.Fatalf("date = %s, want 2024-01-17", w.Date)
	}
	if !w.StartUTC.Equal(utc(2024, 1, 17, 7, 0)) || !w.EndUTC.Equal(utc(2024, 1, 17, 15, 0)) {
		t.Fatalf("utc = %v..%v", w.StartUTC, w.EndUTC)
	}
	if w.StartTime != "08:00" || w.EndTime != "16:00" || w.DurationMin != 480 {
		t.Fatalf("local = %s..%s (%d min)", w.StartTime, w.EndTime, w.DurationMin)
	}
}

func TestExpand_NormalizesWeekStartToMonday(t *testing.T) {
	src := sourceWith("UTC", domain.AvailabilityWindow{
		ID: "w1", Weekday: int16(time.Monday), StartMin: 540, EndMin: 600, Modality: domain.ModalityOnline,
	})

	week, err := NewExpander(src).Expand(context.Background(), "t1", civil.Date{Year: 2024, Month: time.January, Day: 18}, domain.ModalityOnline)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	if week.Start.String() != "2024-01-15" {
		t.Fatalf("week start = %s, want 2024-01-15", week.Start)
	}
	if got := week.Windows[time.Monday][0].Date.String(); got != "2024-01-15" {
		t.Fatalf("monday date = %s", got)
	}
}

func TestExpand_SundayLandsAtEndOfWeek(t *testing.T) {
	src := sourceWith("America/New_York", domain.AvailabilityWindow{
		ID: "w1", Weekday: int16(time.Sunday), StartMin: 0, EndMin: 6 * 60, Modality: domain.ModalityOnline,
	})

	week, err := NewExpander(src).Expand(context.Background(), "t1", civil.Date{Year: 2024, Month: time.March, Day: 4}, domain.ModalityOnline)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	w := week.Windows[time.Sunday][0]
	if w.Date.String() != "2024-03-10" {
		t.Fatalf("date = %s, want 2024-03-10", w.Date)
	}
	if w.StartTime != "00:00" || w.EndTime != "06:00" {
		t.Fatalf("local = %s..%s", w.StartTime, w.EndTime)
	}
	if w.DurationMin != 300 {
		t.Fatalf("duration = %d min, want 300", w.DurationMin)
	}
}

func TestExpand_EmptyWhenNoMatchingWindows(t *testing.T) {
	src := sourceWith("UTC", domain.AvailabilityWindow{
		ID: "w1", Weekday: 1, StartMin: 540, EndMin: 600, Modality: domain.ModalityInPerson,
	})

	week, err := NewExpander(src).Expand(context.Background(), "t1", civil.Date{Year: 2024, Month: time.January, Day: 15}, domain.ModalityOnline)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	if len(week.Windows) != 0 || len(week.All()) != 0 {
		t.Fatalf("windows = %v, want empty", week.Windows)
	}
	if _, ok := week.Bounds(); ok {
		t.Fatalf("Bounds on empty week reported ok")
	}
}

func TestExpand_TherapistNotFound(t *testing.T) {
	src := &fakeSource{
		getTherapistFn: func(ctx context.Context, id string) (domain.Therapist, error) {
			return domain.Therapist{}, store.ErrNotFound
		},
	}
	_, err := NewExpander(src).Expand(context.Background(), "nope", civil.Date{Year: 2024, Month: time.January, Day: 15}, domain.ModalityOnline)
	if !errors.Is(err, domain.ErrTherapistNotFound) {
		t.Fatalf("err = %v, want ErrTherapistNotFound", err)
	}
}

func TestWeekContaining_UsesTherapistLocalDate(t *testing.T) {
	// Monday 02:00 UTC is still Sunday in New York, so the week is the previous one.
	src := sourceWith("America/New_York", domain.AvailabilityWindow{
		ID: "w1", Weekday: int16(time.Sunday), StartMin: 18 * 60, EndMin: 23 * 60, Modality: domain.ModalityOnline,
	})

	week, err := NewExpander(src).WeekContaining(context.Background(), "t1", utc(2024, 1, 15, 2, 0), domain.ModalityOnline)
	if err != nil {
		t.Fatalf("WeekContaining error: %v", err)
	}
	if week.Start.String() != "2024-01-08" {
		t.Fatalf("week start = %s, want 2024-01-08", week.Start)
	}
	span := Span{Start: utc(2024, 1, 15, 1, 0), End: utc(2024, 1, 15, 2, 0)}
	if _, ok := week.Containing(span); !ok {
		t.Fatalf("expected Sunday evening window to contain %v", span)
	}
}

func TestWeek_AllOrdersByStart(t *testing.T) {
	src := sourceWith("UTC",
		domain.AvailabilityWindow{ID: "fri", Weekday: 5, StartMin: 540, EndMin: 600, Modality: domain.ModalityOnline},
		domain.AvailabilityWindow{ID: "mon-late", Weekday: 1, StartMin: 900, EndMin: 960, Modality: domain.ModalityOnline},
		domain.AvailabilityWindow{ID: "mon", Weekday: 1, StartMin: 540, EndMin: 600, Modality: domain.ModalityOnline},
	)
	week, err := NewExpander(src).Expand(context.Background(), "t1", civil.Date{Year: 2024, Month: time.January, Day: 15}, domain.ModalityOnline)
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	all := week.All()
	if len(all) != 3 || all[0].ID != "mon" || all[1].ID != "mon-late" || all[2].ID != "fri" {
		t.Fatalf("order = %+v", all)
	}
	b, ok := week.Bounds()
	if !ok || !b.Start.Equal(utc(2024, 1, 15, 9, 0)) || !b.End.Equal(utc(2024, 1, 19, 10, 0)) {
		t.Fatalf("bounds = %+v", b)
	}
}
