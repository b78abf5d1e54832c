package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"therabook/backend/internal/domain"
	"therabook/backend/internal/store"
	"therabook/backend/internal/tzmath"
)

// Source is the storage the expander reads from.
type Source interface {
	GetTherapist(ctx context.Context, id string) (domain.Therapist, error)
	ListAvailabilityWindows(ctx context.Context, therapistID string, modality domain.Modality) ([]domain.AvailabilityWindow, error)
}

// ConcreteWindow is one recurring window placed on a calendar date.
type ConcreteWindow struct {
	ID          string
	Weekday     time.Weekday
	Date        civil.Date
	StartTime   string
	EndTime     string
	StartUTC    time.Time
	EndUTC      time.Time
	DurationMin int
	Modality    domain.Modality
}

func (w ConcreteWindow) Span() Span {
	return Span{Start: w.StartUTC, End: w.EndUTC}
}

// Week is a therapist's availability expanded for one Monday-start week.
type Week struct {
	TherapistID string
	Timezone    string
	Location    *time.Location
	Start       civil.Date
	Windows     map[time.Weekday][]ConcreteWindow
}

// All returns every window of the week ordered by UTC start.
func (w Week) All() []ConcreteWindow {
	out := make([]ConcreteWindow, 0, len(w.Windows)*2)
	for _, ws := range w.Windows {
		out = append(out, ws...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartUTC.Equal(out[j].StartUTC) {
			return out[i].EndUTC.Before(out[j].EndUTC)
		}
		return out[i].StartUTC.Before(out[j].StartUTC)
	})
	return out
}

// Containing returns a window that fully contains span.
func (w Week) Containing(span Span) (ConcreteWindow, bool) {
	for _, cw := range w.All() {
		if cw.Span().Contains(span) {
			return cw, true
		}
	}
	return ConcreteWindow{}, false
}

// Bounds is the smallest span covering every window, false when empty.
func (w Week) Bounds() (Span, bool) {
	all := w.All()
	if len(all) == 0 {
		return Span{}, false
	}
	b := all[0].Span()
	for _, cw := range all[1:] {
		if cw.EndUTC.After(b.End) {
			b.End = cw.EndUTC
		}
	}
	return b, true
}

type Expander struct {
	src Source
}

func NewExpander(src Source) *Expander {
	return &Expander{src: src}
}

// Expand places the therapist's windows of the given modality in the week
// containing weekStart. A therapist without matching windows yields an
// empty week, not an error.
func (e *Expander) Expand(ctx context.Context, therapistID string, weekStart civil.Date, modality domain.Modality) (Week, error) {
	therapist, loc, err := e.therapist(ctx, therapistID)
	if err != nil {
		return Week{}, err
	}
	return e.expand(ctx, therapist, loc, tzmath.MondayOf(weekStart), modality)
}

// WeekContaining expands the week that contains instant at, where the week
// is taken from the therapist-local calendar date of at.
func (e *Expander) WeekContaining(ctx context.Context, therapistID string, at time.Time, modality domain.Modality) (Week, error) {
	therapist, loc, err := e.therapist(ctx, therapistID)
	if err != nil {
		return Week{}, err
	}
	return e.expand(ctx, therapist, loc, tzmath.MondayOf(tzmath.DateIn(at, loc)), modality)
}

func (e *Expander) therapist(ctx context.Context, therapistID string) (domain.Therapist, *time.Location, error) {
	therapist, err := e.src.GetTherapist(ctx, therapistID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Therapist{}, nil, domain.ErrTherapistNotFound
		}
		return domain.Therapist{}, nil, fmt.Errorf("load therapist: %w", err)
	}
	loc, err := tzmath.LoadZone(therapist.Timezone)
	if err != nil {
		return domain.Therapist{}, nil, fmt.Errorf("therapist %s: %w", therapist.ID, err)
	}
	return therapist, loc, nil
}

func (e *Expander) expand(ctx context.Context, therapist domain.Therapist, loc *time.Location, monday civil.Date, modality domain.Modality) (Week, error) {
	rows, err := e.src.ListAvailabilityWindows(ctx, therapist.ID, modality)
	if err != nil {
		return Week{}, fmt.Errorf("list availability windows: %w", err)
	}

	week := Week{
		TherapistID: therapist.ID,
		Timezone:    therapist.Timezone,
		Location:    loc,
		Start:       monday,
		Windows:     make(map[time.Weekday][]ConcreteWindow),
	}
	for _, row := range rows {
		cw, ok := concreteWindow(row, monday, loc)
		if !ok {
			continue
		}
		week.Windows[cw.Weekday] = append(week.Windows[cw.Weekday], cw)
	}
	return week, nil
}

func concreteWindow(row domain.AvailabilityWindow, monday civil.Date, loc *time.Location) (ConcreteWindow, bool) {
	if row.Weekday < 0 || row.Weekday > 6 || row.StartMin < 0 || row.EndMin > 24*60 || row.StartMin >= row.EndMin {
		return ConcreteWindow{}, false
	}
	wd := time.Weekday(row.Weekday)
	start := tzmath.ZonedIn(wd, row.StartMin, monday, loc)
	end := tzmath.ZonedIn(wd, row.EndMin, monday, loc)

	return ConcreteWindow{
		ID:          row.ID,
		Weekday:     wd,
		Date:        civil.DateOf(start),
		StartTime:   tzmath.Clock(start),
		EndTime:     tzmath.Clock(end),
		StartUTC:    start.UTC(),
		EndUTC:      end.UTC(),
		DurationMin: int(end.Sub(start) / time.Minute),
		Modality:    row.Modality,
	}, true
}
