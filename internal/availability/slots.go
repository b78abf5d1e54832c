package availability

import "time"

// SlotRequest describes one concrete window to walk.
type SlotRequest struct {
	Window   Span
	Duration time.Duration
	Step     time.Duration
	// Busy holds the non-canceled sessions that may collide with the window.
	Busy       []Span
	PatientLoc *time.Location
	// NotBefore drops candidates starting earlier; zero disables the bound.
	NotBefore time.Time
}

type BookableSlot struct {
	StartUTC   time.Time
	EndUTC     time.Time
	StartLocal time.Time
	EndLocal   time.Time
}

func (s BookableSlot) Span() Span {
	return Span{Start: s.StartUTC, End: s.EndUTC}
}

// GenerateSlots walks the window from its start in Step increments and
// returns every duration-sized candidate that fits inside the window and
// does not overlap a busy span. Candidates may overlap each other when Step
// is shorter than Duration.
func GenerateSlots(req SlotRequest) []BookableSlot {
	if req.Duration <= 0 || req.Step <= 0 || req.Duration > req.Window.Duration() {
		return nil
	}
	loc := req.PatientLoc
	if loc == nil {
		loc = time.UTC
	}

	var out []BookableSlot
	for start := req.Window.Start.UTC(); !start.Add(req.Duration).After(req.Window.End); start = start.Add(req.Step) {
		if !req.NotBefore.IsZero() && start.Before(req.NotBefore) {
			continue
		}
		candidate := Span{Start: start, End: start.Add(req.Duration)}
		if OverlapsAny(candidate, req.Busy) {
			continue
		}
		out = append(out, BookableSlot{
			StartUTC:   candidate.Start,
			EndUTC:     candidate.End,
			StartLocal: candidate.Start.In(loc),
			EndLocal:   candidate.End.In(loc),
		})
	}
	return out
}
