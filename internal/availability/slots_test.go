package availability

import (
	"testing"
	"time"
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestGenerateSlots_MadridWednesdayHourlySteps(t *testing.T) {
	window := Span{Start: utc(2024, 1, 17, 7, 0), End: utc(2024, 1, 17, 15, 0)}
	loc, _ := time.LoadLocation("Europe/Madrid")

	slots := GenerateSlots(SlotRequest{
		Window:     window,
		Duration:   time.Hour,
		Step:       time.Hour,
		PatientLoc: loc,
	})

	if len(slots) != 8 {
		t.Fatalf("len(slots) = %d, want 8", len(slots))
	}
	for i, s := range slots {
		want := utc(2024, 1, 17, 7+i, 0)
		if !s.StartUTC.Equal(want) {
			t.Fatalf("slot %d start = %v, want %v", i, s.StartUTC, want)
		}
		if s.EndUTC.Sub(s.StartUTC) != time.Hour {
			t.Fatalf("slot %d duration = %v", i, s.EndUTC.Sub(s.StartUTC))
		}
	}
	if got := slots[0].StartLocal.Format("15:04"); got != "08:00" {
		t.Fatalf("first local start = %s, want 08:00", got)
	}
}

func TestGenerateSlots_ExcludesBusyButKeepsTouching(t *testing.T) {
	window := Span{Start: utc(2024, 1, 17, 9, 0), End: utc(2024, 1, 17, 12, 0)}
	busy := []Span{{Start: utc(2024, 1, 17, 10, 0), End: utc(2024, 1, 17, 11, 0)}}

	slots := GenerateSlots(SlotRequest{Window: window, Duration: time.Hour, Step: 30 * time.Minute, Busy: busy})

	var starts []string
	for _, s := range slots {
		starts = append(starts, s.StartUTC.Format("15:04"))
	}
	want := []string{"09:00", "11:00"}
	if len(starts) != len(want) {
		t.Fatalf("starts = %v, want %v", starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("starts = %v, want %v", starts, want)
		}
	}
}

func TestGenerateSlots_DurationLongerThanWindow(t *testing.T) {
	window := Span{Start: utc(2024, 1, 17, 9, 0), End: utc(2024, 1, 17, 9, 45)}
	if slots := GenerateSlots(SlotRequest{Window: window, Duration: time.Hour, Step: 15 * time.Minute}); len(slots) != 0 {
		t.Fatalf("len(slots) = %d, want 0", len(slots))
	}
}

func TestGenerateSlots_StepShorterThanDurationOverlaps(t *testing.T) {
	window := Span{Start: utc(2024, 1, 17, 9, 0), End: utc(2024, 1, 17, 11, 0)}
	slots := GenerateSlots(SlotRequest{Window: window, Duration: time.Hour, Step: 15 * time.Minute})

	// 09:00, 09:15, 09:30, 09:45, 10:00
	if len(slots) != 5 {
		t.Fatalf("len(slots) = %d, want 5", len(slots))
	}
	if !Overlaps(slots[0].Span(), slots[1].Span()) {
		t.Fatalf("expected adjacent candidates to overlap")
	}
	if !slots[len(slots)-1].EndUTC.Equal(window.End) {
		t.Fatalf("last slot end = %v, want %v", slots[len(slots)-1].EndUTC, window.End)
	}
}

func TestGenerateSlots_NotBefore(t *testing.T) {
	window := Span{Start: utc(2024, 1, 17, 9, 0), End: utc(2024, 1, 17, 12, 0)}
	slots := GenerateSlots(SlotRequest{
		Window:    window,
		Duration:  time.Hour,
		Step:      time.Hour,
		NotBefore: utc(2024, 1, 17, 9, 30),
	})
	if len(slots) != 2 || !slots[0].StartUTC.Equal(utc(2024, 1, 17, 10, 0)) {
		t.Fatalf("slots = %+v, want starts 10:00 and 11:00", slots)
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	a := Span{Start: utc(2024, 1, 1, 9, 0), End: utc(2024, 1, 1, 10, 0)}
	tests := []struct {
		name string
		b    Span
		want bool
	}{
		{"exact", a, true},
		{"touching after", Span{Start: utc(2024, 1, 1, 10, 0), End: utc(2024, 1, 1, 11, 0)}, false},
		{"touching before", Span{Start: utc(2024, 1, 1, 8, 0), End: utc(2024, 1, 1, 9, 0)}, false},
		{"partial left", Span{Start: utc(2024, 1, 1, 8, 30), End: utc(2024, 1, 1, 9, 30)}, true},
		{"partial right", Span{Start: utc(2024, 1, 1, 9, 30), End: utc(2024, 1, 1, 10, 30)}, true},
		{"contained", Span{Start: utc(2024, 1, 1, 9, 15), End: utc(2024, 1, 1, 9, 45)}, true},
		{"containing", Span{Start: utc(2024, 1, 1, 8, 0), End: utc(2024, 1, 1, 11, 0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(a, tt.b); got != tt.want {
				t.Fatalf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.b, a); got != tt.want {
				t.Fatalf("Overlaps reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeadTime(t *testing.T) {
	now := utc(2024, 1, 17, 9, 0)
	lt := LeadTime{Min: 2 * time.Hour}
	if lt.Allows(utc(2024, 1, 17, 10, 59), now) {
		t.Fatalf("start inside lead time allowed")
	}
	if !lt.Allows(utc(2024, 1, 17, 11, 0), now) {
		t.Fatalf("start at lead-time boundary rejected")
	}
	if (LeadTime{}).Allows(utc(2024, 1, 17, 8, 59), now) {
		t.Fatalf("zero lead time allowed a past start")
	}
}
