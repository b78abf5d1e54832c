package tzmath

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"therabook/backend/internal/domain"
)

func TestZonedFromWeekdayMinute_MadridWinter(t *testing.T) {
	weekStart := civil.Date{Year: 2024, Month: time.January, Day: 15}

	start, err := ZonedFromWeekdayMinute(time.Wednesday, 8*60, weekStart, "Europe/Madrid")
	if err != nil {
		t.Fatalf("ZonedFromWeekdayMinute error: %v", err)
	}
	end, err := ZonedFromWeekdayMinute(time.Wednesday, 16*60, weekStart, "Europe/Madrid")
	if err != nil {
		t.Fatalf("ZonedFromWeekdayMinute error: %v", err)
	}

	wantStart := time.Date(2024, 1, 17, 7, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 1, 17, 15, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) || !end.Equal(wantEnd) {
		t.Fatalf("window = %v..%v, want %v..%v", start.UTC(), end.UTC(), wantStart, wantEnd)
	}
}

func TestZonedFromWeekdayMinute_SpringForwardKeepsWallClock(t *testing.T) {
	weekStart := civil.Date{Year: 2024, Month: time.March, Day: 4}

	start, err := ZonedFromWeekdayMinute(time.Sunday, 0, weekStart, "America/New_York")
	if err != nil {
		t.Fatalf("ZonedFromWeekdayMinute error: %v", err)
	}
	end, err := ZonedFromWeekdayMinute(time.Sunday, 6*60, weekStart, "America/New_York")
	if err != nil {
		t.Fatalf("ZonedFromWeekdayMinute error: %v", err)
	}

	if got := civil.DateOf(start); got != (civil.Date{Year: 2024, Month: time.March, Day: 10}) {
		t.Fatalf("date = %s, want 2024-03-10", got)
	}
	if Clock(start) != "00:00" || Clock(end) != "06:00" {
		t.Fatalf("local clock = %s..%s, want 00:00..06:00", Clock(start), Clock(end))
	}
	if d := end.Sub(start); d != 5*time.Hour {
		t.Fatalf("utc duration = %v, want 5h", d)
	}
}

func TestWeekdayOffset(t *testing.T) {
	tests := map[time.Weekday]int{
		time.Monday:    0,
		time.Wednesday: 2,
		time.Saturday:  5,
		time.Sunday:    6,
	}
	for wd, want := range tests {
		if got := WeekdayOffset(wd); got != want {
			t.Fatalf("WeekdayOffset(%s) = %d, want %d", wd, got, want)
		}
	}
}

func TestLoadZone_RejectsUnknownAndHostZones(t *testing.T) {
	for _, tz := range []string{"", "Local", "Not/AZone"} {
		_, err := LoadZone(tz)
		if !errors.Is(err, domain.ErrInvalidTimezone) {
			t.Fatalf("LoadZone(%q) err = %v, want ErrInvalidTimezone", tz, err)
		}
	}
	if _, err := LoadZone("America/Argentina/Buenos_Aires"); err != nil {
		t.Fatalf("LoadZone error: %v", err)
	}
}

func TestToUTC(t *testing.T) {
	tests := []struct {
		name  string
		local string
		tz    string
		want  time.Time
	}{
		{
			name:  "local wall clock",
			local: "2024-01-15T09:00",
			tz:    "America/New_York",
			want:  time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		},
		{
			name:  "seconds precision",
			local: "2024-07-01T09:00:00",
			tz:    "Europe/Madrid",
			want:  time.Date(2024, 7, 1, 7, 0, 0, 0, time.UTC),
		},
		{
			name:  "explicit offset wins",
			local: "2024-01-15T09:00:00-03:00",
			tz:    "Europe/Madrid",
			want:  time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToUTC(tt.local, tt.tz)
			if err != nil {
				t.Fatalf("ToUTC error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ToUTC = %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Fatalf("location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestToUTC_Errors(t *testing.T) {
	if _, err := ToUTC("yesterday", "UTC"); !errors.Is(err, domain.ErrInvalidDateTime) {
		t.Fatalf("err = %v, want ErrInvalidDateTime", err)
	}
	if _, err := ToUTC("2024-01-15T09:00", "Mars/Olympus"); !errors.Is(err, domain.ErrInvalidTimezone) {
		t.Fatalf("err = %v, want ErrInvalidTimezone", err)
	}
}

func TestFormatISO_RoundTripAlwaysUTC(t *testing.T) {
	for _, tz := range []string{"UTC", "America/New_York", "Asia/Kolkata", "Pacific/Chatham"} {
		utc, err := ToUTC("2024-06-01T10:30", tz)
		if err != nil {
			t.Fatalf("ToUTC(%s) error: %v", tz, err)
		}
		zoned, err := ToZone(utc, tz)
		if err != nil {
			t.Fatalf("ToZone(%s) error: %v", tz, err)
		}
		got := Format(zoned, FormatISO)
		if !strings.HasSuffix(got, "Z") {
			t.Fatalf("Format(%s) = %q, want Z suffix", tz, got)
		}
		back, err := time.Parse(time.RFC3339Nano, got)
		if err != nil {
			t.Fatalf("parse %q: %v", got, err)
		}
		if !back.Equal(utc) {
			t.Fatalf("round trip = %v, want %v", back, utc)
		}
	}
}

func TestFormatModes(t *testing.T) {
	loc, err := LoadZone("Europe/Madrid")
	if err != nil {
		t.Fatalf("LoadZone error: %v", err)
	}
	ts := time.Date(2024, 1, 17, 8, 5, 0, 0, loc)

	if got := Format(ts, FormatISO); got != "2024-01-17T07:05:00.000Z" {
		t.Fatalf("iso = %q", got)
	}
	if got := Format(ts, FormatShort); got != "2024-01-17 08:05" {
		t.Fatalf("short = %q", got)
	}
	if got := Format(ts, FormatLocal); got != "January 17, 2024 at 8:05 AM CET" {
		t.Fatalf("local = %q", got)
	}
	if got := Format(ts, "bogus"); got != "2024-01-17T07:05:00.000Z" {
		t.Fatalf("fallback = %q", got)
	}
	if got := FormatOffset(ts); got != "2024-01-17T08:05:00.000+01:00" {
		t.Fatalf("offset = %q", got)
	}
}

func TestMondayOfAndCurrentWeekStart(t *testing.T) {
	sunday := civil.Date{Year: 2024, Month: time.March, Day: 10}
	if got := MondayOf(sunday); got != (civil.Date{Year: 2024, Month: time.March, Day: 4}) {
		t.Fatalf("MondayOf(sunday) = %s", got)
	}
	monday := civil.Date{Year: 2024, Month: time.January, Day: 15}
	if got := MondayOf(monday); got != monday {
		t.Fatalf("MondayOf(monday) = %s", got)
	}

	// Monday 01:00 UTC is still Sunday evening in New York.
	loc, _ := LoadZone("America/New_York")
	now := time.Date(2024, 1, 15, 1, 0, 0, 0, time.UTC)
	if got := CurrentWeekStart(now, loc); got != (civil.Date{Year: 2024, Month: time.January, Day: 8}) {
		t.Fatalf("CurrentWeekStart = %s, want 2024-01-08", got)
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2024-13-01"); !errors.Is(err, domain.ErrInvalidDateTime) {
		t.Fatalf("err = %v, want ErrInvalidDateTime", err)
	}
	d, err := ParseDate(" 2024-01-15 ")
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if d.String() != "2024-01-15" {
		t.Fatalf("date = %s", d)
	}
}
