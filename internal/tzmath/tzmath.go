// Package tzmath holds the calendar and timezone conversions used by the
// availability engine. Nothing here performs I/O beyond loading zone data.
package tzmath

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"therabook/backend/internal/domain"
)

type FormatMode string

const (
	FormatISO   FormatMode = "iso"
	FormatLocal FormatMode = "local"
	FormatShort FormatMode = "short"
)

const (
	isoLayout   = "2006-01-02T15:04:05.000Z"
	localLayout = "January 2, 2006 at 3:04 PM MST"
	shortLayout = "2006-01-02 15:04"
	clockLayout = "15:04"
)

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zones sync.Map

// LoadZone resolves an IANA identifier. "Local" and the empty string are
// rejected because they depend on the host.
func LoadZone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || tz == "Local" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, tz)
	}
	if loc, ok := zones.Load(tz); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, tz)
	}
	zones.Store(tz, loc)
	return loc, nil
}

// WeekdayOffset returns how many days after a Monday week start the given
// weekday falls (Sunday is the last day of the week).
func WeekdayOffset(weekday time.Weekday) int {
	return (int(weekday) + 6) % 7
}

// ZonedFromWeekdayMinute places a weekday/minute-of-day pair in the week
// starting at weekStart, in zone tz. The minute offset is applied to the
// wall clock, so across a DST transition the UTC distance from midnight
// differs from minuteOfDay minutes.
func ZonedFromWeekdayMinute(weekday time.Weekday, minuteOfDay int, weekStart civil.Date, tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	return ZonedIn(weekday, minuteOfDay, weekStart, loc), nil
}

// ZonedIn is ZonedFromWeekdayMinute for an already resolved location.
func ZonedIn(weekday time.Weekday, minuteOfDay int, weekStart civil.Date, loc *time.Location) time.Time {
	d := weekStart.AddDays(WeekdayOffset(weekday))
	return time.Date(d.Year, d.Month, d.Day, 0, minuteOfDay, 0, 0, loc)
}

// ToUTC interprets local in zone tz. Inputs that carry their own offset
// keep it.
func ToUTC(local string, tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	s := strings.TrimSpace(local)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidDateTime, local)
}

// ParseInstant parses an ISO-8601 instant. Values without an offset are
// read as UTC.
func ParseInstant(iso string) (time.Time, error) {
	return ToUTC(iso, "UTC")
}

func ToZone(t time.Time, tz string) (time.Time, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// ToZoneISO parses an ISO instant and expresses it in zone tz.
func ToZoneISO(iso string, tz string) (time.Time, error) {
	t, err := ParseInstant(iso)
	if err != nil {
		return time.Time{}, err
	}
	return ToZone(t, tz)
}

// Format renders t for API responses. FormatISO always renders UTC with
// millisecond precision and a Z suffix; unknown modes fall back to it.
func Format(t time.Time, mode FormatMode) string {
	switch mode {
	case FormatLocal:
		return t.Format(localLayout)
	case FormatShort:
		return t.Format(shortLayout)
	default:
		return t.UTC().Format(isoLayout)
	}
}

// FormatOffset renders t with its zone offset, e.g. 2024-01-17T08:00:00.000+01:00.
func FormatOffset(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000Z07:00")
}

// Clock renders the wall-clock time of day as HH:mm.
func Clock(t time.Time) string {
	return t.Format(clockLayout)
}

// DateIn returns the calendar date of t as observed in loc.
func DateIn(t time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(t.In(loc))
}

// MondayOf returns the Monday starting the week that contains d.
func MondayOf(d civil.Date) civil.Date {
	wd := d.In(time.UTC).Weekday()
	return d.AddDays(-WeekdayOffset(wd))
}

// CurrentWeekStart is the Monday of the week containing now in loc.
func CurrentWeekStart(now time.Time, loc *time.Location) civil.Date {
	return MondayOf(DateIn(now, loc))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: %q", domain.ErrInvalidDateTime, s)
	}
	return d, nil
}
