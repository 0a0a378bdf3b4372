package ui

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezone is the zone exam timestamps are written in.
const DefaultTimezone = "America/Los_Angeles"

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Formatter renders exam timestamps in one institutional zone. Timestamps without an offset are
// wall-clock times in that zone; timestamps with an offset are converted into it.
type Formatter struct {
	loc *time.Location
}

// NewFormatter loads the named zone. An empty name uses DefaultTimezone.
func NewFormatter(zone string) (*Formatter, error) {
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load display timezone %q: %w", zone, err)
	}
	return &Formatter{loc: loc}, nil
}

// Location returns the display zone.
func (f *Formatter) Location() *time.Location { return f.loc }

// Parse reads an exam timestamp.
func (f *Formatter) Parse(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(f.loc), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, f.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// Date renders the calendar date, e.g. "Dec 8". Unparseable input is returned unchanged.
func (f *Formatter) Date(value string) string {
	t, err := f.Parse(value)
	if err != nil {
		return value
	}
	return t.Format("Jan 2")
}

// Time renders a 12-hour clock time without a leading zero, e.g. "8am", "12pm" or "8:30am".
func (f *Formatter) Time(value string) string {
	t, err := f.Parse(value)
	if err != nil {
		return value
	}
	return ClockTime(t)
}

// ClockTime formats t as "3pm", keeping minutes only when they are non-zero.
func ClockTime(t time.Time) string {
	suffix := "am"
	if t.Hour() >= 12 {
		suffix = "pm"
	}
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	if t.Minute() != 0 {
		return fmt.Sprintf("%d:%02d%s", hour, t.Minute(), suffix)
	}
	return fmt.Sprintf("%d%s", hour, suffix)
}

// DateOption labels an ISO calendar date filter, e.g. "2025-12-08" becomes "Dec 8".
func DateOption(isoDate string) string {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return isoDate
	}
	return t.Format("Jan 2")
}
