package calendar

import (
	"fmt"
	"strings"
	"time"
)

// ClockFormat selects how event times are rendered.
type ClockFormat string

const (
	Clock12h ClockFormat = "12h"
	Clock24h ClockFormat = "24h"
)

// ParseClockFormat accepts "12h" or "24h". Anything else is an error.
func ParseClockFormat(s string) (ClockFormat, error) {
	switch ClockFormat(strings.ToLower(strings.TrimSpace(s))) {
	case Clock12h:
		return Clock12h, nil
	case Clock24h:
		return Clock24h, nil
	}
	return "", fmt.Errorf("unknown clock format %q", s)
}

// Settings is the display configuration consumed by the grid and agenda
// engines. It is passed by value on every recompute.
type Settings struct {
	WeekStart       time.Weekday
	ShowWeekNumbers bool
	ClockFormat     ClockFormat
	RightToLeft     bool
}

// DefaultSettings returns a Monday-first, 24h configuration.
func DefaultSettings() Settings {
	return Settings{
		WeekStart:   time.Monday,
		ClockFormat: Clock24h,
	}
}

// ParseWeekday accepts English weekday names or their three-letter prefix.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			if strings.HasPrefix(strings.ToLower(d.String()), s) {
				return d, nil
			}
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
