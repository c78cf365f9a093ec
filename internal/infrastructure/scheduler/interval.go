package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const NoneLabel = "None"

// Presets are the intervals offered by the interactive surfaces.
var Presets = []string{
	NoneLabel,
	"1 minute",
	"5 minutes",
	"15 minutes",
	"30 minutes",
	"1 hour",
	"3 hours",
	"6 hours",
	"12 hours",
	"1 day",
}

// ValidateInterval accepts whole minutes of at least one minute.
func ValidateInterval(d time.Duration) error {
	if d < time.Minute {
		return fmt.Errorf("interval must be at least 1 minute, got %s", d)
	}
	if d%time.Minute != 0 {
		return fmt.Errorf("interval must be a whole number of minutes, got %s", d)
	}
	return nil
}

// ParseInterval reads a schedule label. It accepts "None", phrases such as
// "5 minutes", "3 hours" or "1 day", and Go duration strings such as "90m".
// "None" and the empty string yield zero.
func ParseInterval(label string) (time.Duration, error) {
	s := strings.TrimSpace(label)
	if s == "" || strings.EqualFold(s, NoneLabel) {
		return 0, nil
	}

	var d time.Duration
	if fields := strings.Fields(s); len(fields) == 2 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid interval %q", label)
		}
		unit, ok := unitOf(fields[1])
		if !ok {
			return 0, fmt.Errorf("invalid interval unit in %q", label)
		}
		d = time.Duration(n) * unit
	} else {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", label, err)
		}
		d = parsed
	}

	if err := ValidateInterval(d); err != nil {
		return 0, err
	}
	return d, nil
}

func unitOf(word string) (time.Duration, bool) {
	switch strings.TrimSuffix(strings.ToLower(word), "s") {
	case "minute", "min":
		return time.Minute, true
	case "hour", "hr":
		return time.Hour, true
	case "day":
		return 24 * time.Hour, true
	}
	return 0, false
}

// FormatInterval renders d in the label form read by ParseInterval.
func FormatInterval(d time.Duration) string {
	switch {
	case d <= 0:
		return NoneLabel
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	}
	return d.String()
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatCountdown renders the countdown shown to users.
func FormatCountdown(remaining time.Duration, armed bool) string {
	if !armed {
		return "Next backup in: --:--:--"
	}
	secs := int(remaining.Round(time.Second) / time.Second)
	if secs <= 0 {
		return "Next backup in: scheduling..."
	}
	h, rem := secs/3600, secs%3600
	m, sec := rem/60, rem%60
	return fmt.Sprintf("Next backup in: %02d:%02d:%02d", h, m, sec)
}
