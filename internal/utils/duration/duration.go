// Package duration parses and formats human-entered giveaway durations.
package duration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var ErrInvalid = errors.New("invalid duration")

var units = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// Parse converts strings like "30s", "5m", "2h", "1d 2h 30m" or "1d2h30m"
// into a duration. A bare number is taken as minutes.
func Parse(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, ErrInvalid
	}

	// Bare number means minutes.
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, ErrInvalid
		}
		return time.Duration(n) * time.Minute, nil
	}

	var total time.Duration
	var number strings.Builder
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsDigit(r):
			number.WriteRune(r)
		case unicode.IsLetter(r):
			var unit strings.Builder
			for i < len(runes) && unicode.IsLetter(runes[i]) {
				unit.WriteRune(runes[i])
				i++
			}
			i--
			mult, ok := units[unit.String()]
			if !ok {
				return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalid, unit.String())
			}
			if number.Len() == 0 {
				return 0, ErrInvalid
			}
			n, err := strconv.Atoi(number.String())
			if err != nil {
				return 0, ErrInvalid
			}
			total += time.Duration(n) * mult
			number.Reset()
		case r == ' ' || r == '\t':
			// skip
		default:
			return 0, fmt.Errorf("%w: unexpected character %q", ErrInvalid, r)
		}
	}

	if number.Len() > 0 || total <= 0 {
		return 0, ErrInvalid
	}
	return total, nil
}

// Format renders a duration as a short human-readable string, using the
// largest two applicable units ("2 hours 30 minutes", "3 days").
func Format(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return "Ended"
	}
	if seconds < 60 {
		return plural(seconds, "second")
	}

	minutes := seconds / 60
	if minutes < 60 {
		return plural(minutes, "minute")
	}

	hours := minutes / 60
	if hours < 24 {
		if rem := minutes % 60; rem > 0 {
			return plural(hours, "hour") + " " + plural(rem, "minute")
		}
		return plural(hours, "hour")
	}

	days := hours / 24
	if rem := hours % 24; rem > 0 {
		return plural(days, "day") + " " + plural(rem, "hour")
	}
	return plural(days, "day")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
