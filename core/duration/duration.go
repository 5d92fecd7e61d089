// Package duration parses human-readable duration strings like "1d12h" or
// "2w3d" into [time.Duration]. It exists for expiry configuration coming
// from config files or user input, where time.ParseDuration's largest unit
// (hours) is too small.
//
// Supported units, largest first: y (365 days), mo (30 days), w, d, h, m, s.
// Units must appear in that order and each at most once.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var pattern = regexp.MustCompile(`^(?:(\d+)y)?(?:(\d+)mo)?(?:(\d+)w)?(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseError reports an unparseable duration string.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid duration %q: must be of the form 1y2mo3w4d5h6m7s", e.Input)
}

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

// Parse converts a string like "1d2h3m4s" into a time.Duration.
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, &ParseError{Input: s}
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, &ParseError{Input: s}
	}

	units := []time.Duration{year, month, week, day, time.Hour, time.Minute, time.Second}

	var total time.Duration
	for i, unit := range units {
		g := m[i+1]
		if g == "" {
			continue
		}
		n, err := strconv.ParseInt(g, 10, 64)
		if err != nil {
			return 0, &ParseError{Input: s}
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

// MustParse is like Parse but panics on invalid input. Intended for
// compile-time-constant configuration values.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}
