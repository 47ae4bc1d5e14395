// Package timeseries aligns irregular sensor series onto a shared minute
// grid and computes per-parameter window statistics. It is pure computation;
// persistence of the merged dataset lives in the store layer.
package timeseries

import (
	"fmt"
	"strconv"
	"time"

	"emspulse/internal/errors"
	"emspulse/pkg/contracts/domain"
)

// DefaultGridMinutes is the merge granularity used when none is configured.
const DefaultGridMinutes = 15

// Normalize floors t onto the bucket grid: seconds and sub-second precision
// are zeroed, then the minute is floored to the nearest multiple of
// gridMinutes. Idempotent: Normalize(Normalize(t)) == Normalize(t).
func Normalize(t time.Time, gridMinutes int) time.Time {
	if gridMinutes <= 0 {
		gridMinutes = DefaultGridMinutes
	}
	minute := (t.Minute() / gridMinutes) * gridMinutes
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// Enumerate returns every grid bucket inside the window, both ends
// inclusive, in ascending order. Used to pre-seed a dense skeleton when the
// gap-filling merge variant is configured.
func Enumerate(window domain.Window, gridMinutes int) []time.Time {
	if gridMinutes <= 0 {
		gridMinutes = DefaultGridMinutes
	}

	first := Normalize(window.Start, gridMinutes)
	if first.Before(window.Start) {
		first = first.Add(time.Duration(gridMinutes) * time.Minute)
	}

	var buckets []time.Time
	step := time.Duration(gridMinutes) * time.Minute
	for b := first; !b.After(window.End); b = b.Add(step) {
		buckets = append(buckets, b)
	}
	return buckets
}

// ParseMillis parses an epoch-milliseconds string from an external caller.
func ParseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errors.ErrInvalidTimestamp, s)
	}
	return time.UnixMilli(ms), nil
}
