package shared

import (
	"errors"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

var errEmptyDay = errors.New("date is empty")

// ParseDay reads a calendar day as YYYY-MM-DD or RFC3339 and returns midnight
// UTC of the day written. Pay periods compare by exact instant, so
// "2026-03-01" and "2026-03-01T08:00:00+01:00" must land on the same value.
func ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errEmptyDay
	}
	parsed, err := time.Parse(dayLayout, raw)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, err
		}
	}
	y, m, d := parsed.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
