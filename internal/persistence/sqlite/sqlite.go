// Package sqlite implements the persistence repositories on SQLite via the
// modernc.org driver. Timestamps are stored as RFC 3339 UTC strings and
// booleans as integers.
package sqlite

import (
	"fmt"
	"time"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value, column string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return t, nil
}

func formatNullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseNullableTime(value *string, column string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := parseTime(*value, column)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
