// Package window evaluates recurring weekly time windows for schedule
// periods. Windows are parsed once from their stored string form; any
// malformed input yields an always-open window so that bad schedule data
// never blocks a request.
package window

import (
	"strconv"
	"strings"
	"time"
)

// Window is a recurring weekly time window. The zero value is always open.
type Window struct {
	startMinutes int
	endMinutes   int
	bounded      bool
	days         [7]bool // Monday-first
	hasDays      bool
}

// Parse builds a Window from "HH:MM" start/end clock times and an optional
// seven-character day mask (Monday first, '1' = active). When either clock
// time is absent or unparsable the window is unbounded; a mask that is not
// exactly seven characters is ignored.
func Parse(start, end, daysMask string) Window {
	var w Window

	startMinutes, okStart := parseClock(start)
	endMinutes, okEnd := parseClock(end)
	if okStart && okEnd {
		w.startMinutes = startMinutes
		w.endMinutes = endMinutes
		w.bounded = true
	}

	if len(daysMask) == 7 {
		w.hasDays = true
		for i := 0; i < 7; i++ {
			w.days[i] = daysMask[i] == '1'
		}
	}

	return w
}

// Contains reports whether the instant falls inside the window. Bounds are
// inclusive. Unbounded windows contain every instant regardless of mask.
func (w Window) Contains(now time.Time) bool {
	if !w.bounded {
		return true
	}

	nowMinutes := now.Hour()*60 + now.Minute()
	inTime := w.startMinutes <= nowMinutes && nowMinutes <= w.endMinutes
	if !inTime {
		return false
	}

	if w.hasDays {
		return w.days[mondayIndex(now.Weekday())]
	}
	return true
}

// Bounded reports whether the window carries clock-time bounds.
func (w Window) Bounded() bool {
	return w.bounded
}

func parseClock(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return hours*60 + minutes, true
}

// mondayIndex converts Go's Sunday-first weekday to the Monday-first index
// used by stored day masks.
func mondayIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}
