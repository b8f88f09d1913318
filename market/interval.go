package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Interval is the sampling granularity of a series.
type Interval string

const (
	Min1    Interval = "1min"
	Min5    Interval = "5min"
	Min15   Interval = "15min"
	Min30   Interval = "30min"
	Min60   Interval = "60min"
	Daily   Interval = "daily"
	Weekly  Interval = "weekly"
	Monthly Interval = "monthly"
)

// IntradayClass is the storage class shared by all intraday intervals.
const IntradayClass = "intra_day"

var intervals = map[Interval]time.Duration{
	Min1:    time.Minute,
	Min5:    5 * time.Minute,
	Min15:   15 * time.Minute,
	Min30:   30 * time.Minute,
	Min60:   time.Hour,
	Daily:   24 * time.Hour,
	Weekly:  7 * 24 * time.Hour,
	Monthly: 30 * 24 * time.Hour,
}

// ParseInterval normalizes s and checks it names a known interval.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := intervals[iv]; !ok {
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedInterval, s, strings.Join(IntervalNames(), ", "))
	}
	return iv, nil
}

// IntervalNames lists the known intervals, finest first.
func IntervalNames() []string {
	names := make([]string, 0, len(intervals))
	for iv := range intervals {
		names = append(names, string(iv))
	}
	sort.Slice(names, func(i, j int) bool {
		return intervals[Interval(names[i])] < intervals[Interval(names[j])]
	})
	return names
}

// Valid reports whether iv is a known interval.
func (iv Interval) Valid() bool {
	_, ok := intervals[iv]
	return ok
}

// Intraday reports whether iv is finer than daily.
func (iv Interval) Intraday() bool {
	d, ok := intervals[iv]
	return ok && d < 24*time.Hour
}

// Class is the storage directory name for iv.
func (iv Interval) Class() string {
	if iv.Intraday() {
		return IntradayClass
	}
	return string(iv)
}

// Duration is the nominal length of one period. Monthly is approximate.
func (iv Interval) Duration() time.Duration {
	return intervals[iv]
}

func (iv Interval) String() string { return string(iv) }

// periodBounds returns the calendar period of t for iv: [start, end].
// Weeks end on Sunday, months on their last day.
func (iv Interval) periodBounds(t time.Time) (time.Time, time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	switch iv {
	case Weekly:
		offset := (7 - int(day.Weekday())) % 7 // days until Sunday
		end := day.AddDate(0, 0, offset)
		return end.AddDate(0, 0, -6), endOfDay(end)
	case Monthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		return start, endOfDay(start.AddDate(0, 1, -1))
	case Daily:
		return day, endOfDay(day)
	default:
		d := iv.Duration()
		start := t.Truncate(d)
		return start, start.Add(d - time.Nanosecond)
	}
}

func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
