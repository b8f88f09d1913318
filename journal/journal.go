// Package journal records every remote fetch run.
package journal

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("fetch run not found")

// FetchRecord describes one remote fetch of a (symbol, interval).
type FetchRecord struct {
	RunID    string
	Symbol   string
	Interval string
	Started  time.Time
	Finished time.Time

	Rows    int
	Columns int
	Calls   int // remote API calls issued

	SnapshotID string // empty when the result was not saved
	Error      string
}

// Duration is the wall time of the run.
func (r FetchRecord) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// OK reports whether the run succeeded.
func (r FetchRecord) OK() bool { return r.Error == "" }

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Symbol string
	Since  time.Time
	Limit  int // newest Limit records
}

func (f Filter) match(r FetchRecord) bool {
	if f.Symbol != "" && r.Symbol != f.Symbol {
		return false
	}
	if !f.Since.IsZero() && r.Started.Before(f.Since) {
		return false
	}
	return true
}

type Journal interface {
	RecordFetch(FetchRecord) error
	GetFetch(runID string) (FetchRecord, error)
	List(Filter) ([]FetchRecord, error)
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) RecordFetch(FetchRecord) error      { return nil }
func (Nop) List(Filter) ([]FetchRecord, error) { return nil, nil }
func (Nop) Close() error                       { return nil }

func (Nop) GetFetch(runID string) (FetchRecord, error) {
	return FetchRecord{}, fmt.Errorf("%w: %q", ErrNotFound, runID)
}
