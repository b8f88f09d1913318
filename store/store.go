// Package store caches fetched tables as timestamped snapshots. Several
// snapshots of the same (symbol, interval) may coexist; loads return the
// most recently fetched one.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rustyeddy/stockdata/market"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// Info describes one stored snapshot.
type Info struct {
	ID        string
	Symbol    string
	Interval  market.Interval
	FetchedAt time.Time
	Size      int64 // compressed bytes
}

// Store persists and retrieves snapshots.
type Store interface {
	// Save stores tb as a snapshot of (symbol, iv) taken at fetchedAt.
	Save(ctx context.Context, symbol string, iv market.Interval, fetchedAt time.Time, tb *market.Table) (Info, error)
	// Load returns the latest snapshot of (symbol, iv) or ErrNotFound.
	Load(ctx context.Context, symbol string, iv market.Interval) (*market.Table, Info, error)
	// List returns snapshots ordered by symbol, interval and fetch time. An
	// empty symbol or interval matches all.
	List(ctx context.Context, symbol string, iv market.Interval) ([]Info, error)
	Close() error
}

func checkKey(symbol string, iv market.Interval) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("%w: empty symbol", market.ErrInvalidSymbol)
	}
	if !iv.Valid() {
		return "", fmt.Errorf("%w: %q", market.ErrUnsupportedInterval, iv)
	}
	return symbol, nil
}

func notFound(symbol string, iv market.Interval) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, symbol, iv)
}

func sortInfos(infos []Info) {
	sort.Slice(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Interval != b.Interval {
			return a.Interval < b.Interval
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.Before(b.FetchedAt)
		}
		return a.ID < b.ID
	})
}
