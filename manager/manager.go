// Package manager answers historical data queries from the snapshot cache,
// falling back to the remote provider when the cache has nothing.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/stockdata/id"
	"github.com/rustyeddy/stockdata/journal"
	"github.com/rustyeddy/stockdata/market"
	"github.com/rustyeddy/stockdata/provider"
	"github.com/rustyeddy/stockdata/store"
	"go.uber.org/zap"
)

// Query selects a slice of the historical data of one symbol.
type Query struct {
	Symbol   string
	Interval market.Interval
	Attrib   []string  // columns to keep; empty keeps all
	Start    time.Time // zero means first stored row
	End      time.Time // zero means last stored row
	Fetch    bool      // skip the cache and download
	DropNA   bool      // drop rows with any missing value
	Save     bool      // persist a freshly downloaded table
}

// Manager glues the fetcher, the snapshot store and the fetch journal.
type Manager struct {
	fetcher *provider.Fetcher
	store   store.Store
	journal journal.Journal
	logger  *zap.Logger
	now     func() time.Time
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithJournal records every remote fetch in j.
func WithJournal(j journal.Journal) Option {
	return func(m *Manager) {
		if j != nil {
			m.journal = j
		}
	}
}

// WithClock replaces time.Now for fetch timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func New(f *provider.Fetcher, st store.Store, opts ...Option) *Manager {
	m := &Manager{
		fetcher: f,
		store:   st,
		journal: journal.Nop{},
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetHistoricalData returns the rows of q.Symbol between q.Start and q.End,
// one per q.Interval period.
func (m *Manager) GetHistoricalData(ctx context.Context, q Query) (*market.Table, error) {
	if !q.Interval.Valid() || q.Interval.Intraday() {
		return nil, fmt.Errorf("%w: %q is not a historical interval", market.ErrUnsupportedInterval, q.Interval)
	}
	symbol := strings.ToUpper(strings.TrimSpace(q.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", market.ErrInvalidSymbol)
	}
	log := m.logger.With(zap.String("symbol", symbol), zap.String("interval", string(q.Interval)))

	var tb *market.Table
	if !q.Fetch {
		cached, info, err := m.store.Load(ctx, symbol, q.Interval)
		switch {
		case err == nil:
			log.Debug("loaded snapshot", zap.String("id", info.ID), zap.Time("fetched_at", info.FetchedAt))
			tb = cached
		case errors.Is(err, store.ErrNotFound):
			log.Warn("no cached data, fetching from provider")
		default:
			return nil, fmt.Errorf("load %s %s: %w", symbol, q.Interval, err)
		}
	}
	if tb == nil {
		fetched, _, err := m.download(ctx, symbol, q.Interval, q.Save)
		if err != nil {
			return nil, err
		}
		tb = fetched
	}

	attrib := q.Attrib
	if len(attrib) == 0 {
		log.Warn("no attributes given, returning all columns")
		attrib = tb.Columns()
	}
	if tb.Empty() {
		return nil, fmt.Errorf("%w: no rows for %s %s", market.ErrRangeOutOfBounds, symbol, q.Interval)
	}

	start, end := q.Start, q.End
	if start.IsZero() {
		log.Warn("no start date given, using first row", zap.Time("start", tb.First()))
		start = tb.First()
	}
	if end.IsZero() {
		log.Warn("no end date given, using last row", zap.Time("end", tb.Last()))
		end = tb.Last()
	}
	if err := tb.CheckRange(start, end); err != nil {
		return nil, err
	}

	out, err := tb.Resample(start, end, q.Interval)
	if err != nil {
		return nil, err
	}
	if out, err = out.Select(attrib); err != nil {
		return nil, err
	}
	if q.DropNA {
		out = out.DropNA()
	}
	return out, nil
}

// Refresh downloads symbol at iv and stores the result whatever the cache
// holds.
func (m *Manager) Refresh(ctx context.Context, symbol string, iv market.Interval) (store.Info, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !iv.Valid() {
		return store.Info{}, fmt.Errorf("%w: %q", market.ErrUnsupportedInterval, iv)
	}
	_, info, err := m.download(ctx, symbol, iv, true)
	return info, err
}

// download fetches and optionally saves the combined table, journaling the
// run either way. The saved table is the unsliced one.
func (m *Manager) download(ctx context.Context, symbol string, iv market.Interval, save bool) (*market.Table, store.Info, error) {
	started := m.now()
	rec := journal.FetchRecord{
		RunID:    id.NewAt(started),
		Symbol:   symbol,
		Interval: string(iv),
		Started:  started,
	}

	tb, info, err := m.fetchAndSave(ctx, &rec, symbol, iv, save)

	rec.Finished = m.now()
	if err != nil {
		rec.Error = err.Error()
	}
	if jerr := m.journal.RecordFetch(rec); jerr != nil {
		m.logger.Warn("journal write failed", zap.String("run_id", rec.RunID), zap.Error(jerr))
	}
	return tb, info, err
}

func (m *Manager) fetchAndSave(ctx context.Context, rec *journal.FetchRecord, symbol string, iv market.Interval, save bool) (*market.Table, store.Info, error) {
	ds, err := m.fetcher.Fetch(ctx, symbol, iv)
	if err != nil {
		return nil, store.Info{}, err
	}
	rec.Calls = ds.Calls

	tb, err := ds.Combined()
	if err != nil {
		return nil, store.Info{}, fmt.Errorf("combine %s %s: %w", symbol, iv, err)
	}
	rec.Rows = tb.Len()
	rec.Columns = len(tb.Columns())

	if !save {
		return tb, store.Info{}, nil
	}
	info, err := m.store.Save(ctx, symbol, iv, rec.Started, tb)
	if err != nil {
		return nil, store.Info{}, fmt.Errorf("save %s %s: %w", symbol, iv, err)
	}
	rec.SnapshotID = info.ID
	m.logger.Info("snapshot saved",
		zap.String("symbol", symbol),
		zap.String("interval", string(iv)),
		zap.String("id", info.ID),
		zap.Int64("bytes", info.Size))
	return tb, info, nil
}
