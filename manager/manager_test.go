package manager

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/stockdata/alphavantage"
	"github.com/rustyeddy/stockdata/journal"
	"github.com/rustyeddy/stockdata/market"
	"github.com/rustyeddy/stockdata/provider"
	"github.com/rustyeddy/stockdata/store"
	"github.com/rustyeddy/stockdata/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

// source serves Jan 2, 3 and 5 2024; the 4th is missing.
type source struct {
	mu     sync.Mutex
	series int
	err    error
}

func (s *source) TimeSeries(_ context.Context, _ string, _ market.Interval, _ string) (*market.Table, market.Metadata, error) {
	s.mu.Lock()
	s.series++
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return nil, market.Metadata{}, err
	}

	tb, err := market.NewTable([]time.Time{day(2), day(3), day(5)})
	if err != nil {
		return nil, market.Metadata{}, err
	}
	if err := tb.AddColumn("open", []float64{10, 11, 12}); err != nil {
		return nil, market.Metadata{}, err
	}
	if err := tb.AddColumn("close", []float64{10.5, 11.5, 12.5}); err != nil {
		return nil, market.Metadata{}, err
	}
	return tb, market.Metadata{Symbol: "IBM"}, nil
}

func (s *source) Indicator(_ context.Context, req alphavantage.IndicatorRequest) (*market.Table, market.Metadata, error) {
	tb, err := market.NewTable([]time.Time{day(2), day(3), day(5)})
	if err != nil {
		return nil, market.Metadata{}, err
	}
	if err := tb.AddColumn(req.Function, []float64{1, 2, 3}); err != nil {
		return nil, market.Metadata{}, err
	}
	return tb, market.Metadata{}, nil
}

func (s *source) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.series
}

type fixture struct {
	src     *source
	mgr     *Manager
	store   *store.FileStore
	journal *journal.CSVJournal
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	src := &source{}
	th, err := throttle.New(1000, time.Minute)
	require.NoError(t, err)
	f := provider.NewFetcher(src, th, provider.WithIndicators([]provider.Indicator{provider.OBV}))

	st, err := store.NewFileStore(filepath.Join(dir, "data"), nil)
	require.NoError(t, err)
	j, err := journal.NewCSV(filepath.Join(dir, "fetches.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	core, logs := observer.New(zap.WarnLevel)

	// every reading is a second later so snapshots never collide
	var (
		mu  sync.Mutex
		now = time.Date(2024, 2, 1, 18, 30, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}

	mgr := New(f, st, WithJournal(j), WithLogger(zap.New(core)), WithClock(clock))
	return &fixture{src: src, mgr: mgr, store: st, journal: j, logs: logs}
}

func TestFetchesWhenCacheEmpty(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	tb, err := fx.mgr.GetHistoricalData(ctx, Query{Symbol: "ibm", Interval: market.Daily, Save: true})
	require.NoError(t, err)
	assert.Equal(t, 1, fx.src.calls())

	assert.Equal(t, []string{"open", "close", "OBV"}, tb.Columns())
	assert.Equal(t, []time.Time{day(2), day(3), day(4), day(5)}, tb.Index())
	closes, _ := tb.Column("close")
	assert.True(t, math.IsNaN(closes[2]))

	assert.Equal(t, 1, fx.logs.FilterMessageSnippet("no cached data").Len())
	assert.Equal(t, 1, fx.logs.FilterMessageSnippet("no attributes").Len())
	assert.Equal(t, 1, fx.logs.FilterMessageSnippet("no start date").Len())
	assert.Equal(t, 1, fx.logs.FilterMessageSnippet("no end date").Len())

	// the raw table was saved under the upper-cased symbol
	cached, info, err := fx.store.Load(ctx, "IBM", market.Daily)
	require.NoError(t, err)
	assert.Equal(t, 3, cached.Len())
	assert.Equal(t, "IBM", info.Symbol)

	recs, err := fx.journal.List(journal.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].OK())
	assert.Equal(t, "IBM", recs[0].Symbol)
	assert.Equal(t, 3, recs[0].Rows)
	assert.Equal(t, 3, recs[0].Columns)
	assert.Equal(t, 2, recs[0].Calls)
	assert.Equal(t, info.ID, recs[0].SnapshotID)
	assert.NotEmpty(t, recs[0].RunID)
}

func TestLoadsFromCache(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.mgr.GetHistoricalData(ctx, Query{Symbol: "IBM", Interval: market.Daily, Save: true})
	require.NoError(t, err)

	tb, err := fx.mgr.GetHistoricalData(ctx, Query{
		Symbol:   "IBM",
		Interval: market.Daily,
		Attrib:   []string{"close"},
		DropNA:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fx.src.calls())
	assert.Equal(t, []string{"close"}, tb.Columns())
	assert.Equal(t, []time.Time{day(2), day(3), day(5)}, tb.Index())

	// Fetch skips the cache
	_, err = fx.mgr.GetHistoricalData(ctx, Query{Symbol: "IBM", Interval: market.Daily, Fetch: true})
	require.NoError(t, err)
	assert.Equal(t, 2, fx.src.calls())

	infos, err := fx.store.List(ctx, "IBM", market.Daily)
	require.NoError(t, err)
	assert.Len(t, infos, 1, "unsaved fetch must not add a snapshot")

	recs, err := fx.journal.List(journal.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Empty(t, recs[1].SnapshotID)
}

func TestResampleCoarserIntervals(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	weekly, err := fx.mgr.GetHistoricalData(ctx, Query{Symbol: "IBM", Interval: market.Weekly, Attrib: []string{"open"}})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(5)}, weekly.Index())
	open, _ := weekly.Column("open")
	assert.Equal(t, []float64{12}, open)

	monthly, err := fx.mgr.GetHistoricalData(ctx, Query{Symbol: "IBM", Interval: market.Monthly, Attrib: []string{"open"}})
	require.NoError(t, err)
	assert.Equal(t, 1, monthly.Len())
}

func TestExplicitRange(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	tb, err := fx.mgr.GetHistoricalData(context.Background(), Query{
		Symbol:   "IBM",
		Interval: market.Daily,
		Attrib:   []string{"open", "OBV"},
		Start:    day(3),
		End:      day(4),
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(3), day(4)}, tb.Index())
	assert.Zero(t, fx.logs.FilterMessageSnippet("no start date").Len())
}

func TestQueryErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		q     Query
		err   error
		calls int
	}{
		{"intraday interval", Query{Symbol: "IBM", Interval: market.Min5}, market.ErrUnsupportedInterval, 0},
		{"unknown interval", Query{Symbol: "IBM", Interval: "hourly"}, market.ErrUnsupportedInterval, 0},
		{"empty symbol", Query{Symbol: "  ", Interval: market.Daily}, market.ErrInvalidSymbol, 0},
		{"short symbol", Query{Symbol: "ab", Interval: market.Daily}, market.ErrInvalidSymbol, 0},
		{"start before data", Query{Symbol: "IBM", Interval: market.Daily, Start: day(1)}, market.ErrRangeOutOfBounds, 1},
		{"end after data", Query{Symbol: "IBM", Interval: market.Daily, End: day(6)}, market.ErrRangeOutOfBounds, 1},
		{"start after end", Query{Symbol: "IBM", Interval: market.Daily, Start: day(5), End: day(3)}, market.ErrRangeOutOfBounds, 1},
		{"unknown column", Query{Symbol: "IBM", Interval: market.Daily, Attrib: []string{"volume"}}, market.ErrUnknownColumn, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t)
			_, err := fx.mgr.GetHistoricalData(context.Background(), tt.q)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
			assert.Equal(t, tt.calls, fx.src.calls())
		})
	}
}

func TestFailedFetchIsJournaled(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.src.err = errors.New("provider down")

	_, err := fx.mgr.GetHistoricalData(context.Background(), Query{Symbol: "IBM", Interval: market.Daily, Save: true})
	require.Error(t, err)
	assert.ErrorContains(t, err, "provider down")

	recs, err := fx.journal.List(journal.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].OK())
	assert.Contains(t, recs[0].Error, "provider down")
	assert.Empty(t, recs[0].SnapshotID)
	assert.True(t, recs[0].Finished.After(recs[0].Started))

	_, _, err = fx.store.Load(context.Background(), "IBM", market.Daily)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.mgr.Refresh(ctx, "msft", market.Weekly)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", first.Symbol)
	assert.Equal(t, market.Weekly, first.Interval)

	second, err := fx.mgr.Refresh(ctx, "MSFT", market.Weekly)
	require.NoError(t, err)
	assert.True(t, second.FetchedAt.After(first.FetchedAt))
	assert.Equal(t, 2, fx.src.calls())

	infos, err := fx.store.List(ctx, "MSFT", market.Weekly)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	// intraday snapshots are allowed here
	_, err = fx.mgr.Refresh(ctx, "MSFT", market.Min15)
	require.NoError(t, err)

	_, err = fx.mgr.Refresh(ctx, "MSFT", "hourly")
	assert.ErrorIs(t, err, market.ErrUnsupportedInterval)
}
