package provider

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/stockdata/alphavantage"
	"github.com/rustyeddy/stockdata/market"
	"github.com/rustyeddy/stockdata/throttle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

// fakeSource answers every indicator with one column per name the real
// provider returns, valued by series type so renames can be checked.
type fakeSource struct {
	mu       sync.Mutex
	index    []time.Time
	indIndex []time.Time
	series   int
	reqs     []alphavantage.IndicatorRequest
}

var fakeColumns = map[string][]string{
	"MACD":   {"MACD", "MACD_Hist", "MACD_Signal"},
	"AROON":  {"Aroon Down", "Aroon Up"},
	"BBANDS": {"Real Lower Band", "Real Middle Band", "Real Upper Band"},
	"STOCH":  {"SlowD", "SlowK"},
}

func newFakeSource(days ...int) *fakeSource {
	idx := make([]time.Time, len(days))
	for i, d := range days {
		idx[i] = day(d)
	}
	return &fakeSource{index: idx, indIndex: idx}
}

func (f *fakeSource) TimeSeries(_ context.Context, _ string, _ market.Interval, _ string) (*market.Table, market.Metadata, error) {
	f.mu.Lock()
	f.series++
	f.mu.Unlock()

	tb, err := market.NewTable(f.index)
	if err != nil {
		return nil, market.Metadata{}, err
	}
	vals := make([]float64, len(f.index))
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	if err := tb.AddColumn("open", vals); err != nil {
		return nil, market.Metadata{}, err
	}
	if err := tb.AddColumn("close", vals); err != nil {
		return nil, market.Metadata{}, err
	}
	return tb, market.Metadata{Symbol: "IBM"}, nil
}

func (f *fakeSource) Indicator(_ context.Context, req alphavantage.IndicatorRequest) (*market.Table, market.Metadata, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	cols, ok := fakeColumns[req.Function]
	if !ok {
		cols = []string{req.Function}
	}
	tb, err := market.NewTable(f.indIndex)
	if err != nil {
		return nil, market.Metadata{}, err
	}
	v := 1.0
	if req.SeriesType == "low" {
		v = -1
	}
	v += float64(req.MAType) * 10
	for _, c := range cols {
		vals := make([]float64, len(f.indIndex))
		for i := range vals {
			vals[i] = v
		}
		if err := tb.AddColumn(c, vals); err != nil {
			return nil, market.Metadata{}, err
		}
	}
	return tb, market.Metadata{}, nil
}

func (f *fakeSource) functions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reqs))
	for i, r := range f.reqs {
		out[i] = r.Function
	}
	return out
}

func newTestFetcher(t *testing.T, src Source, opts ...Option) (*Fetcher, *throttle.Throttle) {
	t.Helper()
	th, err := throttle.New(1000, time.Minute)
	require.NoError(t, err)
	return NewFetcher(src, th, opts...), th
}

func TestFetchHighLowPairs(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2, 3, 4)
	f, th := newTestFetcher(t, src, WithIndicators([]Indicator{SMA, MACD, AROON}))

	ds, err := f.Fetch(context.Background(), "IBM", market.Daily)
	require.NoError(t, err)
	assert.Equal(t, 7, ds.Calls)
	assert.Equal(t, 7, th.Len())

	assert.Equal(t, []string{
		"SMA_H", "SMA_L",
		"MACD_Signal_H", "MACD_H", "MACD_Signal_L", "MACD_L",
		"Aroon_Down_H", "Aroon_Up_H", "Aroon_Down_L", "Aroon_Up_L",
	}, ds.Indicators.Columns())

	hi, _ := ds.Indicators.Column("SMA_H")
	lo, _ := ds.Indicators.Column("SMA_L")
	assert.Equal(t, []float64{1, 1, 1}, hi)
	assert.Equal(t, []float64{-1, -1, -1}, lo)

	combined, err := ds.Combined()
	require.NoError(t, err)
	assert.Equal(t, 3, combined.Len())
	assert.Equal(t, "open", combined.Columns()[0])
	assert.Len(t, combined.Columns(), 12)
}

func TestFetchBollingerBands(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2, 3)
	f, _ := newTestFetcher(t, src, WithIndicators([]Indicator{BBANDS}))

	ds, err := f.Fetch(context.Background(), "IBM", market.Daily)
	require.NoError(t, err)
	assert.Equal(t, 5, ds.Calls)

	cols := ds.Indicators.Columns()
	assert.Len(t, cols, 12)
	assert.Equal(t, []string{"BBANDS_Upper_SMA_H", "BBANDS_Lower_SMA_H", "BBANDS_Middle_SMA_H"}, cols[:3])
	assert.Contains(t, cols, "BBANDS_Middle_EMA_L")

	ema, ok := ds.Indicators.Column("BBANDS_Upper_EMA_H")
	require.True(t, ok)
	assert.Equal(t, 11.0, ema[0])
}

func TestFetchPassesTimePeriodOnlyWhereUsed(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2)
	f, _ := newTestFetcher(t, src, WithIndicators([]Indicator{RSI, OBV}), WithTimePeriod(14))

	_, err := f.Fetch(context.Background(), "IBM", market.Daily)
	require.NoError(t, err)

	for _, r := range src.reqs {
		switch r.Function {
		case "RSI":
			assert.Equal(t, 14, r.TimePeriod)
			assert.NotEmpty(t, r.SeriesType)
		case "OBV":
			assert.Zero(t, r.TimePeriod)
			assert.Empty(t, r.SeriesType)
		}
	}
}

func TestVWAPOnlyIntraday(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2, 3)
	f, _ := newTestFetcher(t, src, WithIndicators([]Indicator{VWAP, OBV}))

	ds, err := f.Fetch(context.Background(), "IBM", market.Daily)
	require.NoError(t, err)
	assert.Equal(t, []string{"OBV"}, src.functions())
	assert.Equal(t, []string{"OBV"}, ds.Indicators.Columns())

	src = newFakeSource(2, 3)
	f, _ = newTestFetcher(t, src, WithIndicators([]Indicator{VWAP}))
	ds, err = f.Fetch(context.Background(), "IBM", market.Min5)
	require.NoError(t, err)
	assert.Equal(t, []string{"VWAP"}, ds.Indicators.Columns())
}

func TestFetchRejectsShortSymbol(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2)
	f, _ := newTestFetcher(t, src)

	for _, sym := range []string{"", "AB", "  X "} {
		_, err := f.Fetch(context.Background(), sym, market.Daily)
		assert.ErrorIs(t, err, market.ErrInvalidSymbol, sym)
	}
	assert.Zero(t, src.series)
}

func TestFetchRejectsUnimplementedBeforeCalling(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2)
	f, _ := newTestFetcher(t, src, WithIndicators([]Indicator{SMA, Indicator(99)}))

	_, err := f.Fetch(context.Background(), "IBM", market.Daily)
	assert.ErrorIs(t, err, ErrUnimplementedIndicator)
	assert.Zero(t, src.series)
	assert.Empty(t, src.functions())
}

func TestCombinedIndexMismatch(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2, 3, 4)
	src.indIndex = []time.Time{day(3), day(4), day(5)}

	f, _ := newTestFetcher(t, src, WithIndicators([]Indicator{OBV}))
	ds, err := f.Fetch(context.Background(), "IBM", market.Daily)
	require.NoError(t, err)

	_, err = ds.Combined()
	assert.ErrorIs(t, err, market.ErrIndexMismatch)

	f, _ = newTestFetcher(t, src, WithIndicators([]Indicator{OBV}), WithAlignIndicators(true))
	ds, err = f.Fetch(context.Background(), "IBM", market.Daily)
	require.NoError(t, err)

	combined, err := ds.Combined()
	require.NoError(t, err)
	assert.Equal(t, 3, combined.Len())
	obv, _ := combined.Column("OBV")
	assert.True(t, math.IsNaN(obv[0]))
	assert.Equal(t, 1.0, obv[1])
}

func TestCombinedWithoutIndicators(t *testing.T) {
	t.Parallel()

	src := newFakeSource(2, 3)
	f, _ := newTestFetcher(t, src, WithIndicators(nil))

	ds, err := f.Fetch(context.Background(), "IBM", market.Daily)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Calls)

	combined, err := ds.Combined()
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "close"}, combined.Columns())
}

func TestFetchHonoursThrottle(t *testing.T) {
	t.Parallel()

	th, err := throttle.New(2, time.Hour)
	require.NoError(t, err)
	f := NewFetcher(newFakeSource(2), th, WithIndicators([]Indicator{SMA}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// third call has to wait an hour
	_, err = f.Fetch(ctx, "IBM", market.Daily)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseIndicators(t *testing.T) {
	t.Parallel()

	all, err := ParseIndicators(nil)
	require.NoError(t, err)
	assert.Equal(t, AllIndicators(), all)

	got, err := ParseIndicators([]string{"rsi", " BBands "})
	require.NoError(t, err)
	assert.Equal(t, []Indicator{RSI, BBANDS}, got)

	_, err = ParseIndicators([]string{"sma", "ichimoku"})
	assert.ErrorIs(t, err, ErrUnimplementedIndicator)
	assert.True(t, strings.Contains(err.Error(), "ichimoku"))

	assert.Equal(t, "AROON", AROON.String())
	assert.Equal(t, "Indicator(42)", Indicator(42).String())
}
