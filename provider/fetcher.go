// Package provider adapts the remote data API into throttled, normalized
// series and indicator tables.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/stockdata/alphavantage"
	"github.com/rustyeddy/stockdata/market"
	"github.com/rustyeddy/stockdata/throttle"
	"go.uber.org/zap"
)

// DefaultTimePeriod is the look-back passed to period based indicators.
const DefaultTimePeriod = 20

// Source is the remote API used by a Fetcher.
type Source interface {
	TimeSeries(ctx context.Context, symbol string, iv market.Interval, outputSize string) (*market.Table, market.Metadata, error)
	Indicator(ctx context.Context, req alphavantage.IndicatorRequest) (*market.Table, market.Metadata, error)
}

// Dataset is the result of one fetch.
type Dataset struct {
	Symbol     string
	Interval   market.Interval
	Meta       market.Metadata
	Series     *market.Table
	Indicators *market.Table
	Calls      int // remote calls issued

	align bool
}

// Combined concatenates the series and indicator tables. Their indices must
// match exactly unless the fetcher aligns indicators to the series.
func (d *Dataset) Combined() (*market.Table, error) {
	if d.Series == nil {
		return nil, fmt.Errorf("dataset %s %s has no series", d.Symbol, d.Interval)
	}
	if d.Indicators == nil || len(d.Indicators.Columns()) == 0 {
		return d.Series.Select(d.Series.Columns())
	}
	ind := d.Indicators
	if d.align {
		ind = ind.Reindex(d.Series.Index())
	}
	return market.Concat(d.Series, ind)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithOutputSize sets the time-series output size (compact or full).
func WithOutputSize(s string) Option {
	return func(f *Fetcher) { f.outputSize = s }
}

// WithTimePeriod sets the indicator look-back.
func WithTimePeriod(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.timePeriod = n
		}
	}
}

// WithIndicators selects the indicators fetched alongside the series.
func WithIndicators(kinds []Indicator) Option {
	return func(f *Fetcher) { f.indicators = kinds }
}

// WithRetries sets how often a rate-limited call is retried and the first
// backoff delay. Each retry waits for its own throttle slot.
func WithRetries(max uint64, initial time.Duration) Option {
	return func(f *Fetcher) {
		f.maxRetries = max
		if initial > 0 {
			f.retryInitial = initial
		}
	}
}

// WithAlignIndicators reindexes indicators onto the series index before
// combining, filling gaps with NaN.
func WithAlignIndicators(on bool) Option {
	return func(f *Fetcher) { f.align = on }
}

// Fetcher issues throttled provider calls.
type Fetcher struct {
	source     Source
	throttle   *throttle.Throttle
	logger     *zap.Logger
	outputSize string
	timePeriod int
	indicators []Indicator
	align      bool

	maxRetries   uint64
	retryInitial time.Duration
	retryMax     time.Duration
}

// NewFetcher returns a Fetcher that routes every call of src through th.
func NewFetcher(src Source, th *throttle.Throttle, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:     src,
		throttle:   th,
		logger:     zap.NewNop(),
		outputSize: alphavantage.OutputFull,
		timePeriod: DefaultTimePeriod,
		indicators: AllIndicators(),

		maxRetries:   5,
		retryInitial: 2 * time.Second,
		retryMax:     time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the price series of symbol at iv and every configured
// indicator.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, iv market.Interval) (*Dataset, error) {
	symbol = strings.TrimSpace(symbol)
	if len(symbol) <= 2 {
		return nil, fmt.Errorf("%w: %q", market.ErrInvalidSymbol, symbol)
	}
	if !iv.Valid() {
		return nil, fmt.Errorf("%w: %q", market.ErrUnsupportedInterval, iv)
	}
	if err := f.checkIndicators(f.indicators); err != nil {
		return nil, err
	}

	f.logger.Info("downloading time series and technical indicators",
		zap.String("symbol", symbol),
		zap.String("interval", string(iv)))

	s := &session{f: f, symbol: symbol, iv: iv}

	var meta market.Metadata
	series, err := retry(ctx, s, "TIME_SERIES", func(ctx context.Context) (*market.Table, error) {
		tb, m, err := f.source.TimeSeries(ctx, symbol, iv, f.outputSize)
		meta = m
		return tb, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch series %s %s: %w", symbol, iv, err)
	}

	ind, err := s.indicatorTable(ctx, f.indicators)
	if err != nil {
		return nil, err
	}

	f.logger.Info("data downloaded",
		zap.String("symbol", symbol),
		zap.String("interval", string(iv)),
		zap.Int("rows", series.Len()),
		zap.Int("indicator_columns", len(ind.Columns())),
		zap.Int("calls", s.calls))

	return &Dataset{
		Symbol:     symbol,
		Interval:   iv,
		Meta:       meta,
		Series:     series,
		Indicators: ind,
		Calls:      s.calls,
		align:      f.align,
	}, nil
}

// session carries per-fetch state through the handlers.
type session struct {
	f      *Fetcher
	symbol string
	iv     market.Interval
	calls  int
}

func (f *Fetcher) checkIndicators(kinds []Indicator) error {
	for _, k := range kinds {
		if _, ok := handlers[k]; !ok {
			f.logger.Error("technical indicator not implemented", zap.Stringer("indicator", k))
			return fmt.Errorf("%w: %s", ErrUnimplementedIndicator, k)
		}
	}
	return nil
}

func (s *session) indicatorTable(ctx context.Context, kinds []Indicator) (*market.Table, error) {
	if err := s.f.checkIndicators(kinds); err != nil {
		return nil, err
	}

	parts := make([]*market.Table, 0, len(kinds))
	for _, k := range kinds {
		s.f.logger.Info("fetching indicator", zap.Stringer("indicator", k), zap.String("symbol", s.symbol))
		tb, err := handlers[k](ctx, s)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s %s: %w", k, s.symbol, s.iv, err)
		}
		if tb == nil || tb.Empty() {
			continue
		}
		parts = append(parts, tb)
	}
	return market.OuterJoin(parts...)
}

// call issues a throttled indicator request.
func (s *session) call(ctx context.Context, fn, seriesType string, maType int) (*market.Table, error) {
	req := alphavantage.IndicatorRequest{
		Function:   fn,
		Symbol:     s.symbol,
		Interval:   s.iv,
		SeriesType: seriesType,
		MAType:     maType,
	}
	if periodFunctions[fn] {
		req.TimePeriod = s.f.timePeriod
	}

	return retry(ctx, s, fn, func(ctx context.Context) (*market.Table, error) {
		tb, _, err := s.f.source.Indicator(ctx, req)
		return tb, err
	})
}
