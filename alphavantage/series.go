package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/stockdata/market"
	"go.uber.org/zap"
)

// IndicatorRequest selects one technical-indicator series.
type IndicatorRequest struct {
	Function   string // e.g. SMA, BBANDS
	Symbol     string
	Interval   market.Interval
	SeriesType string // open, high, low, close; empty if the function takes none
	TimePeriod int    // 0 omits the parameter
	MAType     int    // 0 omits the parameter
}

var (
	keyPrefix = regexp.MustCompile(`^\d+[a-z]?[.:]\s*`)
	ordinal   = regexp.MustCompile(`^\d+`)
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// TimeSeries fetches the price series of symbol at iv. Intraday intervals
// use TIME_SERIES_INTRADAY, the others the adjusted daily, weekly and
// monthly series.
func (c *Client) TimeSeries(ctx context.Context, symbol string, iv market.Interval, outputSize string) (*market.Table, market.Metadata, error) {
	if symbol == "" {
		return nil, market.Metadata{}, fmt.Errorf("alphavantage: missing symbol")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	switch {
	case iv.Intraday():
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", string(iv))
	case iv == market.Daily:
		params.Set("function", "TIME_SERIES_DAILY_ADJUSTED")
	case iv == market.Weekly:
		params.Set("function", "TIME_SERIES_WEEKLY_ADJUSTED")
	case iv == market.Monthly:
		params.Set("function", "TIME_SERIES_MONTHLY_ADJUSTED")
	default:
		return nil, market.Metadata{}, fmt.Errorf("%w: %q", market.ErrUnsupportedInterval, iv)
	}
	// weekly and monthly endpoints ignore outputsize
	if outputSize != "" && (iv.Intraday() || iv == market.Daily) {
		params.Set("outputsize", outputSize)
	}

	p, err := c.query(ctx, params)
	if err != nil {
		return nil, market.Metadata{}, err
	}

	tb, meta, err := parseSeries(p, "Time Series", "Time Series")
	if err != nil {
		return nil, meta, fmt.Errorf("%s %s: %w", params.Get("function"), symbol, err)
	}

	c.logger.Info("fetched time series",
		zap.String("information", meta.Information),
		zap.String("symbol", meta.Symbol),
		zap.Time("last_refreshed", meta.LastRefreshed),
		zap.Int("rows", tb.Len()))
	return tb, meta, nil
}

// Indicator fetches one technical-indicator series.
func (c *Client) Indicator(ctx context.Context, req IndicatorRequest) (*market.Table, market.Metadata, error) {
	if req.Function == "" {
		return nil, market.Metadata{}, fmt.Errorf("alphavantage: missing indicator function")
	}
	if req.Symbol == "" {
		return nil, market.Metadata{}, fmt.Errorf("alphavantage: missing symbol")
	}

	fn := strings.ToUpper(req.Function)
	params := url.Values{}
	params.Set("function", fn)
	params.Set("symbol", req.Symbol)
	params.Set("interval", string(req.Interval))
	if req.SeriesType != "" {
		params.Set("series_type", req.SeriesType)
	}
	if req.TimePeriod > 0 {
		params.Set("time_period", strconv.Itoa(req.TimePeriod))
	}
	if req.MAType > 0 {
		params.Set("matype", strconv.Itoa(req.MAType))
	}

	p, err := c.query(ctx, params)
	if err != nil {
		return nil, market.Metadata{}, err
	}

	tb, meta, err := parseSeries(p, "Technical Analysis: "+fn, "Technical Analysis")
	if err != nil {
		return nil, meta, fmt.Errorf("%s %s: %w", fn, req.Symbol, err)
	}

	c.logger.Debug("fetched indicator",
		zap.String("function", fn),
		zap.String("symbol", req.Symbol),
		zap.String("series_type", req.SeriesType),
		zap.Int("rows", tb.Len()))
	return tb, meta, nil
}

// parseSeries finds the data object (exact key, else the first key
// containing part) and converts it to a table.
func parseSeries(p payload, key, part string) (*market.Table, market.Metadata, error) {
	meta, err := parseMeta(p["Meta Data"])
	if err != nil {
		return nil, meta, err
	}

	raw, ok := p[key]
	if !ok {
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.Contains(k, part) {
				raw, ok = p[k], true
				break
			}
		}
	}
	if !ok {
		return nil, meta, fmt.Errorf("no %q object in response", key)
	}

	var rows map[string]map[string]string
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, meta, fmt.Errorf("decode series: %w", err)
	}

	colSet := map[string]struct{}{}
	records := make([]market.Record, 0, len(rows))
	for ts, fields := range rows {
		t, err := parseTime(ts)
		if err != nil {
			return nil, meta, err
		}
		vals := make(map[string]float64, len(fields))
		for k, s := range fields {
			name := columnName(k)
			v, err := market.ParseFloat(s)
			if err != nil {
				return nil, meta, fmt.Errorf("%s %s: %w", ts, k, err)
			}
			vals[name] = v
			colSet[name] = struct{}{}
		}
		records = append(records, market.Record{Time: t, Values: vals})
	}

	cols := make([]string, 0, len(colSet))
	for c := range colSet {
		cols = append(cols, c)
	}
	sortColumns(cols, rows)

	tb, err := market.FromRecords(records, cols)
	if err != nil {
		return nil, meta, err
	}
	return tb, meta, nil
}

// sortColumns orders columns by their numeric key prefix when the provider
// numbers them ("1. open"), else alphabetically.
func sortColumns(cols []string, rows map[string]map[string]string) {
	rank := map[string]int{}
	for _, fields := range rows {
		for k := range fields {
			if keyPrefix.MatchString(k) {
				n, _ := strconv.Atoi(ordinal.FindString(k))
				rank[columnName(k)] = n
			}
		}
		break
	}
	sort.Slice(cols, func(i, j int) bool {
		ri, iok := rank[cols[i]]
		rj, jok := rank[cols[j]]
		if iok && jok && ri != rj {
			return ri < rj
		}
		return cols[i] < cols[j]
	})
}

func parseMeta(raw json.RawMessage) (market.Metadata, error) {
	var meta market.Metadata
	if len(raw) == 0 {
		return meta, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return meta, fmt.Errorf("decode meta data: %w", err)
	}
	for k, v := range fields {
		s := fmt.Sprint(v)
		switch columnName(k) {
		case "Information", "Indicator":
			meta.Information = s
		case "Symbol":
			meta.Symbol = s
		case "Last Refreshed":
			if t, err := parseTime(s); err == nil {
				meta.LastRefreshed = t
			}
		case "Interval":
			meta.Interval = s
		case "Output Size":
			meta.OutputSize = s
		case "Time Zone":
			meta.TimeZone = s
		}
	}
	return meta, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q", s)
}

// columnName drops the provider's ordinal prefix: "1. open" -> "open".
func columnName(k string) string {
	return keyPrefix.ReplaceAllString(k, "")
}
