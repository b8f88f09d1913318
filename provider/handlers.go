package provider

import (
	"context"
	"strings"

	"github.com/rustyeddy/stockdata/market"
	"go.uber.org/zap"
)

type handler func(ctx context.Context, s *session) (*market.Table, error)

// variant is one (series type, moving average type) request of a
// multi-call indicator. suffix is appended to the renamed columns.
type variant struct {
	seriesType string
	maType     int
	suffix     string
}

var (
	highLow = []variant{
		{seriesType: "high", suffix: "_H"},
		{seriesType: "low", suffix: "_L"},
	}
	// matype 0 is SMA, 1 is EMA
	bandVariants = []variant{
		{seriesType: "high", maType: 0, suffix: "_SMA_H"},
		{seriesType: "high", maType: 1, suffix: "_EMA_H"},
		{seriesType: "low", maType: 0, suffix: "_SMA_L"},
		{seriesType: "low", maType: 1, suffix: "_EMA_L"},
	}
)

// periodFunctions take a time_period parameter.
var periodFunctions = map[string]bool{
	"SMA": true, "EMA": true, "RSI": true, "ADX": true,
	"CCI": true, "AROON": true, "BBANDS": true,
}

var handlers = map[Indicator]handler{
	SMA:    multi("SMA", []string{"SMA"}, appendSuffix, highLow),
	EMA:    multi("EMA", []string{"EMA"}, appendSuffix, highLow),
	RSI:    multi("RSI", []string{"RSI"}, appendSuffix, highLow),
	MACD:   multi("MACD", []string{"MACD_Signal", "MACD"}, appendSuffix, highLow),
	AROON:  multi("AROON", []string{"Aroon Down", "Aroon Up"}, underscoreSuffix, highLow),
	BBANDS: multi("BBANDS", []string{"Real Upper Band", "Real Lower Band", "Real Middle Band"}, bandName, bandVariants),
	STOCH:  single("STOCH"),
	ADX:    single("ADX"),
	CCI:    single("CCI"),
	AD:     single("AD"),
	OBV:    single("OBV"),
	VWAP:   intradayOnly(single("VWAP"), "VWAP"),
}

// single fetches an indicator once and keeps the provider's columns.
func single(fn string) handler {
	return func(ctx context.Context, s *session) (*market.Table, error) {
		return s.call(ctx, fn, "", 0)
	}
}

// multi fetches fn once per variant, keeps the picked columns, renames them
// and outer-joins the parts.
func multi(fn string, pick []string, rename func(col, suffix string) string, variants []variant) handler {
	return func(ctx context.Context, s *session) (*market.Table, error) {
		parts := make([]*market.Table, 0, len(variants))
		for _, v := range variants {
			tb, err := s.call(ctx, fn, v.seriesType, v.maType)
			if err != nil {
				return nil, err
			}
			sel, err := tb.Select(pick)
			if err != nil {
				return nil, err
			}
			names := make([]string, len(pick))
			for i, c := range pick {
				names[i] = rename(c, v.suffix)
			}
			if err := sel.RenameColumns(names); err != nil {
				return nil, err
			}
			parts = append(parts, sel)
		}
		return market.OuterJoin(parts...)
	}
}

// intradayOnly skips h, with a warning, for daily and coarser intervals.
func intradayOnly(h handler, name string) handler {
	return func(ctx context.Context, s *session) (*market.Table, error) {
		if !s.iv.Intraday() {
			s.f.logger.Warn("indicator only supports intraday data, no data gathered",
				zap.String("indicator", name),
				zap.String("interval", string(s.iv)))
			return nil, nil
		}
		return h(ctx, s)
	}
}

func appendSuffix(col, suffix string) string { return col + suffix }

// "Aroon Down" + "_H" -> "Aroon_Down_H"
func underscoreSuffix(col, suffix string) string {
	return strings.ReplaceAll(col, " ", "_") + suffix
}

// "Real Upper Band" + "_SMA_H" -> "BBANDS_Upper_SMA_H"
func bandName(col, suffix string) string {
	f := strings.Fields(col)
	part := col
	if len(f) >= 2 {
		part = f[1]
	}
	return "BBANDS_" + part + suffix
}
