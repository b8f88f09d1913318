package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnimplementedIndicator is returned for indicator names or kinds that
// have no handler.
var ErrUnimplementedIndicator = errors.New("unimplemented indicator")

// Indicator is a technical-indicator kind computed by the provider.
type Indicator int

const (
	SMA    Indicator = iota + 1 // simple moving average
	EMA                         // exponential moving average
	VWAP                        // volume weighted average price, intraday only
	MACD                        // moving average convergence/divergence
	STOCH                       // stochastic oscillator
	RSI                         // relative strength index
	ADX                         // average directional movement
	CCI                         // commodity channel index
	AROON                       // aroon
	BBANDS                      // bollinger bands
	AD                          // chaikin A/D line
	OBV                         // on balance volume
)

var indicatorNames = map[Indicator]string{
	SMA:    "SMA",
	EMA:    "EMA",
	VWAP:   "VWAP",
	MACD:   "MACD",
	STOCH:  "STOCH",
	RSI:    "RSI",
	ADX:    "ADX",
	CCI:    "CCI",
	AROON:  "AROON",
	BBANDS: "BBANDS",
	AD:     "AD",
	OBV:    "OBV",
}

func (i Indicator) String() string {
	if s, ok := indicatorNames[i]; ok {
		return s
	}
	return fmt.Sprintf("Indicator(%d)", int(i))
}

// AllIndicators lists every supported indicator in fetch order.
func AllIndicators() []Indicator {
	return []Indicator{SMA, EMA, VWAP, MACD, STOCH, RSI, ADX, CCI, AROON, BBANDS, AD, OBV}
}

// ParseIndicator maps a name such as "rsi" to its kind.
func ParseIndicator(s string) (Indicator, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for k, v := range indicatorNames {
		if v == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnimplementedIndicator, s)
}

// ParseIndicators parses a list of names, failing on the first unknown one.
// An empty list selects every indicator.
func ParseIndicators(names []string) ([]Indicator, error) {
	if len(names) == 0 {
		return AllIndicators(), nil
	}
	out := make([]Indicator, 0, len(names))
	for _, n := range names {
		k, err := ParseIndicator(n)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
