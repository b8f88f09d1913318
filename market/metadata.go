package market

import "time"

// Metadata describes a series as reported by the provider.
type Metadata struct {
	Information   string
	Symbol        string
	LastRefreshed time.Time
	Interval      string
	OutputSize    string
	TimeZone      string
}
