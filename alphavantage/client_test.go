package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rustyeddy/stockdata/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("demo", WithBaseURL(srv.URL))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func dailyBody() map[string]any {
	return map[string]any{
		"Meta Data": map[string]string{
			"1. Information":    "Daily Time Series with Splits and Dividend Events",
			"2. Symbol":         "IBM",
			"3. Last Refreshed": "2024-01-03",
			"4. Output Size":    "Full size",
			"5. Time Zone":      "US/Eastern",
		},
		"Time Series (Daily)": map[string]map[string]string{
			"2024-01-03": {
				"1. open": "161.0", "2. high": "161.73", "3. low": "160.08", "4. close": "160.1",
				"5. adjusted close": "160.1", "6. volume": "4086133", "7. dividend amount": "0.0000", "8. split coefficient": "1.0",
			},
			"2024-01-02": {
				"1. open": "162.83", "2. high": "163.29", "3. low": "160.5", "4. close": "161.5",
				"5. adjusted close": "161.5", "6. volume": "3825045", "7. dividend amount": "0.0000", "8. split coefficient": "1.0",
			},
		},
	}
}

func TestTimeSeriesDaily(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "TIME_SERIES_DAILY_ADJUSTED", q.Get("function"))
		require.Equal(t, "IBM", q.Get("symbol"))
		require.Equal(t, "full", q.Get("outputsize"))
		require.Equal(t, "demo", q.Get("apikey"))
		writeJSON(w, dailyBody())
	})

	tb, meta, err := c.TimeSeries(context.Background(), "IBM", market.Daily, OutputFull)
	require.NoError(t, err)

	assert.Equal(t, "IBM", meta.Symbol)
	assert.Equal(t, "US/Eastern", meta.TimeZone)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), meta.LastRefreshed)

	assert.Equal(t, 2, tb.Len())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), tb.First())
	assert.Equal(t, []string{"open", "high", "low", "close", "adjusted close", "volume", "dividend amount", "split coefficient"}, tb.Columns())

	closes, ok := tb.Column("close")
	require.True(t, ok)
	assert.Equal(t, []float64{161.5, 160.1}, closes)
}

func TestTimeSeriesWeeklyOmitsOutputSize(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "TIME_SERIES_WEEKLY_ADJUSTED", q.Get("function"))
		require.Empty(t, q.Get("outputsize"))
		writeJSON(w, map[string]any{
			"Meta Data": map[string]string{"2. Symbol": "IBM"},
			"Weekly Adjusted Time Series": map[string]map[string]string{
				"2024-01-05": {"1. open": "1", "4. close": "2"},
			},
		})
	})

	tb, _, err := c.TimeSeries(context.Background(), "IBM", market.Weekly, OutputFull)
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "close"}, tb.Columns())
}

func TestTimeSeriesIntraday(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "TIME_SERIES_INTRADAY", q.Get("function"))
		require.Equal(t, "5min", q.Get("interval"))
		writeJSON(w, map[string]any{
			"Meta Data": map[string]string{"2. Symbol": "IBM", "4. Interval": "5min"},
			"Time Series (5min)": map[string]map[string]string{
				"2024-01-02 09:35:00": {"1. open": "1", "5. volume": "10"},
				"2024-01-02 09:40:00": {"1. open": "2", "5. volume": "20"},
			},
		})
	})

	tb, meta, err := c.TimeSeries(context.Background(), "IBM", market.Min5, "")
	require.NoError(t, err)
	assert.Equal(t, "5min", meta.Interval)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 40, 0, 0, time.UTC), tb.Last())
}

func TestTimeSeriesRejectsUnknownInterval(t *testing.T) {
	t.Parallel()

	c := NewClient("demo")
	_, _, err := c.TimeSeries(context.Background(), "IBM", market.Interval("hourly"), "")
	assert.ErrorIs(t, err, market.ErrUnsupportedInterval)
}

func TestIndicatorRequest(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "BBANDS", q.Get("function"))
		require.Equal(t, "daily", q.Get("interval"))
		require.Equal(t, "high", q.Get("series_type"))
		require.Equal(t, "20", q.Get("time_period"))
		require.Equal(t, "1", q.Get("matype"))
		writeJSON(w, map[string]any{
			"Meta Data": map[string]any{"1: Symbol": "IBM", "2: Indicator": "Bollinger Bands (BBANDS)", "5: Time Period": 20},
			"Technical Analysis: BBANDS": map[string]map[string]string{
				"2024-01-02": {"Real Upper Band": "3", "Real Middle Band": "2", "Real Lower Band": "1"},
			},
		})
	})

	tb, meta, err := c.Indicator(context.Background(), IndicatorRequest{
		Function:   "bbands",
		Symbol:     "IBM",
		Interval:   market.Daily,
		SeriesType: "high",
		TimePeriod: 20,
		MAType:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bollinger Bands (BBANDS)", meta.Information)
	assert.Equal(t, []string{"Real Lower Band", "Real Middle Band", "Real Upper Band"}, tb.Columns())
}

func TestIndicatorOmitsEmptyParams(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "OBV", q.Get("function"))
		_, hasSeries := q["series_type"]
		_, hasPeriod := q["time_period"]
		require.False(t, hasSeries)
		require.False(t, hasPeriod)
		writeJSON(w, map[string]any{
			"Meta Data":               map[string]string{},
			"Technical Analysis: OBV": map[string]map[string]string{"2024-01-02": {"OBV": "100"}},
		})
	})

	tb, _, err := c.Indicator(context.Background(), IndicatorRequest{Function: "OBV", Symbol: "IBM", Interval: market.Daily})
	require.NoError(t, err)
	assert.Equal(t, []string{"OBV"}, tb.Columns())
}

func TestErrorMessageIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, map[string]string{"Error Message": "Invalid API call."})
	})

	_, _, err := c.TimeSeries(context.Background(), "NOPE", market.Daily, "")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "Invalid API call")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimitNotices(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body map[string]string
	}{
		{"note", map[string]string{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}},
		{"information", map[string]string{"Information": "You have exceeded the rate limit of 25 requests per day."}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(w, tt.body)
			})

			_, _, err := c.TimeSeries(context.Background(), "IBM", market.Daily, "")
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.Equal(t, int32(1), calls.Load(), "the client never retries on its own")
		})
	}
}

func TestInformationWithoutRateNoticeIsAPIError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"Information": "The demo API key is for demo purposes only."})
	})

	_, _, err := c.TimeSeries(context.Background(), "MSFT", market.Daily, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	var apiErr *APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestHTTPStatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{name: "server error", status: http.StatusBadGateway},
		{name: "client error", status: http.StatusForbidden},
		{name: "too many requests", status: http.StatusTooManyRequests, rateLimited: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, "nope", tt.status)
			})

			_, _, err := c.TimeSeries(context.Background(), "IBM", market.Daily, "")
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.rateLimited, errors.Is(err, ErrRateLimited))
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Parallel()

	c := NewClient("")
	_, _, err := c.TimeSeries(context.Background(), "IBM", market.Daily, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing api key")
}
