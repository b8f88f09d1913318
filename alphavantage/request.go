package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrRateLimited is returned when the API answers with a call-frequency
// notice instead of data.
var ErrRateLimited = errors.New("alphavantage: rate limited")

// APIError represents an error reported by the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("alphavantage api error %d: %s", e.StatusCode, e.Message)
	}
	return "alphavantage api error: " + e.Message
}

type payload map[string]json.RawMessage

// doRequest performs one GET /query and classifies the body.
func (c *Client) doRequest(ctx context.Context, params url.Values) (payload, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("apikey", c.apiKey)

	u := strings.TrimRight(c.baseURL, "/") + "/query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
		}
		return nil, apiErr
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if msg, ok := p.message("Error Message"); ok {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if msg, ok := p.message("Note"); ok {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	if msg, ok := p.message("Information"); ok && len(p) == 1 {
		if isRateNotice(msg) {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return p, nil
}

// query performs one request. Retrying rate-limit notices is left to the
// caller so every attempt goes through its throttle.
func (c *Client) query(ctx context.Context, params url.Values) (payload, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("alphavantage: missing api key")
	}
	return c.doRequest(ctx, params)
}

func (p payload) message(key string) (string, bool) {
	raw, ok := p[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

func isRateNotice(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "call frequency") ||
		strings.Contains(m, "rate limit") ||
		strings.Contains(m, "requests per")
}
