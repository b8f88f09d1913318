package provider

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rustyeddy/stockdata/alphavantage"
	"github.com/rustyeddy/stockdata/throttle"
	"go.uber.org/zap"
)

// retry runs fn through the throttle, retrying rate-limit notices with
// exponential backoff. Every attempt takes a throttle slot and is counted
// in s.calls; any other error ends the loop.
func retry[T any](ctx context.Context, s *session, function string, fn func(context.Context) (T, error)) (T, error) {
	get := throttle.Wrap(s.f.throttle, func(ctx context.Context) (T, error) {
		s.calls++
		return fn(ctx)
	})

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.f.retryInitial
	eb.MaxInterval = s.f.retryMax
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.f.maxRetries), ctx)

	var out T
	op := func() error {
		var err error
		out, err = get(ctx)
		if err == nil || errors.Is(err, alphavantage.ErrRateLimited) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, d time.Duration) {
		s.f.logger.Warn("rate limited, retrying",
			zap.String("function", function),
			zap.String("symbol", s.symbol),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
