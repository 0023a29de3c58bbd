package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxRetries bounds retries of throttled requests.
const maxRetries = 3

// attemptFunc performs one request. retryAfter is negative when err is final.
type attemptFunc func(ctx context.Context, req Request) (body json.RawMessage, retryAfter time.Duration, err error)

// throttle is the token bucket and retry policy in front of every transport.
type throttle struct {
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// newThrottle allows rps requests per second. A non-positive rps disables
// the bucket.
func newThrottle(rps float64, burst int) throttle {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return throttle{limiter: rate.NewLimiter(limit, burst), sleep: sleepContext}
}

// do waits for a token before each attempt and retries throttled attempts
// after their retry hint, at most maxRetries times.
func (t throttle) do(ctx context.Context, req Request, attempt attemptFunc) (json.RawMessage, error) {
	for n := 0; ; n++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, retryAfter, err := attempt(ctx, req)
		if err == nil {
			return body, nil
		}
		if retryAfter < 0 || n >= maxRetries {
			return nil, err
		}
		if err := t.sleep(ctx, retryAfter); err != nil {
			return nil, err
		}
	}
}

// retryHint returns how long to wait before retrying a response, or -1 when
// the response is final.
func retryHint(statusCode int, header string, gqlErr *GraphQLError) time.Duration {
	if statusCode == http.StatusTooManyRequests {
		return retryAfterHeader(header)
	}
	if gqlErr != nil && gqlErr.Throttled() {
		return 2 * time.Second
	}
	return -1
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
