package ratelimit

import "context"

// Limiter controls per-channel message throughput over a rolling 60-second
// window. Allow reports whether one more send is admitted right now and, when
// admitted, counts it against the window.
type Limiter interface {
	Allow(ctx context.Context, channel string) (bool, error)
}
