package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultLimitPerMinute = 60
	windowDuration        = time.Minute
)

var _ Limiter = (*WindowLimiter)(nil)

// WindowLimiter is an in-process rolling-window rate limiter. It keeps the
// send timestamps of the last 60 seconds per channel and admits a send only
// while the window holds fewer than the limit.
type WindowLimiter struct {
	mu             sync.Mutex
	limitPerMinute int
	now            func() time.Time
	sends          map[string][]time.Time
}

func NewWindowLimiter(limitPerMinute int) *WindowLimiter {
	return newWindowLimiter(limitPerMinute, time.Now)
}

func newWindowLimiter(limitPerMinute int, nowFn func() time.Time) *WindowLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = defaultLimitPerMinute
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &WindowLimiter{
		limitPerMinute: limitPerMinute,
		now:            nowFn,
		sends:          make(map[string][]time.Time),
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, channel string) (bool, error) {
	normalizedChannel := strings.ToLower(strings.TrimSpace(channel))
	if normalizedChannel == "" {
		return false, fmt.Errorf("channel is required")
	}
	if ctx != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}

	now := l.now()
	cutoff := now.Add(-windowDuration)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.sends[normalizedChannel][:0]
	for _, ts := range l.sends[normalizedChannel] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= l.limitPerMinute {
		l.sends[normalizedChannel] = recent
		return false, nil
	}

	l.sends[normalizedChannel] = append(recent, now)
	return true, nil
}
