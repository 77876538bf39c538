package adapter

import (
	"context"
	"net/http"
	"time"

	"github.com/gatherly/notify/internal/domain"
)

const defaultSendTimeout = 10 * time.Second

// Adapter binds the delivery service to one channel's provider API.
//
// Send never returns an error: transport and provider failures are normalized
// into a failed MessageResult so partial-failure handling stays uniform across
// channels. IsAvailable is a pure credential check, not a liveness probe.
type Adapter interface {
	Send(ctx context.Context, msg domain.Message) domain.MessageResult
	IsAvailable() bool
	Channel() domain.Channel
}

// Registry holds the configured adapters. It is an explicit value handed to
// the delivery service so tests can substitute fakes without global state.
type Registry struct {
	adapters map[domain.Channel]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.Channel]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		r.adapters[a.Channel()] = a
	}
	return r
}

// Get returns the adapter registered for a channel, or nil.
func (r *Registry) Get(channel domain.Channel) Adapter {
	if r == nil {
		return nil
	}
	return r.adapters[channel]
}

// Available reports whether the channel has an adapter with credentials.
func (r *Registry) Available(channel domain.Channel) bool {
	a := r.Get(channel)
	return a != nil && a.IsAvailable()
}

// Channels returns every registered channel in stable declaration order.
func (r *Registry) Channels() []domain.Channel {
	if r == nil {
		return nil
	}
	channels := make([]domain.Channel, 0, len(r.adapters))
	for _, ch := range domain.Channels() {
		if _, ok := r.adapters[ch]; ok {
			channels = append(channels, ch)
		}
	}
	return channels
}

// AvailableChannels returns the channels whose adapters hold credentials.
func (r *Registry) AvailableChannels() []domain.Channel {
	if r == nil {
		return nil
	}
	channels := make([]domain.Channel, 0, len(r.adapters))
	for _, ch := range r.Channels() {
		if r.Available(ch) {
			channels = append(channels, ch)
		}
	}
	return channels
}

func successResult(channel domain.Channel, messageID string, at time.Time) domain.MessageResult {
	return domain.MessageResult{
		Success:      true,
		MessageID:    messageID,
		Channel:      channel,
		Timestamp:    at,
		AttemptCount: 1,
	}
}

func failureResult(channel domain.Channel, errMsg string, at time.Time) domain.MessageResult {
	return domain.MessageResult{
		Success:      false,
		Error:        errMsg,
		Channel:      channel,
		Timestamp:    at,
		AttemptCount: 1,
	}
}

// isTransientHTTPStatus mirrors provider retry semantics: 429 and 5xx are
// worth retrying, anything else in the error range is permanent.
func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}
