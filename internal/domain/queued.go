package domain

import (
	"fmt"
	"time"
)

// QueueState is the lifecycle state of a queued message.
type QueueState string

const (
	StateQueued       QueueState = "QUEUED"
	StateInFlight     QueueState = "IN_FLIGHT"
	StateDelivered    QueueState = "DELIVERED"
	StateRequeued     QueueState = "REQUEUED"
	StateDeadLettered QueueState = "DEAD_LETTERED"
)

func (s QueueState) String() string { return string(s) }

func (s QueueState) IsValid() bool {
	switch s {
	case StateQueued, StateInFlight, StateDelivered, StateRequeued, StateDeadLettered:
		return true
	}
	return false
}

// IsTerminal reports whether the state ends the message's lifecycle.
func (s QueueState) IsTerminal() bool {
	return s == StateDelivered || s == StateDeadLettered
}

// QueuedMessage wraps a Message with scheduling state. The scheduler is the
// sole owner of Attempts and NextRetryAt after enqueue.
type QueuedMessage struct {
	ID          string
	Message     Message
	Priority    Priority
	EnqueuedAt  time.Time
	Attempts    int
	MaxAttempts int
	NextRetryAt *time.Time
	State       QueueState
}

func (q *QueuedMessage) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: queued message is required", ErrValidation)
	}
	if q.ID == "" {
		return fmt.Errorf("%w: queued message id is required", ErrValidation)
	}
	if err := q.Message.Validate(); err != nil {
		return err
	}
	if q.MaxAttempts < 1 {
		return fmt.Errorf("%w: maxAttempts must be >= 1", ErrValidation)
	}
	if q.Attempts < 0 || q.Attempts > q.MaxAttempts {
		return fmt.Errorf("%w: attempts %d outside [0, %d]", ErrValidation, q.Attempts, q.MaxAttempts)
	}
	return nil
}

// EligibleAt reports whether the message may be dispatched at t.
func (q *QueuedMessage) EligibleAt(t time.Time) bool {
	return q.NextRetryAt == nil || !q.NextRetryAt.After(t)
}
