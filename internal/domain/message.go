package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents an outbound delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelTelegram Channel = "TELEGRAM"
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelSMS      Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelTelegram, ChannelWhatsApp, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Channels returns every supported channel in declaration order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelTelegram, ChannelWhatsApp, ChannelSMS}
}

// Priority represents the message priority level.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// Weight orders priorities for dispatch: higher dispatches first.
func (p Priority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Priorities returns every priority level from most to least urgent.
func Priorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// Metadata keys stamped onto chunk copies of an oversized message.
const (
	MetaChunkIndex  = "chunkIndex"
	MetaTotalChunks = "totalChunks"
)

// Message is a single outbound notification. It is immutable once constructed;
// only chunk copies carry rewritten content.
type Message struct {
	To       string
	Subject  string
	Content  string
	Channel  Channel
	Priority Priority
	Metadata map[string]string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if !m.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, m.Channel)
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, m.Priority)
	}
	return nil
}

// WithContent returns a copy of the message carrying new content and a cloned
// metadata map, leaving the original untouched.
func (m Message) WithContent(content string) Message {
	clone := m
	clone.Content = content
	if m.Metadata != nil {
		clone.Metadata = make(map[string]string, len(m.Metadata)+2)
		for k, v := range m.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// MessageResult records the outcome of one adapter attempt sequence for one
// chunk. Instances are produced once and never mutated.
type MessageResult struct {
	Success      bool
	MessageID    string
	Error        string
	Channel      Channel
	Timestamp    time.Time
	AttemptCount int
}
