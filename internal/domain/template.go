package domain

import "fmt"

// Template is a reusable message body with named {{placeholders}}.
type Template struct {
	ID              string
	Subject         string
	Body            string
	Channels        []Channel
	Variables       []string
	DefaultPriority Priority
}

func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: template id is required", ErrValidation)
	}
	if t.Body == "" {
		return fmt.Errorf("%w: template body is required", ErrValidation)
	}
	if len(t.Channels) == 0 {
		return fmt.Errorf("%w: template must declare at least one channel", ErrValidation)
	}
	for _, ch := range t.Channels {
		if !ch.IsValid() {
			return fmt.Errorf("%w: invalid template channel %q", ErrValidation, ch)
		}
	}
	if !t.DefaultPriority.IsValid() {
		return fmt.Errorf("%w: invalid template priority %q", ErrValidation, t.DefaultPriority)
	}
	return nil
}

// SupportsChannel reports whether the template declares the channel.
func (t Template) SupportsChannel(ch Channel) bool {
	for _, c := range t.Channels {
		if c == ch {
			return true
		}
	}
	return false
}
