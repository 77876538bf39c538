package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gatherly/notify/internal/domain"
)

// Catalog is the in-process template registry, populated at startup.
type Catalog struct {
	templates map[string]domain.Template
}

func NewCatalog() *Catalog {
	return &Catalog{templates: make(map[string]domain.Template)}
}

func (c *Catalog) Register(t domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	id := strings.TrimSpace(t.ID)
	if _, exists := c.templates[id]; exists {
		return fmt.Errorf("%w: template %q already registered", domain.ErrValidation, id)
	}
	c.templates[id] = t
	return nil
}

func (c *Catalog) Get(id string) (domain.Template, error) {
	t, ok := c.templates[strings.TrimSpace(id)]
	if !ok {
		return domain.Template{}, fmt.Errorf("%w: %q", domain.ErrTemplateNotFound, id)
	}
	return t, nil
}

// IDs returns all registered template ids, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.templates))
	for id := range c.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultCatalog registers the platform's stock notification templates.
func DefaultCatalog() *Catalog {
	c := NewCatalog()

	stock := []domain.Template{
		{
			ID:              "event-reminder",
			Subject:         "Reminder: {{eventName}}",
			Body:            "Hi {{userName}},\n\n**{{eventName}}** starts at {{startTime}} at {{venueName}}.\nSee you there!",
			Channels:        domain.Channels(),
			Variables:       []string{"userName", "eventName", "startTime", "venueName"},
			DefaultPriority: domain.PriorityNormal,
		},
		{
			ID:              "waitlist-spot-available",
			Subject:         "A spot opened up for {{eventName}}",
			Body:            "Good news {{userName}}! A spot just opened up for **{{eventName}}**.\nClaim it within {{holdMinutes}} minutes: {{claimUrl}}",
			Channels:        domain.Channels(),
			Variables:       []string{"userName", "eventName", "holdMinutes", "claimUrl"},
			DefaultPriority: domain.PriorityUrgent,
		},
		{
			ID:              "booking-confirmed",
			Subject:         "Booking confirmed: {{eventName}}",
			Body:            "You're in, {{userName}}! Your booking for **{{eventName}}** on {{startTime}} is confirmed.\nBooking code: `{{bookingCode}}`",
			Channels:        domain.Channels(),
			Variables:       []string{"userName", "eventName", "startTime", "bookingCode"},
			DefaultPriority: domain.PriorityHigh,
		},
		{
			ID:              "event-cancelled",
			Subject:         "Cancelled: {{eventName}}",
			Body:            "Unfortunately **{{eventName}}** on {{startTime}} has been cancelled.\n{{reason}}",
			Channels:        domain.Channels(),
			Variables:       []string{"eventName", "startTime", "reason"},
			DefaultPriority: domain.PriorityUrgent,
		},
		{
			ID:              "event-updated",
			Subject:         "Update for {{eventName}}",
			Body:            "Heads up {{userName}}: details for **{{eventName}}** changed.\n{{changeSummary}}",
			Channels:        domain.Channels(),
			Variables:       []string{"userName", "eventName", "changeSummary"},
			DefaultPriority: domain.PriorityNormal,
		},
	}

	for _, t := range stock {
		// Stock templates are validated at build time via tests; Register only
		// fails on duplicates here.
		_ = c.Register(t)
	}

	return c
}
