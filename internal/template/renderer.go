package template

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gatherly/notify/internal/domain"
)

// Renderer fills template placeholders and applies channel formatting.
type Renderer struct {
	catalog *Catalog
}

func NewRenderer(catalog *Catalog) (*Renderer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("template catalog is required")
	}
	return &Renderer{catalog: catalog}, nil
}

// Render produces a Message from a template. The caller supplies the
// destination afterwards; Render owns channel, subject, content, and the
// template's default priority.
//
// Placeholders use the literal {{name}} form. Unmatched placeholders are left
// in place rather than rejected, so a half-filled render is visible in the
// delivered output and in logs.
func (r *Renderer) Render(templateID string, variables map[string]string, channel domain.Channel) (domain.Message, error) {
	t, err := r.catalog.Get(templateID)
	if err != nil {
		return domain.Message{}, err
	}

	if !channel.IsValid() {
		return domain.Message{}, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}
	if !t.SupportsChannel(channel) {
		return domain.Message{}, fmt.Errorf("%w: template %q does not support channel %s",
			domain.ErrChannelNotSupported, t.ID, channel)
	}

	if missing := missingVariables(t, variables); len(missing) > 0 {
		return domain.Message{}, fmt.Errorf("%w: template %q requires %s",
			domain.ErrMissingVariables, t.ID, strings.Join(missing, ", "))
	}

	body := substitute(t.Body, variables)
	subject := substitute(t.Subject, variables)

	return domain.Message{
		Subject:  subject,
		Content:  FormatForChannel(body, channel),
		Channel:  channel,
		Priority: t.DefaultPriority,
	}, nil
}

// missingVariables returns every declared variable absent from the supplied
// map, sorted, so the caller sees the full set at once.
func missingVariables(t domain.Template, variables map[string]string) []string {
	var missing []string
	for _, name := range t.Variables {
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func substitute(text string, variables map[string]string) string {
	if text == "" || len(variables) == 0 {
		return text
	}
	pairs := make([]string, 0, len(variables)*2)
	for name, value := range variables {
		pairs = append(pairs, "{{"+name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
