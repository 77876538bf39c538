package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gatherly/notify/internal/domain"
)

const defaultSendGridBaseURL = "https://api.sendgrid.com"

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// EmailAdapter delivers via the SendGrid transactional mail API.
type EmailAdapter struct {
	client  *resty.Client
	apiKey  string
	from    string
	baseURL string
	now     func() time.Time
}

func NewEmailAdapter(apiKey, from string) *EmailAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewEmailAdapterWithClient(apiKey, from, defaultSendGridBaseURL, client)
}

func NewEmailAdapterWithClient(apiKey, from, baseURL string, client *resty.Client) *EmailAdapter {
	if client == nil {
		client = resty.New().SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &EmailAdapter{
		client:  client,
		apiKey:  strings.TrimSpace(apiKey),
		from:    strings.TrimSpace(from),
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		now:     time.Now,
	}
}

func (a *EmailAdapter) Channel() domain.Channel { return domain.ChannelEmail }

func (a *EmailAdapter) IsAvailable() bool {
	return a != nil && a.apiKey != "" && a.from != ""
}

func (a *EmailAdapter) Send(ctx context.Context, msg domain.Message) domain.MessageResult {
	at := a.now().UTC()
	if !a.IsAvailable() {
		return failureResult(domain.ChannelEmail, "email adapter is not configured", at)
	}

	subject := msg.Subject
	if subject == "" {
		subject = "Notification"
	}

	reqBody := sendGridRequest{
		Personalizations: []sendGridPersonalization{{To: []sendGridAddress{{Email: msg.To}}}},
		From:             sendGridAddress{Email: a.from},
		Subject:          subject,
		Content:          []sendGridContent{{Type: "text/html", Value: msg.Content}},
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+a.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(a.baseURL + "/v3/mail/send")
	if err != nil {
		return failureResult(domain.ChannelEmail, fmt.Sprintf("sendgrid request failed: %v", err), at)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return successResult(domain.ChannelEmail, strings.TrimSpace(response.Header().Get("X-Message-Id")), at)
	}

	return failureResult(domain.ChannelEmail, providerStatusError("sendgrid", statusCode, response.String()), at)
}

func providerStatusError(provider string, statusCode int, body string) string {
	kind := "permanent"
	if isTransientHTTPStatus(statusCode) {
		kind = "transient"
	}
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return fmt.Sprintf("%s returned status %d (%s)", provider, statusCode, kind)
	}
	return fmt.Sprintf("%s returned status %d (%s): %s", provider, statusCode, kind, trimmed)
}
