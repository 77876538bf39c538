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

const defaultTwilioBaseURL = "https://api.twilio.com"

type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// twilioCore holds the account credentials and HTTP plumbing shared by the
// SMS and WhatsApp adapters, which differ only in sender address formatting.
type twilioCore struct {
	client     *resty.Client
	accountSID string
	authToken  string
	from       string
	baseURL    string
	now        func() time.Time
}

func newTwilioCore(accountSID, authToken, from, baseURL string, client *resty.Client) twilioCore {
	if client == nil {
		client = resty.New().SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return twilioCore{
		client:     client,
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		from:       strings.TrimSpace(from),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		now:        time.Now,
	}
}

func (c *twilioCore) available() bool {
	return c.accountSID != "" && c.authToken != "" && c.from != ""
}

func (c *twilioCore) send(ctx context.Context, channel domain.Channel, from, to, body string) domain.MessageResult {
	at := c.now().UTC()

	var parsed twilioMessageResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.accountSID, c.authToken).
		SetFormData(map[string]string{
			"From": from,
			"To":   to,
			"Body": body,
		}).
		SetResult(&parsed).
		SetError(&parsed).
		Post(fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID))
	if err != nil {
		return failureResult(channel, fmt.Sprintf("twilio request failed: %v", err), at)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return successResult(channel, strings.TrimSpace(parsed.SID), at)
	}

	detail := strings.TrimSpace(parsed.Message)
	if detail == "" {
		detail = strings.TrimSpace(response.String())
	}
	if parsed.Code != 0 {
		detail = fmt.Sprintf("code %d: %s", parsed.Code, detail)
	}
	return failureResult(channel, providerStatusError("twilio", statusCode, detail), at)
}

// SMSAdapter delivers via the Twilio programmable messaging API.
type SMSAdapter struct {
	core twilioCore
}

func NewSMSAdapter(accountSID, authToken, fromNumber string) *SMSAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)

	return NewSMSAdapterWithClient(accountSID, authToken, fromNumber, defaultTwilioBaseURL, client)
}

func NewSMSAdapterWithClient(accountSID, authToken, fromNumber, baseURL string, client *resty.Client) *SMSAdapter {
	return &SMSAdapter{core: newTwilioCore(accountSID, authToken, fromNumber, baseURL, client)}
}

func (a *SMSAdapter) Channel() domain.Channel { return domain.ChannelSMS }

func (a *SMSAdapter) IsAvailable() bool {
	return a != nil && a.core.available()
}

func (a *SMSAdapter) Send(ctx context.Context, msg domain.Message) domain.MessageResult {
	if !a.IsAvailable() {
		return failureResult(domain.ChannelSMS, "sms adapter is not configured", a.core.now().UTC())
	}
	return a.core.send(ctx, domain.ChannelSMS, a.core.from, msg.To, msg.Content)
}

// WhatsAppAdapter delivers via Twilio's WhatsApp messaging endpoint. Sender
// and recipient carry the provider's "whatsapp:" address prefix.
type WhatsAppAdapter struct {
	core twilioCore
}

func NewWhatsAppAdapter(accountSID, authToken, fromNumber string) *WhatsAppAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)

	return NewWhatsAppAdapterWithClient(accountSID, authToken, fromNumber, defaultTwilioBaseURL, client)
}

func NewWhatsAppAdapterWithClient(accountSID, authToken, fromNumber, baseURL string, client *resty.Client) *WhatsAppAdapter {
	return &WhatsAppAdapter{core: newTwilioCore(accountSID, authToken, fromNumber, baseURL, client)}
}

func (a *WhatsAppAdapter) Channel() domain.Channel { return domain.ChannelWhatsApp }

func (a *WhatsAppAdapter) IsAvailable() bool {
	return a != nil && a.core.available()
}

func (a *WhatsAppAdapter) Send(ctx context.Context, msg domain.Message) domain.MessageResult {
	if !a.IsAvailable() {
		return failureResult(domain.ChannelWhatsApp, "whatsapp adapter is not configured", a.core.now().UTC())
	}
	return a.core.send(ctx, domain.ChannelWhatsApp, whatsAppAddress(a.core.from), whatsAppAddress(msg.To), msg.Content)
}

func whatsAppAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
