package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gatherly/notify/internal/domain"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

type telegramSendRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type telegramSendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// TelegramAdapter delivers via the Telegram bot API. The bot token is part of
// the request URL, per the provider's auth scheme.
type TelegramAdapter struct {
	client   *resty.Client
	botToken string
	baseURL  string
	now      func() time.Time
}

func NewTelegramAdapter(botToken string) *TelegramAdapter {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewTelegramAdapterWithClient(botToken, defaultTelegramBaseURL, client)
}

func NewTelegramAdapterWithClient(botToken, baseURL string, client *resty.Client) *TelegramAdapter {
	if client == nil {
		client = resty.New().SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &TelegramAdapter{
		client:   client,
		botToken: strings.TrimSpace(botToken),
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		now:      time.Now,
	}
}

func (a *TelegramAdapter) Channel() domain.Channel { return domain.ChannelTelegram }

func (a *TelegramAdapter) IsAvailable() bool {
	return a != nil && a.botToken != ""
}

func (a *TelegramAdapter) Send(ctx context.Context, msg domain.Message) domain.MessageResult {
	at := a.now().UTC()
	if !a.IsAvailable() {
		return failureResult(domain.ChannelTelegram, "telegram adapter is not configured", at)
	}

	reqBody := telegramSendRequest{
		ChatID:    msg.To,
		Text:      msg.Content,
		ParseMode: "HTML",
	}

	var parsed telegramSendResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&parsed).
		SetError(&parsed).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", a.baseURL, a.botToken))
	if err != nil {
		return failureResult(domain.ChannelTelegram, fmt.Sprintf("telegram request failed: %v", err), at)
	}

	if parsed.OK {
		return successResult(domain.ChannelTelegram, strconv.FormatInt(parsed.Result.MessageID, 10), at)
	}

	statusCode := response.StatusCode()
	description := strings.TrimSpace(parsed.Description)
	if description == "" {
		description = strings.TrimSpace(response.String())
	}
	return failureResult(domain.ChannelTelegram, providerStatusError("telegram", statusCode, description), at)
}
