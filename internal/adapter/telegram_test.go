package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/gatherly/notify/internal/domain"
)

func TestTelegramAdapterSendSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody telegramSendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":4242}}`))
	}))
	defer server.Close()

	a := NewTelegramAdapterWithClient("123:token", server.URL, resty.New())

	msg := testMessage(domain.ChannelTelegram)
	msg.To = "98765"
	result := a.Send(context.Background(), msg)
	if !result.Success {
		t.Fatalf("Send() failed: %s", result.Error)
	}
	if result.MessageID != "4242" {
		t.Fatalf("MessageID = %q, want 4242", result.MessageID)
	}

	if gotPath != "/bot123:token/sendMessage" {
		t.Fatalf("path = %q, bot token should be embedded in the URL", gotPath)
	}
	if gotBody.ChatID != "98765" {
		t.Fatalf("chat_id = %q, want 98765", gotBody.ChatID)
	}
	if gotBody.ParseMode != "HTML" {
		t.Fatalf("parse_mode = %q, want HTML", gotBody.ParseMode)
	}
}

func TestTelegramAdapterSendAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	a := NewTelegramAdapterWithClient("123:token", server.URL, resty.New())

	result := a.Send(context.Background(), testMessage(domain.ChannelTelegram))
	if result.Success {
		t.Fatal("Send() should fail when ok=false")
	}
	if !strings.Contains(result.Error, "chat not found") {
		t.Fatalf("Error = %q, want provider description", result.Error)
	}
	if result.Channel != domain.ChannelTelegram {
		t.Fatalf("Channel = %s, want TELEGRAM", result.Channel)
	}
}

func TestTelegramAdapterUnavailableWithoutToken(t *testing.T) {
	t.Parallel()

	a := NewTelegramAdapter("  ")
	if a.IsAvailable() {
		t.Fatal("adapter without bot token should not be available")
	}
}
