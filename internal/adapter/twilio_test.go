package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/gatherly/notify/internal/domain"
)

func TestSMSAdapterSendSuccess(t *testing.T) {
	t.Parallel()

	var gotUser, gotPass, gotFrom, gotTo, gotBodyField string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Messages.json" {
			t.Errorf("path = %s, want account messages endpoint", r.URL.Path)
		}
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotFrom = r.PostFormValue("From")
		gotTo = r.PostFormValue("To")
		gotBodyField = r.PostFormValue("Body")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer server.Close()

	a := NewSMSAdapterWithClient("AC123", "secret", "+15550001111", server.URL, resty.New())

	msg := testMessage(domain.ChannelSMS)
	msg.To = "+15559998888"
	result := a.Send(context.Background(), msg)
	if !result.Success {
		t.Fatalf("Send() failed: %s", result.Error)
	}
	if result.MessageID != "SM123" {
		t.Fatalf("MessageID = %q, want SM123", result.MessageID)
	}

	if gotUser != "AC123" || gotPass != "secret" {
		t.Fatalf("basic auth = %s:%s, want AC123:secret", gotUser, gotPass)
	}
	if gotFrom != "+15550001111" {
		t.Fatalf("From = %q, want configured number", gotFrom)
	}
	if gotTo != "+15559998888" {
		t.Fatalf("To = %q, want recipient", gotTo)
	}
	if gotBodyField != msg.Content {
		t.Fatalf("Body = %q, want message content", gotBodyField)
	}
}

func TestSMSAdapterSendProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' phone number"}`))
	}))
	defer server.Close()

	a := NewSMSAdapterWithClient("AC123", "secret", "+15550001111", server.URL, resty.New())

	result := a.Send(context.Background(), testMessage(domain.ChannelSMS))
	if result.Success {
		t.Fatal("Send() should fail")
	}
	if !strings.Contains(result.Error, "21211") {
		t.Fatalf("Error = %q, want provider error code", result.Error)
	}
	if !strings.Contains(result.Error, "permanent") {
		t.Fatalf("Error = %q, 400 should classify as permanent", result.Error)
	}
}

func TestWhatsAppAdapterPrefixesAddresses(t *testing.T) {
	t.Parallel()

	var gotFrom, gotTo string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotFrom = r.PostFormValue("From")
		gotTo = r.PostFormValue("To")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"WA123"}`))
	}))
	defer server.Close()

	a := NewWhatsAppAdapterWithClient("AC123", "secret", "+15550001111", server.URL, resty.New())

	msg := testMessage(domain.ChannelWhatsApp)
	msg.To = "+15559998888"
	result := a.Send(context.Background(), msg)
	if !result.Success {
		t.Fatalf("Send() failed: %s", result.Error)
	}

	if gotFrom != "whatsapp:+15550001111" {
		t.Fatalf("From = %q, want whatsapp-prefixed sender", gotFrom)
	}
	if gotTo != "whatsapp:+15559998888" {
		t.Fatalf("To = %q, want whatsapp-prefixed recipient", gotTo)
	}
	if result.Channel != domain.ChannelWhatsApp {
		t.Fatalf("Channel = %s, want WHATSAPP", result.Channel)
	}
}

func TestTwilioAdaptersUnavailableWithoutCredentials(t *testing.T) {
	t.Parallel()

	if NewSMSAdapter("AC123", "", "+15550001111").IsAvailable() {
		t.Fatal("sms adapter without auth token should not be available")
	}
	if NewWhatsAppAdapter("", "secret", "+15550001111").IsAvailable() {
		t.Fatal("whatsapp adapter without account sid should not be available")
	}
}
