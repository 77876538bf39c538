package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.MaxConcurrent)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.RateLimitPerMinute != 60 {
		t.Errorf("RateLimitPerMinute = %d, want 60", cfg.RateLimitPerMinute)
	}
	if cfg.MaxChunkLength != 4000 {
		t.Errorf("MaxChunkLength = %d, want 4000", cfg.MaxChunkLength)
	}
	if cfg.SendBackoffMultiplier != 2 {
		t.Errorf("SendBackoffMultiplier = %d, want 2", cfg.SendBackoffMultiplier)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MAX_CONCURRENT", "12")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "250")
	t.Setenv("SENDGRID_API_KEY", "SG.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.MaxConcurrent != 12 {
		t.Errorf("MaxConcurrent = %d, want 12", cfg.MaxConcurrent)
	}
	if cfg.RateLimitPerMinute != 250 {
		t.Errorf("RateLimitPerMinute = %d, want 250", cfg.RateLimitPerMinute)
	}
	if cfg.SendGridAPIKey != "SG.test" {
		t.Errorf("SendGridAPIKey = %s, want SG.test", cfg.SendGridAPIKey)
	}
}

func TestLoad_CredentialsOptional(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SendGridAPIKey == "" && cfg.TelegramBotToken == "" && cfg.TwilioAccountSID == "" {
		return
	}
	// Inherited environment may carry credentials; only assert load succeeds.
}
