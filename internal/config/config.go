package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

// Config carries process configuration. Provider credentials are optional:
// an adapter with missing credentials reports itself unavailable and is
// skipped during candidate selection instead of failing startup.
type Config struct {
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	EmailFrom      string `env:"EMAIL_FROM"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`

	TwilioAccountSID     string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken      string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber     string `env:"TWILIO_FROM_NUMBER"`
	TwilioWhatsAppNumber string `env:"TWILIO_WHATSAPP_NUMBER"`

	// RedisURL switches the per-channel rate limiter to the shared Redis
	// backend when set; empty keeps the in-process limiter.
	RedisURL string `env:"REDIS_URL"`

	MaxConcurrent      int `env:"MAX_CONCURRENT,default=5"`
	MaxAttempts        int `env:"MAX_ATTEMPTS,default=3"`
	RetryDelayMillis   int `env:"RETRY_DELAY_MS,default=5000"`
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE,default=60"`

	MaxChunkLength        int `env:"MAX_CHUNK_LENGTH,default=4000"`
	SendMaxRetries        int `env:"SEND_MAX_RETRIES,default=3"`
	SendBaseDelayMillis   int `env:"SEND_BASE_DELAY_MS,default=500"`
	SendBackoffMultiplier int `env:"SEND_BACKOFF_MULTIPLIER,default=2"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
