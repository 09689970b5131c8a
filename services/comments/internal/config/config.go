package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/quotation-comments/services/comments/internal/handoff"
)

// Config holds the comments service settings that are not shared with
// other services.
type Config struct {
	DatabaseURL   string
	RedisURL      string
	CacheTTL      time.Duration
	NATSURL       string
	HandoffPhone  string
	HandoffText   string
	DialogIdleTTL time.Duration
	SweepInterval time.Duration

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	PostHogAPIKey    string
	PostHogHost      string
	PostHogFlush     time.Duration
	PostHogBatchSize int
}

// Load reads Config from environment variables. production requires
// DATABASE_URL. A malformed duration or integer is an error naming the
// variable; unset variables take their defaults.
func Load(production bool) (Config, error) {
	var env envReader
	cfg := Config{
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:      strings.TrimSpace(os.Getenv("REDIS_URL")),
		CacheTTL:      env.positiveDuration("COMMENTS_CACHE_TTL", 60*time.Second),
		NATSURL:       strings.TrimSpace(os.Getenv("NATS_URL")),
		HandoffPhone:  strings.TrimSpace(os.Getenv("HANDOFF_PHONE")),
		HandoffText:   strings.TrimSpace(os.Getenv("HANDOFF_MESSAGE")),
		DialogIdleTTL: env.positiveDuration("DIALOG_IDLE_TTL", 30*time.Minute),
		SweepInterval: env.positiveDuration("DIALOG_SWEEP_INTERVAL", time.Minute),

		BreakerFailures: uint32(env.positiveInt("STORE_CB_FAILURE_THRESHOLD", 5)),
		BreakerTimeout:  env.positiveDuration("STORE_CB_TIMEOUT", 30*time.Second),

		PostHogAPIKey:    strings.TrimSpace(os.Getenv("POSTHOG_API_KEY")),
		PostHogHost:      strings.TrimSpace(os.Getenv("POSTHOG_HOST")),
		PostHogFlush:     env.positiveDuration("POSTHOG_FLUSH_INTERVAL", 5*time.Second),
		PostHogBatchSize: env.positiveInt("POSTHOG_BATCH_SIZE", 100),
	}
	if cfg.PostHogHost == "" {
		cfg.PostHogHost = "https://app.posthog.com"
	}
	if cfg.HandoffText == "" {
		cfg.HandoffText = handoff.DefaultMessage
	}
	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if production && cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required in production")
	}
	return cfg, nil
}

// envReader parses typed variables and collects every malformed one.
type envReader struct {
	errs []error
}

func (e *envReader) positiveDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid positive duration %q", key, v))
		return fallback
	}
	return d
}

func (e *envReader) positiveInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid positive integer %q", key, v))
		return fallback
	}
	return n
}
