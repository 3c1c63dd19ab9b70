package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-level settings that are not owned by a single package.
type Config struct {
	Env      string
	HTTPAddr string

	// external text generation
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	AITimeout        time.Duration
	AIRatePerMinute  int

	// chat platform
	SlackBotToken      string
	SlackSigningSecret string

	// scheduled jobs
	DigestChannel    string
	DigestSchedule   string
	ReminderSchedule string
	ScheduleTZ       string

	// inbound limits
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

// FromEnv reads config from environment variables, applying defaults.
func FromEnv() Config {
	return Config{
		Env:                envOr("APP_ENV", "development"),
		HTTPAddr:           envOr("HTTP_ADDR", "0.0.0.0:3001"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     envOr("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		AnthropicBaseURL:   envOr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AITimeout:          durationOr("AI_TIMEOUT", 30*time.Second),
		AIRatePerMinute:    intOr("AI_RATE_PER_MINUTE", 50),
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		DigestChannel:      os.Getenv("DIGEST_CHANNEL"),
		DigestSchedule:     envOr("DIGEST_SCHEDULE", "0 16 * * FRI"),
		ReminderSchedule:   envOr("REMINDER_SCHEDULE", "0 9 * * MON-FRI"),
		ScheduleTZ:         envOr("SCHEDULE_TZ", "UTC"),
		RateLimitRPS:       floatOr("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     intOr("RATE_LIMIT_BURST", 40),
		CORSOrigins:        splitList(envOr("CORS_ORIGINS", "*")),
	}
}

// Production reports whether error details must be hidden from callers.
func (c Config) Production() bool { return c.Env == "production" }

// AIEnabled reports whether the remote summarizer can be used.
func (c Config) AIEnabled() bool { return c.AnthropicAPIKey != "" }

// SlackEnabled reports whether both Slack credentials are present.
func (c Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackSigningSecret != ""
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func floatOr(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
