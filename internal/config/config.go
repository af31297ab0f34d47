package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	TextModel       string
	VisionModel     string
	APIToken        string
	SlackBotToken   string
	SlackChannel    string

	// Policy: whether kind-change corrections away from UNKNOWN may be
	// promoted into the few-shot pool.
	PromoteUnknownKindChange bool
}

func Load() Config {
	return Config{
		Port:                     envInt("LEDGERD_PORT", 8760),
		NatsURL:                  envStr("NATS_URL", "nats://nats:4222"),
		NatsToken:                envStr("NATS_TOKEN", ""),
		DatabaseURL:              envStr("DATABASE_URL", ""),
		LogLevel:                 envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey:          envStr("ANTHROPIC_API_KEY", ""),
		TextModel:                envStr("LEDGERD_TEXT_MODEL", "claude-sonnet-4-20250514"),
		VisionModel:              envStr("LEDGERD_VISION_MODEL", "claude-sonnet-4-20250514"),
		APIToken:                 envStr("LEDGERD_API_TOKEN", ""),
		SlackBotToken:            envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:             envStr("SLACK_REVIEW_CHANNEL", ""),
		PromoteUnknownKindChange: envBool("LEDGERD_PROMOTE_UNKNOWN_KIND_CHANGE", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
