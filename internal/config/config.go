package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Remote authority
	APIBaseURL string
	HubBaseURL string

	// REST client
	APIRatePerSec  int
	APIBurst       int
	APITimeout     time.Duration
	CommandTimeout time.Duration

	// Hub reconnect
	ReconnectMinBackoff time.Duration
	ReconnectMaxBackoff time.Duration

	// Storage. An empty SessionDBPath keeps the session pointer in memory;
	// an empty JournalDBPath disables the raw-frame journal.
	SessionDBPath   string
	JournalDBPath   string
	JournalMaxBytes int64

	// Optional per-hub event name overrides (yaml)
	ProtocolAliasesPath string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		APIBaseURL: envStr("API_BASE_URL", "http://localhost:5139/api"),
		HubBaseURL: envStr("HUB_BASE_URL", "http://localhost:5139"),

		APIRatePerSec:  envInt("API_RATE_PER_SEC", 10),
		APIBurst:       envInt("API_BURST", 5),
		APITimeout:     time.Duration(envInt("API_TIMEOUT_SEC", 10)) * time.Second,
		CommandTimeout: time.Duration(envInt("COMMAND_TIMEOUT_SEC", 10)) * time.Second,

		ReconnectMinBackoff: time.Duration(envInt("RECONNECT_MIN_BACKOFF_MS", 1000)) * time.Millisecond,
		ReconnectMaxBackoff: time.Duration(envInt("RECONNECT_MAX_BACKOFF_SEC", 30)) * time.Second,

		SessionDBPath:   envStr("SESSION_DB_PATH", "data/session.db"),
		JournalDBPath:   envStr("JOURNAL_DB_PATH", ""),
		JournalMaxBytes: int64(envInt("JOURNAL_MAX_MB", 64)) << 20,

		ProtocolAliasesPath: envStr("PROTOCOL_ALIASES_PATH", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
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
