// Package config reads pawvox settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"pawvox/internal/compose"
	"pawvox/internal/kv"
	"pawvox/internal/tts"
)

type Config struct {
	OpenAIKey  string
	NLUModel   string
	NLUBaseURL string
	TTSModel   string
	TTSVoice   string

	DashboardURL   string
	DashboardToken string
	Proxy          string

	KV kv.Config

	TTSBudget     int
	ConserveAt    int
	TTSCacheSize  int
	SpeechEnabled bool

	HTTPAddr string
	SyncURL  string
}

// Load reads envFile when it exists, then the environment. Variables already
// set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		OpenAIKey:  envStr("OPENAI_API_KEY", ""),
		NLUModel:   envStr("PAWVOX_NLU_MODEL", "gpt-4o-mini"),
		NLUBaseURL: envStr("PAWVOX_NLU_BASE_URL", ""),
		TTSModel:   envStr("PAWVOX_TTS_MODEL", ""),
		TTSVoice:   envStr("PAWVOX_TTS_VOICE", ""),

		DashboardURL:   envStr("PAWVOX_DASHBOARD_URL", ""),
		DashboardToken: envStr("PAWVOX_DASHBOARD_TOKEN", ""),
		Proxy:          envStr("PAWVOX_PROXY", ""),

		KV: kv.Config{
			Backend:    envStr("PAWVOX_KV", "memory"),
			SQLitePath: envStr("PAWVOX_SQLITE_PATH", "pawvox.db"),
			RedisURL:   envStr("PAWVOX_REDIS_URL", "redis://localhost:6379/0"),
		},

		TTSBudget:     envInt("PAWVOX_TTS_BUDGET", compose.DefaultBudget),
		ConserveAt:    envInt("PAWVOX_CONSERVE_AT", compose.DefaultThreshold),
		TTSCacheSize:  envInt("PAWVOX_TTS_CACHE", tts.DefaultCacheSize),
		SpeechEnabled: envBool("PAWVOX_SPEECH", true),

		HTTPAddr: envStr("PAWVOX_HTTP_ADDR", "127.0.0.1:8093"),
		SyncURL:  envStr("PAWVOX_SYNC_URL", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.OpenAIKey == "" {
		log.Warn("OPENAI_API_KEY not set, running on local heuristics without speech")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.KV.Backend {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("PAWVOX_KV: unknown backend %q", c.KV.Backend)
	}
	if c.TTSBudget <= 0 {
		return fmt.Errorf("PAWVOX_TTS_BUDGET must be positive, got %d", c.TTSBudget)
	}
	if c.ConserveAt <= 0 || c.ConserveAt > c.TTSBudget {
		return fmt.Errorf("PAWVOX_CONSERVE_AT must be in (0, %d], got %d", c.TTSBudget, c.ConserveAt)
	}
	if c.TTSCacheSize <= 0 {
		return fmt.Errorf("PAWVOX_TTS_CACHE must be positive, got %d", c.TTSCacheSize)
	}
	return nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("Ignoring non-numeric setting", "key", key, "value", v)
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		log.Warn("Ignoring non-boolean setting", "key", key)
		return def
	}
}
