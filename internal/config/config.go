// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	EphemeralStore string // presence, match notices, sessions
	DurableStore   string // friend requests, saved chats
	SessionTTL     time.Duration
	AllowedOrigins []string
	Language       string

	Redis       RedisConfig
	Postgres    PostgresConfig
	Auth        AuthConfig
	Completions CompletionsConfig
	Telegram    TelegramConfig
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN renders the connection string understood by gorm's postgres driver.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		p.Host, p.User, p.Password, p.Name, p.Port)
}

// AuthConfig configures anonymous id tokens.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// CompletionsConfig configures the automated partner.
type CompletionsConfig struct {
	URL          string
	APIKey       string
	Model        string
	Timeout      time.Duration
	SystemPrompt string
}

// Enabled reports whether an automated partner can be reached.
func (c CompletionsConfig) Enabled() bool {
	return c.APIKey != "" && c.URL != ""
}

// TelegramConfig configures the optional Telegram adapter.
type TelegramConfig struct {
	Token     string
	PollEvery time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	apiKey := getEnv("COMPLETIONS_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("OPENAI_API_KEY", "")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		EphemeralStore: strings.ToLower(getEnv("EPHEMERAL_STORE", BackendMemory)),
		DurableStore:   strings.ToLower(getEnv("DURABLE_STORE", BackendMemory)),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Language:       getEnv("DEFAULT_LANGUAGE", "en"),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6380"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "buddychatdb"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "buddychat-dev-secret"),
			TokenTTL:  getEnvDuration("ANON_TOKEN_TTL", 72*time.Hour),
		},
		Completions: CompletionsConfig{
			URL:          getEnv("COMPLETIONS_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey:       apiKey,
			Model:        getEnv("COMPLETIONS_MODEL", DefaultModel),
			Timeout:      getEnvDuration("COMPLETIONS_TIMEOUT", 15*time.Second),
			SystemPrompt: getEnv("BUDDY_SYSTEM_PROMPT", DefaultSystemPrompt),
		},
		Telegram: TelegramConfig{
			Token:     getEnv("TELEGRAM_BOT_TOKEN", ""),
			PollEvery: getEnvDuration("TELEGRAM_POLL_INTERVAL", DefaultPollEvery),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.EphemeralStore {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("EPHEMERAL_STORE must be %q or %q, got %q", BackendMemory, BackendRedis, c.EphemeralStore)
	}
	switch c.DurableStore {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("DURABLE_STORE must be %q or %q, got %q", BackendMemory, BackendPostgres, c.DurableStore)
	}
	if c.EphemeralStore == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR cannot be empty")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.Completions.Timeout <= 0 {
		return fmt.Errorf("COMPLETIONS_TIMEOUT must be > 0")
	}
	if c.Telegram.PollEvery <= 0 {
		return fmt.Errorf("TELEGRAM_POLL_INTERVAL must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
