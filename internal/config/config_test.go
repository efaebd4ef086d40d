package config_test

import (
	"buddychat/backend/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("EPHEMERAL_STORE", "memory")
	t.Setenv("DURABLE_STORE", "memory")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("COMPLETIONS_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, config.BackendMemory, cfg.EphemeralStore)
	assert.Equal(t, config.BackendMemory, cfg.DurableStore)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.False(t, cfg.Completions.Enabled())
}

func TestLoad_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("COMPLETIONS_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Completions.APIKey)
	assert.True(t, cfg.Completions.Enabled())
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("EPHEMERAL_STORE", "etcd")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_ParsesLists(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestPostgresDSN(t *testing.T) {
	p := config.PostgresConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n"}

	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=disable", p.DSN())
}
