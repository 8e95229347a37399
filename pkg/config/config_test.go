package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autophrase.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsAndYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8181
autophrase:
  params:
    phrases: configs/phrases.txt
    ignoreCase: "true"
  watch: true
redis:
  addr: localhost:6379
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "configs/phrases.txt", cfg.AutoPhrase.Params["phrases"])
	assert.Equal(t, "true", cfg.AutoPhrase.Params["ignoreCase"])
	assert.True(t, cfg.AutoPhrase.Watch)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "phrases-reload", cfg.Kafka.Topics.PhrasesReload)
}

func TestLoadMissingPhrases(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8181\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phrases")
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestLoadUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestReadSkipsServiceValidation(t *testing.T) {
	path := writeConfig(t, "sqlite:\n  busyTimeout: 2s\n")
	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.SQLite.BusyTimeout)
	assert.Empty(t, cfg.AutoPhrase.Params["phrases"])

	cfg, err = Read("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.SQLite.BusyTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AP_SERVER_PORT", "9999")
	t.Setenv("AP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AP_PARAM_PHRASES", "redis:phrases")
	t.Setenv("AP_PARAM_REPLACEWHITESPACEWITH", "Z")
	t.Setenv("AP_PARAM_UNKNOWN", "ignored")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis:phrases", cfg.AutoPhrase.Params["phrases"])
	assert.Equal(t, "Z", cfg.AutoPhrase.Params["replaceWhitespaceWith"])
	assert.NotContains(t, cfg.AutoPhrase.Params, "unknown")
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", p.DSN())
}
