package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/test"
telegram:
  api_id: 12345
  api_hash: "hash"
channels:
  - "https://t.me/BBCWorld"
classifier:
  sentiment_url: "http://localhost:8001"
  tag_url: "http://localhost:8002"
enrich:
  min_unix_time: 1704063600
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.Database.URL)
	assert.Equal(t, 12345, cfg.Telegram.APIID)
	assert.Equal(t, []string{"https://t.me/BBCWorld"}, cfg.Channels)
	assert.Equal(t, int64(1704063600), cfg.Enrich.MinUnixTime)

	// Defaults fill the gaps.
	assert.Equal(t, "session.json", cfg.Telegram.SessionFile)
	assert.Equal(t, int64(60), cfg.Classifier.TimeoutSeconds)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  api_id: 1
  api_hash: "from-yaml"
`)

	t.Setenv("TELEGRAM_API_ID", "999")
	t.Setenv("TELEGRAM_API_HASH", "from-env")
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 999, cfg.Telegram.APIID)
	assert.Equal(t, "from-env", cfg.Telegram.APIHash)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
