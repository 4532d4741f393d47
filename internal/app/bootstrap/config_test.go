package bootstrap

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
service:
  id: identity-test
  http_port: 18080
  log_level: debug
dependencies:
  postgres_url: postgres://identity@localhost/identity
  redis_url: redis://localhost:6379/0
  kafka_brokers: [" broker-1:9092 ", "", "broker-2:9092"]
lifecycle:
  invitation_ttl_hours: 48
  invitation_base_url: https://example.org/claim
  application_rate_limit: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigReadsFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "identity-test", cfg.ServiceID)
	assert.Equal(t, 18080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.GRPCPort)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 48*time.Hour, cfg.InvitationTTL)
	assert.Equal(t, "https://example.org/claim", cfg.InvitationBaseURL)
	assert.Equal(t, 3, cfg.ApplicationRateLimit)
	assert.Equal(t, time.Hour, cfg.ApplicationRateWindow)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("DB_URL", "postgres://override@db/identity")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("APPLICATION_RATE_WINDOW_MINUTES", "15")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "postgres://override@db/identity", cfg.DatabaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 18080, cfg.HTTPPort)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 15*time.Minute, cfg.ApplicationRateWindow)
}

func TestLoadConfigRequiresStores(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("REDIS_URL", "")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")

	t.Setenv("DB_URL", "postgres://identity@localhost/identity")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "service: [unterminated"))
	assert.Error(t, err)
}
