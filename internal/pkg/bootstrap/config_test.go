package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order-service.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "mysql:\n  dsn: \"test-dsn\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "order-service", cfg.Service.Name)
	assert.Equal(t, 8083, cfg.Service.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Order.ReserveOnCreate)
	assert.Equal(t, 10*time.Second, cfg.Order.ProcessingTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Order.IdempotencyTTL)
	assert.Equal(t, "user-service", cfg.Services.UserServiceName)
	assert.Equal(t, "test-dsn", cfg.MySQL.DSN)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
service:
  name: orders
  port: 9000
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
  topic: order-events
order:
  reserve_on_create: false
  acceptance_rules:
    - "quantity <= 500"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "orders", cfg.Service.Name)
	assert.Equal(t, 9000, cfg.Service.Port)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Order.ReserveOnCreate)
	assert.Equal(t, []string{"quantity <= 500"}, cfg.Order.AcceptanceRules)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "mysql:\n  dsn: \"file-dsn\"\nservice:\n  port: 9000\n")
	t.Setenv("MYSQL_DSN", "env-dsn")
	t.Setenv("SERVICE_PORT", "9100")
	t.Setenv("USER_SERVICE_URL", "http://users:8081")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-dsn", cfg.MySQL.DSN)
	assert.Equal(t, 9100, cfg.Service.Port)
	assert.Equal(t, "http://users:8081", cfg.Services.UserBaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadYaml(t *testing.T) {
	path := writeConfig(t, "service: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}
