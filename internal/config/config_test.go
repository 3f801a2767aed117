package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 3, cfg.Delivery.MaxRetries)
	assert.Equal(t, time.Second, cfg.Delivery.RetryDelay())
	assert.Equal(t, int64(10), cfg.Consumer.BatchSize)
	assert.Equal(t, time.Second, cfg.Consumer.Block())
	assert.Equal(t, 7*24*time.Hour, cfg.Audit.Retention())
	assert.False(t, cfg.Broadcast.Enabled())
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "hotel-pms", cfg.Consumer.System)
	assert.Equal(t, cfg.Consumer.System, cfg.Consumer.Group)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
redis:
  host: redis.internal
  port: 6390
broadcast:
  host: ws.internal
  port: 3001
  path: /socket
delivery:
  max_retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("MAX_RETRIES", "7")
	t.Setenv("RETRY_DELAY_MS", "250")
	t.Setenv("ENABLE_MONITORING", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.internal:6390", cfg.Redis.Addr())
	assert.True(t, cfg.Broadcast.Enabled())
	assert.Equal(t, "ws.internal:3001", cfg.Broadcast.Addr())
	assert.Equal(t, "/socket", cfg.Broadcast.Path)
	assert.Equal(t, 7, cfg.Delivery.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Delivery.RetryDelay())
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.DeadLetter.Brokers)
	// untouched by the file
	assert.Equal(t, int64(10), cfg.Consumer.BatchSize)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-port")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_NegativeRetries(t *testing.T) {
	t.Setenv("MAX_RETRIES", "-1")
	_, err := Load("")
	assert.Error(t, err)
}

func TestSchedulerLocation(t *testing.T) {
	loc, err := SchedulerConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = SchedulerConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestConsumerGroupFor(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	c := cfg.Consumer
	assert.Equal(t, []string{"hotel-events", "hotel-batch-events"}, c.Streams)
	assert.Equal(t, "hotel-pms", c.GroupFor("hotel-events"))
	assert.Equal(t, "hotel-pms", c.GroupFor("hotel-batch-events"))
	assert.Equal(t, "hotel-pms-critical", c.GroupFor("hotel-critical-events"))

	c.CriticalGroup = ""
	assert.Equal(t, "hotel-pms", c.GroupFor("hotel-critical-events"))
}

func TestLoad_CriticalWorkerFromEnv(t *testing.T) {
	t.Setenv("CONSUMER_STREAMS", "hotel-critical-events")
	t.Setenv("CONSUMER_SYSTEM", "hotel-crm")
	t.Setenv("CONSUMER_CRITICAL_GROUP", "crm-critical")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"hotel-critical-events"}, cfg.Consumer.Streams)
	assert.Equal(t, "hotel-crm", cfg.Consumer.System)
	assert.Equal(t, "crm-critical", cfg.Consumer.GroupFor("hotel-critical-events"))
}

func TestLoad_BadTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  timezone: Mars/Olympus_Mons\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mars/Olympus_Mons")

	t.Setenv("SCHEDULER_TIMEZONE", "UTC")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
}
