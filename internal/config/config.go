package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/richardliu001/hotel-sync/internal/broker"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	DeadLetter DeadLetterConfig `yaml:"deadletter"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Audit      AuditConfig      `yaml:"audit"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// StreamMaxLen caps every stream with approximate MAXLEN trimming; 0 disables trimming.
	StreamMaxLen int64 `yaml:"stream_max_len"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// BroadcastConfig points at the low-latency fan-out server. An empty Host disables broadcast.
type BroadcastConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
}

// Enabled reports whether broadcast is configured.
func (b BroadcastConfig) Enabled() bool { return b.Host != "" }

// Addr returns host:port.
func (b BroadcastConfig) Addr() string { return fmt.Sprintf("%s:%d", b.Host, b.Port) }

type DeliveryConfig struct {
	MaxRetries   int `yaml:"max_retries"`
	RetryDelayMs int `yaml:"retry_delay_ms"`
}

// RetryDelay as a duration.
func (d DeliveryConfig) RetryDelay() time.Duration {
	return time.Duration(d.RetryDelayMs) * time.Millisecond
}

type ConsumerConfig struct {
	// System is the target system this worker handles; events not addressed to it are skipped.
	System string `yaml:"system"`
	Group  string `yaml:"group"`
	// CriticalGroup reads the critical stream so it does not share a cursor with Group.
	CriticalGroup string   `yaml:"critical_group"`
	ConsumerID    string   `yaml:"consumer_id"`
	Streams       []string `yaml:"streams"`
	BatchSize     int64    `yaml:"batch_size"`
	BlockMs       int      `yaml:"block_ms"`
}

// GroupFor returns the consumer group that reads stream.
func (c ConsumerConfig) GroupFor(stream string) string {
	if stream == broker.StreamCritical && c.CriticalGroup != "" {
		return c.CriticalGroup
	}
	return c.Group
}

// Block as a duration.
func (c ConsumerConfig) Block() time.Duration { return time.Duration(c.BlockMs) * time.Millisecond }

type MonitoringConfig struct {
	Enabled           bool `yaml:"enabled"`
	MetricsIntervalMs int  `yaml:"metrics_interval_ms"`
}

// Interval as a duration.
func (m MonitoringConfig) Interval() time.Duration {
	return time.Duration(m.MetricsIntervalMs) * time.Millisecond
}

type DeadLetterConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type SchedulerConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone, falling back to time.Local when empty.
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

type AuditConfig struct {
	RetentionHours int `yaml:"retention_hours"`
}

// Retention as a duration.
func (a AuditConfig) Retention() time.Duration { return time.Duration(a.RetentionHours) * time.Hour }

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a config with every default applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		Delivery: DeliveryConfig{
			MaxRetries:   3,
			RetryDelayMs: 1000,
		},
		Consumer: ConsumerConfig{
			System:        "hotel-pms",
			Group:         "hotel-pms",
			CriticalGroup: "hotel-pms-critical",
			Streams:       []string{broker.StreamEvents, broker.StreamBatch},
			BatchSize:     10,
			BlockMs:       1000,
		},
		Monitoring: MonitoringConfig{MetricsIntervalMs: 30000},
		DeadLetter: DeadLetterConfig{Topic: "hotel-dead-letter"},
		Audit:      AuditConfig{RetentionHours: 168},
		RateLimit:  RateLimitConfig{RPS: 50, Burst: 100},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads yaml file over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Delivery.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0, got %d", cfg.Delivery.MaxRetries)
	}
	if _, err := cfg.Scheduler.Location(); err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Broadcast.Host, "BROADCAST_HOST")
	setString(&cfg.Broadcast.Path, "BROADCAST_PATH")
	setString(&cfg.Consumer.System, "CONSUMER_SYSTEM")
	setString(&cfg.Consumer.Group, "CONSUMER_GROUP")
	setString(&cfg.Consumer.CriticalGroup, "CONSUMER_CRITICAL_GROUP")
	setString(&cfg.Scheduler.Timezone, "SCHEDULER_TIMEZONE")
	if v := os.Getenv("CONSUMER_STREAMS"); v != "" {
		cfg.Consumer.Streams = strings.Split(v, ",")
	}
	setString(&cfg.Consumer.ConsumerID, "CONSUMER_ID")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.DeadLetter.Brokers = strings.Split(v, ",")
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Redis.Port, "REDIS_PORT"},
		{&cfg.Redis.DB, "REDIS_DB"},
		{&cfg.Broadcast.Port, "BROADCAST_PORT"},
		{&cfg.Delivery.MaxRetries, "MAX_RETRIES"},
		{&cfg.Delivery.RetryDelayMs, "RETRY_DELAY_MS"},
		{&cfg.Monitoring.MetricsIntervalMs, "METRICS_INTERVAL"},
	}
	for _, it := range ints {
		if err := setInt(it.dst, it.key); err != nil {
			return err
		}
	}
	if v := os.Getenv("ENABLE_MONITORING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENABLE_MONITORING: %w", err)
		}
		cfg.Monitoring.Enabled = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
