package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"EarnPull/pkg/util"
)

type Config struct {
	Environment string         `yaml:"environment" default:"development"`
	Server      ServerConfig   `yaml:"server"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	Log         LogConfig      `yaml:"log"`
	Earnings    EarningsConfig `yaml:"earnings"`
	Forex       ForexConfig    `yaml:"forex"`
	Fetcher     FetcherConfig  `yaml:"fetcher"`
	Cache       CacheConfig    `yaml:"cache"`
	Kafka       KafkaConfig    `yaml:"kafka"`
	Snapshot    SnapshotConfig `yaml:"snapshot"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LogConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
}

type EarningsConfig struct {
	SnapshotPath           string `yaml:"snapshot_path" default:"EarningsData.csv"`
	SourceURL              string `yaml:"source_url" default:"https://www.earningswhispers.com"`
	QueryStaleDays         int    `yaml:"query_stale_days" default:"5"`
	PostEarningsStaleDays  int    `yaml:"post_earnings_stale_days" default:"3"`
	JitterDays             int    `yaml:"jitter_days" default:"5"`
	ForceRefresh           bool   `yaml:"force_refresh"`
	RequeryUnavailableOnce bool   `yaml:"requery_unavailable_once" default:"true"`
}

type ForexConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	SourceURL       string        `yaml:"source_url" default:"https://www.dailyfx.com"`
	PathFormat      string        `yaml:"path_format"`
	RequeryInterval time.Duration `yaml:"requery_interval" default:"30m"`
	LocalZone       string        `yaml:"local_zone"`
}

type FetcherConfig struct {
	Timeout      time.Duration `yaml:"timeout" default:"30s"`
	UserAgent    string        `yaml:"user_agent" default:"Mozilla/5.0 (compatible; EarnPull/1.0)"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" default:"4194304"`
	RateCapacity float64       `yaml:"rate_capacity" default:"2"`
	RatePerSec   float64       `yaml:"rate_per_sec" default:"1"`
	PageTTL      time.Duration `yaml:"page_ttl" default:"10m"`
}

type CacheConfig struct {
	MemoryMaxSize   int           `yaml:"memory_max_size" default:"512"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"1m"`
	L1TTL           time.Duration `yaml:"l1_ttl" default:"1m"`
	Redis           RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"earnpull"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic" default:"earnings.updated"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
}

type SnapshotConfig struct {
	MonitorInterval time.Duration `yaml:"monitor_interval" default:"1m"`
	SaveInterval    time.Duration `yaml:"save_interval" default:"15m"`
}

// Load reads and parses a YAML configuration file. Defaults are applied
// first so the file only needs the keys it changes.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

func read(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("EARNPULL_SNAPSHOT_PATH"); v != "" {
		c.Earnings.SnapshotPath = v
	}
	if v := getenv("EARNPULL_FORCE_REFRESH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Earnings.ForceRefresh = b
		}
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Redis.Enabled = true
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Earnings.SnapshotPath == "" {
		return fmt.Errorf("earnings.snapshot_path is required")
	}
	if c.Earnings.SourceURL == "" {
		return fmt.Errorf("earnings.source_url is required")
	}
	if c.Earnings.QueryStaleDays < 0 || c.Earnings.PostEarningsStaleDays < 0 {
		return fmt.Errorf("earnings stale days must not be negative")
	}
	if c.Forex.Enabled && c.Forex.SourceURL == "" {
		return fmt.Errorf("forex.source_url is required when forex is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when redis is enabled")
	}
	if c.Snapshot.MonitorInterval <= 0 {
		return fmt.Errorf("snapshot.monitor_interval must be positive")
	}
	return nil
}
