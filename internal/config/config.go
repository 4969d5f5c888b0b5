package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	TransportRedis = "redis"
	TransportNATS  = "nats"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Live      ServerConfig    `mapstructure:"live"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Bidding   BiddingConfig   `mapstructure:"bidding"`
	Query     QueryConfig     `mapstructure:"query"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ArchiveEnabled  bool          `mapstructure:"archive_enabled"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// RelayConfig selects how committed changes travel between service instances.
type RelayConfig struct {
	Transport     string `mapstructure:"transport"`
	Channel       string `mapstructure:"channel"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type BiddingConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type QueryConfig struct {
	BatchSize       int `mapstructure:"batch_size"`
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

type LifecycleConfig struct {
	CascadeDeleteBids bool          `mapstructure:"cascade_delete_bids"`
	SweepSchedule     string        `mapstructure:"sweep_schedule"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("live.port", 8081)
	v.SetDefault("live.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true&multiStatements=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.archive_enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("relay.transport", TransportRedis)
	v.SetDefault("relay.channel", "auction_changes")
	v.SetDefault("relay.subject_prefix", "auction.changes")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", defaultInstanceID())
	v.SetDefault("bidding.max_attempts", 3)
	v.SetDefault("bidding.retry_backoff", 20*time.Millisecond)
	v.SetDefault("query.batch_size", 10)
	v.SetDefault("query.default_page_size", 20)
	v.SetDefault("query.max_page_size", 100)
	v.SetDefault("lifecycle.cascade_delete_bids", false)
	v.SetDefault("lifecycle.sweep_schedule", "@every 15s")
	v.SetDefault("lifecycle.max_attempts", 3)
	v.SetDefault("lifecycle.retry_backoff", 20*time.Millisecond)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")

	// Environment variable mappings
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("live.port", "LIVE_PORT")
	v.BindEnv("live.host", "LIVE_HOST")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("mysql.archive_enabled", "MYSQL_ARCHIVE_ENABLED")
	v.BindEnv("nats.url", "NATS_URL")
	v.BindEnv("relay.transport", "RELAY_TRANSPORT")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("bidding.max_attempts", "BIDDING_MAX_ATTEMPTS")
	v.BindEnv("query.batch_size", "QUERY_BATCH_SIZE")
	v.BindEnv("lifecycle.cascade_delete_bids", "CASCADE_DELETE_BIDS")
	v.BindEnv("lifecycle.sweep_schedule", "SWEEP_SCHEDULE")
	v.BindEnv("lifecycle.max_attempts", "LIFECYCLE_MAX_ATTEMPTS")
	v.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")
	v.BindEnv("log.level", "LOG_LEVEL")

	return v
}

// defaultInstanceID differs on every call; replicas must not share a leader identity.
func defaultInstanceID() string {
	suffix := uuid.NewString()[:8]
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + suffix
	}
	return "marketplace-" + suffix
}

func Load() (*Config, error) {
	v := newViper()

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-marketplace/")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Query.BatchSize <= 0 {
		return fmt.Errorf("config: query.batch_size must be positive, got %d", c.Query.BatchSize)
	}
	if c.Query.DefaultPageSize <= 0 || c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return fmt.Errorf("config: invalid page sizes default=%d max=%d", c.Query.DefaultPageSize, c.Query.MaxPageSize)
	}
	if c.Bidding.MaxAttempts < 1 {
		return fmt.Errorf("config: bidding.max_attempts must be at least 1, got %d", c.Bidding.MaxAttempts)
	}
	if c.Lifecycle.MaxAttempts < 1 {
		return fmt.Errorf("config: lifecycle.max_attempts must be at least 1, got %d", c.Lifecycle.MaxAttempts)
	}
	switch c.Relay.Transport {
	case TransportRedis, TransportNATS:
	default:
		return fmt.Errorf("config: unknown relay.transport %q", c.Relay.Transport)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Live: %s:%d, Redis: %s, Relay: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Live.Host,
		c.Live.Port,
		c.Redis.Address,
		c.Relay.Transport,
		c.Instance.ID,
	)
}
