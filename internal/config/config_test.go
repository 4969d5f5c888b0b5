package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.Equal(t, TransportRedis, cfg.Relay.Transport)
	require.Equal(t, 10, cfg.Query.BatchSize)
	require.Equal(t, 20, cfg.Query.DefaultPageSize)
	require.Equal(t, 3, cfg.Bidding.MaxAttempts)
	require.Equal(t, 30*time.Second, cfg.Leader.TTL)
	require.False(t, cfg.Lifecycle.CascadeDeleteBids)
	require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	require.Equal(t, 3, cfg.Lifecycle.MaxAttempts)
	require.Equal(t, 20*time.Millisecond, cfg.Lifecycle.RetryBackoff)
}

func TestDefaultInstanceIDIsUniquePerProcess(t *testing.T) {
	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)

	require.NotEmpty(t, first.Instance.ID)
	require.NotEqual(t, first.Instance.ID, second.Instance.ID)

	t.Setenv("INSTANCE_ID", "api-0")
	pinned, err := Load()
	require.NoError(t, err)
	require.Equal(t, "api-0", pinned.Instance.ID)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RELAY_TRANSPORT", "nats")
	t.Setenv("CASCADE_DELETE_BIDS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, TransportNATS, cfg.Relay.Transport)
	require.True(t, cfg.Lifecycle.CascadeDeleteBids)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 7000
query:
  batch_size: 5
lifecycle:
  sweep_schedule: "@every 1m"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 5, cfg.Query.BatchSize)
	require.Equal(t, "@every 1m", cfg.Lifecycle.SweepSchedule)
	// untouched keys keep their defaults
	require.Equal(t, 100, cfg.Query.MaxPageSize)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Relay:     RelayConfig{Transport: TransportRedis},
			Bidding:   BiddingConfig{MaxAttempts: 3},
			Query:     QueryConfig{BatchSize: 10, DefaultPageSize: 20, MaxPageSize: 100},
			Lifecycle: LifecycleConfig{MaxAttempts: 3},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero_batch", mutate: func(c *Config) { c.Query.BatchSize = 0 }, wantErr: true},
		{name: "max_below_default", mutate: func(c *Config) { c.Query.MaxPageSize = 5 }, wantErr: true},
		{name: "no_attempts", mutate: func(c *Config) { c.Bidding.MaxAttempts = 0 }, wantErr: true},
		{name: "no_lifecycle_attempts", mutate: func(c *Config) { c.Lifecycle.MaxAttempts = 0 }, wantErr: true},
		{name: "unknown_transport", mutate: func(c *Config) { c.Relay.Transport = "kafka" }, wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := base()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
