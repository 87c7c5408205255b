package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.Database.DSN = "postgres://localhost/imgtasks"
	cfg.Redis.Address = "127.0.0.1:6379"
	cfg.Worker.Concurrency = 5
	cfg.Worker.Queues = map[string]int{"resize": 1}
	cfg.Queue.MaxRetry = 5
	cfg.Queue.BackoffBase = 2 * time.Second
	cfg.Queue.BackoffCap = time.Minute
	cfg.Storage.Root = "/tmp/imgtasks"
	cfg.Transform.Variants = []Variant{{Label: "thumbnail", MaxWidth: 160}}
	cfg.Events.Channel = "imgtasks:events"
	return cfg
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }},
		{"missing redis", func(c *Config) { c.Redis.Address = "" }},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"no queues", func(c *Config) { c.Worker.Queues = nil }},
		{"bad queue priority", func(c *Config) { c.Worker.Queues = map[string]int{"resize": 0} }},
		{"negative max retry", func(c *Config) { c.Queue.MaxRetry = -1 }},
		{"zero backoff base", func(c *Config) { c.Queue.BackoffBase = 0 }},
		{"cap below base", func(c *Config) { c.Queue.BackoffCap = time.Second }},
		{"missing storage root", func(c *Config) { c.Storage.Root = "" }},
		{"no variants", func(c *Config) { c.Transform.Variants = nil }},
		{"zero variant width", func(c *Config) { c.Transform.Variants[0].MaxWidth = 0 }},
		{"duplicate variant label", func(c *Config) {
			c.Transform.Variants = append(c.Transform.Variants, Variant{Label: "thumbnail", MaxWidth: 320})
		}},
		{"missing events channel", func(c *Config) { c.Events.Channel = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
