package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Variant describes one resized output produced per task.
type Variant struct {
	Label    string `mapstructure:"label"`
	MaxWidth int    `mapstructure:"max_width"`
}

type Config struct {
	Server struct {
		Address string `mapstructure:"address"`
		Port    string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	Queue struct {
		MaxRetry    int           `mapstructure:"max_retry"`
		BackoffBase time.Duration `mapstructure:"backoff_base"`
		BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	} `mapstructure:"queue"`

	Cache struct {
		TaskTTL        time.Duration `mapstructure:"task_ttl"`
		ListTTL        time.Duration `mapstructure:"list_ttl"`
		IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
	} `mapstructure:"cache"`

	Storage struct {
		Root string `mapstructure:"root"`
	} `mapstructure:"storage"`

	Transform struct {
		Variants []Variant `mapstructure:"variants"`
	} `mapstructure:"transform"`

	Events struct {
		Channel string `mapstructure:"channel"`
	} `mapstructure:"events"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.BindEnv("database.dsn", "IMGTASKS_DATABASE_DSN")
	viper.BindEnv("redis.address", "IMGTASKS_REDIS_ADDRESS")
	viper.BindEnv("redis.password", "IMGTASKS_REDIS_PASSWORD")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults plus env vars carry a
		// development setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("redis.address", "127.0.0.1:6379")
	viper.SetDefault("worker.concurrency", 5)
	viper.SetDefault("worker.queues", map[string]int{"resize": 1})
	viper.SetDefault("queue.max_retry", 5)
	viper.SetDefault("queue.backoff_base", "2s")
	viper.SetDefault("queue.backoff_cap", "60s")
	viper.SetDefault("cache.task_ttl", "5m")
	viper.SetDefault("cache.list_ttl", "1m")
	viper.SetDefault("cache.idempotency_ttl", "24h")
	viper.SetDefault("storage.root", "./data")
	viper.SetDefault("events.channel", "imgtasks:events")
	viper.SetDefault("transform.variants", []map[string]interface{}{
		{"label": "thumbnail", "max_width": 160},
		{"label": "medium", "max_width": 800},
	})
}
