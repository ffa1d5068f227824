package config

import (
	"errors"

	env "github.com/caarlos0/env/v11"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Env         string `env:"ENVIRONMENT"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"6969"`
	ServerToken string `env:"PROCESSOR_SERVER_TOKEN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"tgbridge.sqlite"`
	Discord     struct {
		RatePerMin float64 `env:"DISCORD_RATE_PER_MIN" envDefault:"25"`
		RateBurst  int     `env:"DISCORD_RATE_BURST" envDefault:"4"`
	}
	DrainBatchLimit int `env:"DRAIN_BATCH_LIMIT" envDefault:"100"`

	log *zap.Logger
}

func NewConfig(lc fx.Lifecycle, log *zap.Logger) *Config {
	cfg := &Config{log: log}
	env.Parse(cfg)

	if err := cfg.validate(); err != nil {
		if cfg.Env == "production" {
			cfg.log.Sugar().Panic(err)
		}
		cfg.log.Sugar().Infof("%s (auth will be disabled in development env)", err)
	}
	return cfg
}

func (cfg *Config) validate() error {
	if cfg.ServerToken == "" {
		return errors.New("PROCESSOR_SERVER_TOKEN envvar must be populated")
	}
	return nil
}
