package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// LogConfig drives logging.Init. The request log and the decision log share
// its sink, so LOG_FILE captures both.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File        string `env:"LOG_FILE"`
	MaxMB       int    `env:"LOG_MAX_MB" envDefault:"10"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	if err := env.Parse(&cfg); err != nil {
		return LogConfig{}, err
	}
	cfg.Level = strings.ToLower(strings.TrimSpace(cfg.Level))
	if _, err := zerolog.ParseLevel(cfg.Level); err != nil {
		return LogConfig{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.SampleEvery < 0 {
		return LogConfig{}, fmt.Errorf("LOG_SAMPLE_EVERY must be >= 0, got %d", cfg.SampleEvery)
	}
	if cfg.File != "" && cfg.MaxMB <= 0 {
		return LogConfig{}, fmt.Errorf("LOG_MAX_MB must be positive when LOG_FILE is set, got %d", cfg.MaxMB)
	}
	return cfg, nil
}
