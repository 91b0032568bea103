package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	AdminAPIKey string `env:"ADMIN_API_KEY"`

	MintURL       string `env:"MINT_URL"`
	MintAPIKey    string `env:"MINT_API_KEY"`
	MintTimeoutMs int    `env:"MINT_TIMEOUT_MS" envDefault:"3000"`

	StoreTimeoutMs int    `env:"STORE_TIMEOUT_MS" envDefault:"2000"`
	RedisAddr      string `env:"REDIS_ADDR"`

	RulesConfigPath  string `env:"RULES_CONFIG_PATH"`
	RequireSignature bool   `env:"REQUIRE_SIGNATURE" envDefault:"true"`
	MaxClockSkewMs   int64  `env:"MAX_CLOCK_SKEW_MS" envDefault:"300000"`

	CleanupIntervalSeconds    int `env:"CLEANUP_INTERVAL_SECONDS" envDefault:"60"`
	SettlementIntervalSeconds int `env:"SETTLEMENT_INTERVAL_SECONDS" envDefault:"30"`
	UsageRetentionDays        int `env:"USAGE_RETENTION_DAYS" envDefault:"7"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

func (c ServerConfig) MintTimeout() time.Duration {
	return time.Duration(c.MintTimeoutMs) * time.Millisecond
}

func (c ServerConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

func (c ServerConfig) MaxClockSkew() time.Duration {
	return time.Duration(c.MaxClockSkewMs) * time.Millisecond
}

func (c ServerConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

func (c ServerConfig) SettlementInterval() time.Duration {
	return time.Duration(c.SettlementIntervalSeconds) * time.Second
}

func (c ServerConfig) UsageRetention() time.Duration {
	return time.Duration(c.UsageRetentionDays) * 24 * time.Hour
}
