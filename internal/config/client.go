package config

import "github.com/caarlos0/env/v11"

// ClientConfig drives cmd/match-client.
type ClientConfig struct {
	ServerURL     string `env:"SERVER_URL" envDefault:"http://localhost:8080"`
	PrivateKeyHex string `env:"CLIENT_PRIVATE_KEY"`
	PlayerCount   int    `env:"CLIENT_PLAYER_COUNT" envDefault:"5"`
	Matches       int    `env:"CLIENT_MATCHES" envDefault:"1"`
}

func LoadClient() (ClientConfig, error) {
	var cfg ClientConfig
	err := env.Parse(&cfg)
	return cfg, err
}
