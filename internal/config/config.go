// Package config loads runtime configuration from the environment.
package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Addr        string        `env:"WALLETGATE_ADDR" env-default:":8080"`
	DatabaseURL string        `env:"DATABASE_URL" env-default:"walletgate.db"`
	OracleURL   string        `env:"WALLETGATE_ORACLE_URL" env-default:""`
	AssetsFile  string        `env:"WALLETGATE_ASSETS_FILE" env-default:""`
	Challenge   string        `env:"WALLETGATE_CHALLENGE" env-default:"Please sign this message to connect."`
	TokenTTL    time.Duration `env:"WALLETGATE_TOKEN_TTL" env-default:"24h"`
	RateLimits  RateLimits
}

type RateLimits struct {
	LoginPerMinute int `env:"WALLETGATE_RL_LOGIN_PER_MIN" env-default:"10"`
}

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Backend names a storage implementation selected from DATABASE_URL.
type Backend int

const (
	BackendSQLite Backend = iota
	BackendPostgres
	BackendMemory
)

// StorageBackend picks the store from the URL shape: postgres URLs go to
// pgx, the literal ":memory:" stays in process, anything else is a sqlite
// file path.
func (c Config) StorageBackend() Backend {
	switch {
	case strings.HasPrefix(c.DatabaseURL, "postgres://"),
		strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		return BackendPostgres
	case c.DatabaseURL == ":memory:" || c.DatabaseURL == "memory":
		return BackendMemory
	default:
		return BackendSQLite
	}
}
