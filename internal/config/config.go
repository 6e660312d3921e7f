// Package config loads the server configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full configuration surface. All values are simple scalars
// with positivity as the only validation; enumerated game settings (fee
// rates, autoplay intervals, lookback windows) are validated per request.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	// Game defaults.
	InitialCapital      int64 `envconfig:"INITIAL_CAPITAL" default:"1000000"`
	StopLossPercent     int   `envconfig:"STOP_LOSS_PERCENT" default:"10"`
	GameDurationMinutes int   `envconfig:"GAME_DURATION_MINUTES" default:"10"`
	SeriesDays          int   `envconfig:"SERIES_DAYS" default:"500"`
	CacheTTLSeconds     int   `envconfig:"CACHE_TTL_SECONDS" default:"30"`
}

// Load reads the environment into a Config. A missing .env file is not an
// error; production environments set real variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
