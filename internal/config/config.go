package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	Storage StorageConfig `yaml:"storage"`
	Pusher  PusherConfig  `yaml:"pusher"`
	Game    GameConfig    `yaml:"game"`
	Workers int           `yaml:"workers" env:"WORKERS" env-default:"4"`
}

type StorageConfig struct {
	DSN string `yaml:"dsn" env:"STORAGE_DSN" env-default:""`
}

type PusherConfig struct {
	AppID   string `yaml:"app_id" env:"PUSHER_APP_ID"`
	Key     string `yaml:"key" env:"PUSHER_KEY"`
	Secret  string `yaml:"secret" env:"PUSHER_SECRET"`
	Cluster string `yaml:"cluster" env:"PUSHER_CLUSTER" env-default:"eu"`
}

// GameConfig holds the global defaults applied when a room is created.
// A room copies these values at creation time and its own stored values
// take precedence on every later operation.
type GameConfig struct {
	CommissionPercent        float64 `yaml:"commission_percent" env:"COMMISSION_PERCENT" env-default:"5"`
	MinBet                   float64 `yaml:"min_bet" env:"MIN_BET" env-default:"1"`
	MaxBet                   float64 `yaml:"max_bet" env:"MAX_BET" env-default:"10000"`
	RoundDurationMs          int64   `yaml:"round_duration_ms" env:"ROUND_DURATION_MS" env-default:"10000"`
	RoundDelayMs             int64   `yaml:"round_delay_ms" env:"ROUND_DELAY_MS" env-default:"5000"`
	MaxPrivateRoomsPerPlayer int     `yaml:"max_private_rooms_per_player" env:"MAX_PRIVATE_ROOMS_PER_PLAYER" env-default:"2"`
	StartingBalance          float64 `yaml:"starting_balance" env:"STARTING_BALANCE" env-default:"1000"`
}

func (g GameConfig) RoundDuration() time.Duration {
	return time.Duration(g.RoundDurationMs) * time.Millisecond
}

func (g GameConfig) RoundDelay() time.Duration {
	return time.Duration(g.RoundDelayMs) * time.Millisecond
}

func MustLoad() *Config {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from env: %s", err)
		}

		return &cfg
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}

	return &cfg
}
