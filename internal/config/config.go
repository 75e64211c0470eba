package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDatabaseURL = "sqlite:///golf_database.db"
	DefaultAddr        = ":5000"
	DefaultDataDir     = "./data"
	DefaultTokenTTL    = 24 * time.Hour
)

// Config holds process-wide settings read from the environment.
type Config struct {
	DatabaseURL    string
	SecretKey      string
	Addr           string
	DataDir        string
	KaggleUsername string
	KaggleKey      string
	LogLevel       string
	LogFormat      string
	TokenTTL       time.Duration

	// DatabaseURLDefaulted is set when DATABASE_URL was absent and the
	// local SQLite file is used instead.
	DatabaseURLDefaulted bool
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables that are already set, then builds a Config.
// An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SecretKey:      os.Getenv("SECRET_KEY"),
		Addr:           getenv("GOLF_ADDR", DefaultAddr),
		DataDir:        getenv("GOLF_DATA_DIR", DefaultDataDir),
		KaggleUsername: os.Getenv("KAGGLE_USERNAME"),
		KaggleKey:      os.Getenv("KAGGLE_KEY"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "text"),
		TokenTTL:       DefaultTokenTTL,
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultDatabaseURL
		cfg.DatabaseURLDefaulted = true
	}
	if v := os.Getenv("GOLF_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing GOLF_TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
