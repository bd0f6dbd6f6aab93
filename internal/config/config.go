package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for the directory and attendance log collections.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	// Logger (LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT)
	LogLevel  string
	LogFormat string
	LogOutput string

	// Loopback control API
	APIAddr string

	// Reference time zone for day-boundary logic. All subsystems share
	// this one zone.
	Timezone string

	// Flat-file data directory (users.json, logs.json, locations.json,
	// lid_map.json)
	DataDir string

	// Storage selects StorageFile or StoragePostgres.
	Storage string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// WADBPath is the sqlite file holding the messaging session
	// credentials.
	WADBPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		LogOutput:  getEnv("LOG_OUTPUT", "stdout"),
		APIAddr:    getEnv("API_ADDR", "127.0.0.1:3001"),
		Timezone:   getEnv("TIMEZONE", "America/Mexico_City"),
		DataDir:    getEnv("DATA_DIR", "data"),
		Storage:    getEnv("STORAGE", StorageFile),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  os.Getenv("DB_SSLMODE"),
		WADBPath:   getEnv("WA_DB_PATH", "wa_session.db"),
	}

	if cfg.Storage != StorageFile && cfg.Storage != StoragePostgres {
		return nil, fmt.Errorf("invalid STORAGE %q (want %q or %q)", cfg.Storage, StorageFile, StoragePostgres)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
