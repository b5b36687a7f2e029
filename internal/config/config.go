// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds the runtime settings for the server process.
type Config struct {
	// ListenAddr is the TCP address for the line protocol.
	ListenAddr string
	// WSAddr is the HTTP address for the WebSocket bridge. Empty
	// disables it.
	WSAddr string
	// RedisAddr enables the action-history feed when set.
	RedisAddr string
	// LogLevel is a logrus level name.
	LogLevel string
}

// Load reads the environment. A missing .env file is not an error.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		ListenAddr: getenv("KITTENS_LISTEN", ":5000"),
		WSAddr:     os.Getenv("KITTENS_WS_LISTEN"),
		RedisAddr:  os.Getenv("KITTENS_REDIS_ADDR"),
		LogLevel:   getenv("KITTENS_LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
