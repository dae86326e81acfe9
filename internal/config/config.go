// Package config provides configuration helpers for gatekeeper commands.
// Values come from the environment, optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/latchwork/gatekeeper/internal/log"
)

// Defaults for a single-safe deployment.
const (
	DefaultListenPort   = "8080"
	DefaultDataFile     = "gatekeeper.json"
	DefaultActuatorURL  = "http://127.0.0.1:9000/servo"
	DefaultTokenKeyFile = "gatekeeper.key"
)

// LoadDotEnv loads a .env file if one exists. Missing files are fine;
// real environment variables always win.
func LoadDotEnv() {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env file")
	}
}

// Getenv returns the value of key, or fallback if unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetenvBool returns the boolean value of key, or fallback if unset
// or unparseable.
func GetenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// ListenPort returns the HTTP listen port from GATEKEEPER_PORT.
func ListenPort() string {
	return Getenv("GATEKEEPER_PORT", DefaultListenPort)
}

// DataFile returns the JSON store path from GATEKEEPER_DATA.
func DataFile() string {
	return Getenv("GATEKEEPER_DATA", DefaultDataFile)
}

// ActuatorURL returns the lock servo endpoint from GATEKEEPER_ACTUATOR.
func ActuatorURL() string {
	return Getenv("GATEKEEPER_ACTUATOR", DefaultActuatorURL)
}

// TokenKeyFile returns the signing-key path from GATEKEEPER_KEY.
func TokenKeyFile() string {
	return Getenv("GATEKEEPER_KEY", DefaultTokenKeyFile)
}

// LogLevel returns the log level from GATEKEEPER_LOG_LEVEL.
func LogLevel() string {
	return Getenv("GATEKEEPER_LOG_LEVEL", "info")
}
