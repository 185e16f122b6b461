// Package config loads application configuration from environment
// variables into an explicitly constructed object; nothing else in the
// service reads the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Token TTLs are kept
// as duration expressions ("15m", "7d") and parsed by the credential
// utility, so a malformed value fails loudly at startup rather than on
// the first login.
type Config struct {
	Env             string // "dev", "test" or "prod"
	Port            string // HTTP port to listen on
	DBHost          string
	DBPort          string
	DBUser          string
	DBPass          string // optional
	DBName          string
	DBSSLMode       string // Postgres sslmode, default "require"
	JWTSecret       string
	AccessTokenTTL  string // duration expression, e.g. "15m"
	RefreshTokenTTL string // duration expression, e.g. "7d"
	BcryptCost      int
	RabbitURL       string // optional; empty disables audit events
}

// Production reports whether the service runs in production mode;
// internal error details are suppressed from responses when it does.
func (c Config) Production() bool { return c.Env == "prod" }

// Load reads configuration from the environment. Missing required
// variables are fatal.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBName:          must("DB_NAME"),
		DBSSLMode:       envStr("DB_SSLMODE", "require"),
		JWTSecret:       must("JWT_SECRET"),
		AccessTokenTTL:  envStr("ACCESS_TOKEN_TTL", "15m"),
		RefreshTokenTTL: envStr("REFRESH_TOKEN_TTL", "7d"),
		BcryptCost:      envInt("BCRYPT_COST", 12),
		RabbitURL:       os.Getenv("RABBITMQ_URL"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return def
}
