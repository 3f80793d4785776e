package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Redis  RedisConfig
	DB     DBConfig
	Auth   AuthConfig
	HTTP   HTTPConfig
	Ledger LedgerConfig
}

type DBConfig struct {
	// DSN selects the postgres store; empty runs the in-memory store.
	DSN string
}

type AuthConfig struct {
	JWTSecret string
}

type HTTPConfig struct {
	Port           string
	HealthGRPCAddr string
	RateLimit      string
}

type LedgerConfig struct {
	Timezone          string
	MaxRetries        int
	StrictReturnLines bool
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	maxRetries, err := strconv.Atoi(getEnv("LEDGER_MAX_RETRIES", "5"))
	if err != nil || maxRetries < 0 {
		maxRetries = 5
	}
	strict, _ := strconv.ParseBool(getEnv("LEDGER_STRICT_RETURN_LINES", "false"))

	return Config{
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		DB: DBConfig{
			DSN: getEnv("LEDGER_DSN", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		HTTP: HTTPConfig{
			Port:           getEnv("HTTP_PORT", "8080"),
			HealthGRPCAddr: getEnv("HEALTH_GRPC_ADDR", ":50051"),
			RateLimit:      getEnv("RATE_LIMIT", "100-M"),
		},
		Ledger: LedgerConfig{
			Timezone:          getEnv("LEDGER_TIMEZONE", "Asia/Kolkata"),
			MaxRetries:        maxRetries,
			StrictReturnLines: strict,
		},
	}
}

// Location resolves the business time zone, falling back to UTC.
func (c LedgerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		slog.Warn("unknown LEDGER_TIMEZONE, using UTC", "timezone", c.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
