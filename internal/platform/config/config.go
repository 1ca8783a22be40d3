package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv keeps main lean; every
// field has a development default so the service boots with no environment.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	JWTSigningKey string

	// TransferTTL and ClaimTTL are the pending-record deadlines. They are
	// configurable for tests only; production keeps the 7/14 day defaults.
	TransferTTL time.Duration
	ClaimTTL    time.Duration

	// SweepInterval controls how often the expiry reaper runs.
	SweepInterval time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("REGBOOK_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TransferTTL:   durationOr("TRANSFER_TTL", 7*24*time.Hour),
		ClaimTTL:      durationOr("CLAIM_TTL", 14*24*time.Hour),
		SweepInterval: durationOr("SWEEP_INTERVAL", 15*time.Minute),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
