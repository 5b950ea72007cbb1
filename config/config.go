// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   int
	DBPath string

	// JWTSecret verifies bearer tokens on user surfaces.
	JWTSecret string

	// SweepSecret is the shared bearer credential for the sweep endpoint.
	SweepSecret string

	StripeSecretKey     string
	StripeWebhookSecret string

	// PayoutFlatFee is the single fee parameter shared by every trigger
	// surface, in whole yen. Zero refunds the full prorated stake.
	PayoutFlatFee int64

	// SweepInterval is the in-process scheduler cadence.
	SweepInterval time.Duration
}

// Load reads configuration from the environment. A missing .env file is
// not an error; real environments set variables directly.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                envInt("PORT", 8080),
		DBPath:              envStr("DB_PATH", "challenge.db"),
		JWTSecret:           envStr("JWT_SECRET", "dev-secret"),
		SweepSecret:         envStr("SWEEP_SECRET", ""),
		StripeSecretKey:     envStr("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: envStr("STRIPE_WEBHOOK_SECRET", ""),
		PayoutFlatFee:       envInt64("PAYOUT_FLAT_FEE", 0),
		SweepInterval:       envDuration("SWEEP_INTERVAL", time.Hour),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
