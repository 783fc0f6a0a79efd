// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	// JWT signing secret for the ops API (required in production).
	JWTSecret string

	// Racing data provider.
	ProviderBaseURL string
	ProviderTimeout time.Duration
	BatchSpacing    time.Duration

	// Scheduler cadence. These, with the poll tiers and staleness threshold,
	// are the deployment contract and must be tunable without code changes.
	EvaluateEvery  time.Duration
	HeartbeatEvery time.Duration
	LockStaleAfter time.Duration
	PollFast       time.Duration
	PollMedium     time.Duration
	PollSlow       time.Duration

	// How far ahead of now races are picked up for polling.
	Lookahead time.Duration

	// Resilience tunables.
	ProviderFailureThreshold int
	StoreFailureThreshold    int
	BreakerResetTimeout      time.Duration
	MaxRetries               int
	RetryBaseDelay           time.Duration

	// Money-flow bucketing: smallest interval key still treated as a
	// plausible first observation for an entrant.
	FirstBucketMinKey int64

	// Server
	Debug bool
	Port  string
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	v := newViper()

	// Defaults
	v.SetDefault("DB_USER", "raceflow")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "raceflow")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("PORT", ":9000")
	v.SetDefault("DEBUG", false)

	v.SetDefault("PROVIDER_BASE_URL", "https://api.example-racing.test/v1/racing")
	v.SetDefault("PROVIDER_TIMEOUT", "12s")
	v.SetDefault("BATCH_SPACING", "250ms")

	v.SetDefault("EVALUATE_EVERY", "60s")
	v.SetDefault("HEARTBEAT_EVERY", "45s")
	v.SetDefault("LOCK_STALE_AFTER", "2m")
	v.SetDefault("POLL_FAST", "15s")
	v.SetDefault("POLL_MEDIUM", "30s")
	v.SetDefault("POLL_SLOW", "60s")
	v.SetDefault("LOOKAHEAD", "24h")

	v.SetDefault("PROVIDER_FAILURE_THRESHOLD", 3)
	v.SetDefault("STORE_FAILURE_THRESHOLD", 5)
	v.SetDefault("BREAKER_RESET_TIMEOUT", "30s")
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("RETRY_BASE_DELAY", "500ms")

	v.SetDefault("FIRST_BUCKET_MIN_KEY", 600)

	cfg := &Config{
		DatabaseURL: v.GetString("DATABASE_URL"),
		DBUser:      v.GetString("DB_USER"),
		DBPass:      v.GetString("DB_PASS"),
		DBHost:      v.GetString("DB_HOST"),
		DBPort:      v.GetString("DB_PORT"),
		DBName:      v.GetString("DB_NAME"),
		DBSSLMode:   v.GetString("DB_SSLMODE"),
		JWTSecret:   v.GetString("JWT_SECRET"),

		ProviderBaseURL: v.GetString("PROVIDER_BASE_URL"),
		ProviderTimeout: v.GetDuration("PROVIDER_TIMEOUT"),
		BatchSpacing:    v.GetDuration("BATCH_SPACING"),

		EvaluateEvery:  v.GetDuration("EVALUATE_EVERY"),
		HeartbeatEvery: v.GetDuration("HEARTBEAT_EVERY"),
		LockStaleAfter: v.GetDuration("LOCK_STALE_AFTER"),
		PollFast:       v.GetDuration("POLL_FAST"),
		PollMedium:     v.GetDuration("POLL_MEDIUM"),
		PollSlow:       v.GetDuration("POLL_SLOW"),
		Lookahead:      v.GetDuration("LOOKAHEAD"),

		ProviderFailureThreshold: v.GetInt("PROVIDER_FAILURE_THRESHOLD"),
		StoreFailureThreshold:    v.GetInt("STORE_FAILURE_THRESHOLD"),
		BreakerResetTimeout:      v.GetDuration("BREAKER_RESET_TIMEOUT"),
		MaxRetries:               v.GetInt("MAX_RETRIES"),
		RetryBaseDelay:           v.GetDuration("RETRY_BASE_DELAY"),

		FirstBucketMinKey: v.GetInt64("FIRST_BUCKET_MIN_KEY"),

		Debug: v.GetBool("DEBUG"),
		Port:  v.GetString("PORT"),
	}

	cfg.validate()
	return cfg
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// JWTKey returns the JWT signing key as a byte slice.
func (c *Config) JWTKey() []byte {
	return []byte(c.JWTSecret)
}

func (c *Config) validate() {
	if c.DatabaseURL == "" && c.DBPass == "" {
		log.Fatal("config: DATABASE_URL or DB_PASS must be set")
	}
	if c.JWTSecret == "" {
		log.Fatal("config: JWT_SECRET must be set")
	}
	if c.EvaluateEvery <= 0 || c.HeartbeatEvery <= 0 || c.LockStaleAfter <= 0 {
		log.Fatal("config: scheduler cadences must be positive durations")
	}
	if c.PollFast <= 0 || c.PollMedium <= 0 || c.PollSlow <= 0 {
		log.Fatal("config: poll intervals must be positive durations")
	}
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}
