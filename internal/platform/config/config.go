// Package config builds process configuration from the environment so
// main stays lean. Every knob has a development default; production
// deployments override via env.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     Redis
	Kafka     Kafka
	Auth      Auth
	RateLimit RateLimit
	Verify    Verify
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Postgres captures database configuration. An empty URL selects the
// in-memory stores.
type Postgres struct {
	URL string
}

// Redis captures cache configuration. An empty URL disables the
// negative lookup cache and the distributed rate limiter.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures audit publishing configuration. Empty brokers fall
// back to the log publisher.
type Kafka struct {
	Brokers []string
}

// Auth captures staff authentication configuration.
type Auth struct {
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	AdminTokenHash string
}

// RateLimit captures public verification throttling.
type RateLimit struct {
	Enabled bool
	Limit   int
	Window  time.Duration
}

// Verify captures public verification surface configuration.
type Verify struct {
	BaseURL          string
	ApprovalRequired bool
	NegativeCacheTTL time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envString("LABCERT_ADDR", ":8080"),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Postgres: Postgres{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("KAFKA_BROKERS"),
		},
		Auth: Auth{
			JWTSigningKey:  envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:      envString("JWT_ISSUER", "labcert"),
			JWTAudience:    envString("JWT_AUDIENCE", "labcert-api"),
			AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),
		},
		RateLimit: RateLimit{
			Enabled: envBool("RATE_LIMIT_ENABLED", true),
			Limit:   envInt("RATE_LIMIT_REQUESTS", 30),
			Window:  envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Verify: Verify{
			BaseURL:          envString("VERIFY_BASE_URL", "/verify"),
			ApprovalRequired: envBool("APPROVAL_REQUIRED", false),
			NegativeCacheTTL: envDuration("VERIFY_NEGATIVE_CACHE_TTL", 30*time.Second),
		},
	}
}

func envString(key, fallback string) string {
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
