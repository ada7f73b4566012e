// Package config builds service configuration from environment variables so
// main stays lean. Every knob has a development default; production deploys
// override via the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the batch operations service.
type Config struct {
	Server    Server
	Verifier  Verifier
	Issuance  Issuance
	Postgres  Postgres
	Redis     RedisConfig
	Kafka     Kafka
	Scheduler Scheduler
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	// AdminKeyHash is a bcrypt hash of the static admin API key. Empty
	// disables key auth and leaves JWT as the only path.
	AdminKeyHash string
}

// Verifier locates the remote credential verifier API.
type Verifier struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Issuance locates the remote bulk issuance API.
type Issuance struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Postgres holds the connection string for batch/run history. Empty disables
// the postgres stores and the service falls back to in-memory history.
type Postgres struct {
	DSN string
}

// RedisConfig configures the status cache. Empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the domain event sink. No brokers disables publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Scheduler holds the default chunking parameters for verification runs.
// Callers may override both per run.
type Scheduler struct {
	ChunkSize       int
	InterChunkDelay time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("VCBATCH_ADDR", ":8080"),
			JWTSigningKey: envOr("VCBATCH_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			AdminKeyHash:  os.Getenv("VCBATCH_ADMIN_KEY_HASH"),
		},
		Verifier: Verifier{
			BaseURL: envOr("VCBATCH_VERIFIER_URL", "http://localhost:9090"),
			APIKey:  os.Getenv("VCBATCH_VERIFIER_API_KEY"),
			Timeout: envDuration("VCBATCH_VERIFIER_TIMEOUT", 15*time.Second),
		},
		Issuance: Issuance{
			BaseURL: envOr("VCBATCH_ISSUANCE_URL", "http://localhost:9091"),
			APIKey:  os.Getenv("VCBATCH_ISSUANCE_API_KEY"),
			Timeout: envDuration("VCBATCH_ISSUANCE_TIMEOUT", 30*time.Second),
		},
		Postgres: Postgres{
			DSN: os.Getenv("VCBATCH_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("VCBATCH_REDIS_URL"),
			PoolSize:     envInt("VCBATCH_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VCBATCH_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("VCBATCH_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VCBATCH_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VCBATCH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers: envList("VCBATCH_KAFKA_BROKERS"),
			Topic:   envOr("VCBATCH_KAFKA_TOPIC", "vcbatch.events"),
		},
		Scheduler: Scheduler{
			ChunkSize:       envInt("VCBATCH_CHUNK_SIZE", 3),
			InterChunkDelay: envDuration("VCBATCH_INTER_CHUNK_DELAY", 100*time.Millisecond),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
