package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth: empty disables the API-key check.
	APIKey string

	// Parsing
	DefaultEncoding string
	ParseTimeout    time.Duration
	// ParserExec points at an external bc3parse binary; empty runs the
	// parser in-process.
	ParserExec string

	// Upload limits
	MaxUploadBytes int64

	// Async worker pool
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("BC3GEST_API_KEY"),

		DefaultEncoding: envOr("DEFAULT_ENCODING", "latin1"),
		ParseTimeout:    envDuration("PARSE_TIMEOUT", 300*time.Second),
		ParserExec:      os.Getenv("PARSER_EXEC"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		JobTTL:       envDuration("JOB_TTL", 1*time.Hour),
	}

	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = 300 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func envOr(key, fallback string) string {
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
