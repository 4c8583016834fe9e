// README: Config loader with env (and optional .env) defaults for HTTP, backend, sessions and logging.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type BackendConfig struct {
	BaseURL         string
	GenerateTimeout time.Duration
	PDFTimeout      time.Duration
	AskTimeout      time.Duration
}

type SessionConfig struct {
	Backend string
	TTL     time.Duration
	// KeepItineraryOnPDFFailure decouples itinerary display from PDF rendering.
	KeepItineraryOnPDFFailure bool
	CookieSecure              bool
}

type Config struct {
	HTTP struct {
		Addr string
	}
	Backend BackendConfig
	Session SessionConfig
	Redis   struct {
		Addr string
	}
	Log struct {
		Level       string
		Development bool
	}
}

// Load reads configuration from the environment. Values in a .env file in the
// working directory are applied first but never override real env vars.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	cfg.HTTP.Addr = envOrDefault("TRIP_HTTP_ADDR", ":8080")
	cfg.Backend.BaseURL = envOrDefault("TRIP_BACKEND_URL", "https://api-620400361669.us-central1.run.app")
	cfg.Backend.GenerateTimeout = envOrDefaultSeconds("TRIP_GENERATE_TIMEOUT_SEC", 180)
	cfg.Backend.PDFTimeout = envOrDefaultSeconds("TRIP_PDF_TIMEOUT_SEC", 60)
	cfg.Backend.AskTimeout = envOrDefaultSeconds("TRIP_ASK_TIMEOUT_SEC", 60)
	cfg.Session.Backend = envOrDefault("TRIP_SESSION_BACKEND", SessionBackendMemory)
	cfg.Session.TTL = time.Duration(envOrDefaultInt("TRIP_SESSION_TTL_MIN", 24*60)) * time.Minute
	cfg.Session.KeepItineraryOnPDFFailure = envOrDefaultBool("TRIP_KEEP_ITINERARY_ON_PDF_FAILURE", false)
	cfg.Session.CookieSecure = envOrDefaultBool("TRIP_COOKIE_SECURE", false)
	cfg.Redis.Addr = envOrDefault("TRIP_REDIS_ADDR", "localhost:6379")
	cfg.Log.Level = envOrDefault("TRIP_LOG_LEVEL", "info")
	cfg.Log.Development = envOrDefaultBool("TRIP_DEV", false)

	switch cfg.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return Config{}, fmt.Errorf("TRIP_SESSION_BACKEND: unknown session backend %q", cfg.Session.Backend)
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultSeconds(key string, def int) time.Duration {
	n := envOrDefaultInt(key, def)
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
