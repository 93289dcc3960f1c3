package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr        string
	CORSOrigins string
}

type GRPCConfig struct {
	Addr string
}

type StoreConfig struct {
	DatabaseURL    string
	RedisURL       string
	CoursesFile    string
	CourseCacheTTL time.Duration
}

type EventsConfig struct {
	NATSURL        string
	AsyncWrites    bool
	BatchSize      int
	BatchInterval  time.Duration
	IdempotencyTTL time.Duration
}

type CertificateConfig struct {
	IDScheme     string
	ShareSecret  string
	ShareBaseURL string
	ShareLinkTTL time.Duration
}

type AppConfig struct {
	ServiceName  string
	LogLevel     string
	Env          string
	JWTSecret    string
	HTTP         HTTPConfig
	GRPC         GRPCConfig
	Store        StoreConfig
	Events       EventsConfig
	Certificates CertificateConfig
}

// IsProd reports whether APP_ENV=production. Production refuses in-memory fallbacks.
func (c AppConfig) IsProd() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		ServiceName: env("SERVICE_NAME"),
		LogLevel:    env("LOG_LEVEL"),
		Env:         env("APP_ENV"),
		JWTSecret:   env("JWT_SECRET"),
		HTTP: HTTPConfig{
			Addr:        env("HTTP_ADDR"),
			CORSOrigins: env("CORS_ALLOWED_ORIGINS"),
		},
		GRPC: GRPCConfig{
			Addr: env("GRPC_ADDR"),
		},
		Store: StoreConfig{
			DatabaseURL:    env("DATABASE_URL"),
			RedisURL:       env("REDIS_URL"),
			CoursesFile:    env("COURSES_FILE"),
			CourseCacheTTL: envDuration("COURSE_CACHE_TTL", 10*time.Minute),
		},
		Events: EventsConfig{
			NATSURL:        env("NATS_URL"),
			AsyncWrites:    envBool("PROGRESS_ASYNC_WRITES", false),
			BatchSize:      envInt("WORKER_BATCH_SIZE", 100),
			BatchInterval:  time.Duration(envInt("WORKER_BATCH_INTERVAL_MS", 2000)) * time.Millisecond,
			IdempotencyTTL: envDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Certificates: CertificateConfig{
			IDScheme:     strings.ToLower(env("CERTIFICATE_ID_SCHEME")),
			ShareSecret:  env("SHARE_SECRET"),
			ShareBaseURL: env("SHARE_BASE_URL"),
			ShareLinkTTL: envDuration("SHARE_LINK_TTL", 30*24*time.Hour),
		},
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":9094"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Certificates.IDScheme == "" {
		cfg.Certificates.IDScheme = "deterministic"
	}
	if cfg.Certificates.ShareBaseURL == "" {
		cfg.Certificates.ShareBaseURL = "http://localhost:8080/v1/certificates/verify"
	}
	if cfg.IsProd() {
		if cfg.Store.DatabaseURL == "" {
			return AppConfig{}, errors.New("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "" {
			return AppConfig{}, errors.New("JWT_SECRET is required in production")
		}
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, fallback int) int {
	v := env(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := env(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(env(key))
	switch v {
	case "":
		return fallback
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
