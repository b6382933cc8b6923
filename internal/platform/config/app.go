package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	AuthModeJWT = "jwt"
	AuthModeDev = "dev"

	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// LogConfig configures the zap logger and its optional rolling file sink.
type LogConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type AppConfig struct {
	Port string

	AuthMode   string
	DevSubject string

	StorageBackend string
	DatabaseURL    string
	SQLitePath     string

	// RedisAddr empty disables the daily code cache and the distributed scan lock.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Timezone      *time.Location
	AdminSubjects []string

	ScanRateLimitPerMinute int
	ScanLockTTL            time.Duration

	IdempotencyRetentionHours int
	PruneIntervalHours        int

	CORSAllowedOrigins []string

	Log LogConfig
}

func LoadAppConfigFromEnv() (AppConfig, error) {
	cfg := AppConfig{
		Port:           getenv("PORT", "8080"),
		AuthMode:       getenv("AUTH_MODE", AuthModeJWT),
		DevSubject:     os.Getenv("DEV_SUBJECT"),
		StorageBackend: getenv("STORAGE_BACKEND", StorageMemory),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getenv("SQLITE_PATH", "./data/gym.db"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		AdminSubjects:  csvEnv("ADMIN_SUBJECTS"),

		CORSAllowedOrigins: csvEnv("CORS_ALLOWED_ORIGINS"),
		Log: LogConfig{
			Level: strings.ToLower(getenv("LOG_LEVEL", "info")),
			Path:  os.Getenv("LOG_PATH"),
		},
	}

	switch cfg.AuthMode {
	case AuthModeJWT, AuthModeDev:
	default:
		return AppConfig{}, fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeJWT, AuthModeDev, cfg.AuthMode)
	}
	switch cfg.StorageBackend {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return AppConfig{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return AppConfig{}, fmt.Errorf("STORAGE_BACKEND must be memory, sqlite or postgres, got %q", cfg.StorageBackend)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return AppConfig{}, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", cfg.Log.Level)
	}

	tz := getenv("GYM_TIMEZONE", "Europe/Paris")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return AppConfig{}, fmt.Errorf("GYM_TIMEZONE %q: %w", tz, err)
	}
	cfg.Timezone = loc

	ints := []struct {
		key string
		dst *int
		def int
	}{
		{"REDIS_DB", &cfg.RedisDB, 0},
		{"SCAN_RATE_LIMIT_PER_MINUTE", &cfg.ScanRateLimitPerMinute, 30},
		{"IDEMPOTENCY_RETENTION_HOURS", &cfg.IdempotencyRetentionHours, 48},
		{"PRUNE_INTERVAL_HOURS", &cfg.PruneIntervalHours, 6},
		{"LOG_MAX_SIZE_MB", &cfg.Log.MaxSizeMB, 100},
		{"LOG_MAX_BACKUPS", &cfg.Log.MaxBackups, 3},
		{"LOG_MAX_AGE_DAYS", &cfg.Log.MaxAgeDays, 7},
	}
	for _, it := range ints {
		if *it.dst, err = intEnv(it.key, it.def); err != nil {
			return AppConfig{}, err
		}
	}
	if cfg.ScanLockTTL, err = durationEnv("SCAN_LOCK_TTL", 5*time.Second); err != nil {
		return AppConfig{}, err
	}
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return AppConfig{}, fmt.Errorf("LOG_COMPRESS must be a boolean: %w", err)
		}
		cfg.Log.Compress = b
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func intEnv(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", k, v)
	}
	return n, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s): %w", k, err)
	}
	return d, nil
}

func csvEnv(k string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(k), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
