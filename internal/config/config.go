package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort          string
	DatabaseURL       string
	JWTSecret         string
	JWTIssuer         string
	AdminPassword     string
	AdminAllowedIPs   []string
	AdminTOTPSecret   string
	WheelCacheTTL     time.Duration
	RecomputeInterval time.Duration
}

func Load() (*Config, error) {
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTIssuer:         getEnv("JWT_ISSUER", "nawi-games"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		AdminAllowedIPs:   splitCSV(os.Getenv("ADMIN_ALLOWED_IPS")),
		AdminTOTPSecret:   os.Getenv("ADMIN_TOTP_SECRET"),
		WheelCacheTTL:     getDuration("WHEEL_CACHE_TTL", 30*time.Second),
		RecomputeInterval: getDuration("LEADERBOARD_RECOMPUTE_INTERVAL", 5*time.Minute),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_PASSWORD is required")
	}
	if cfg.AdminTOTPSecret == "" {
		return nil, errors.New("ADMIN_TOTP_SECRET is required for admin login")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return time.Duration(v) * time.Second
	}
	return def
}

func resolveEnvPath() string {
	if path := os.Getenv("ENV_FILE_PATH"); path != "" {
		return path
	}
	candidates := []string{".env", "local-only/.env"}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
