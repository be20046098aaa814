package config

import (
	"os"
	"time"
)

type Config struct {
	Port        string
	Environment string

	BackendURL   string
	BackendWSURL string
	BackendToken string

	PublicURL        string
	PushWebhookToken string

	JWTSecret string

	DatabaseURL string

	RedisURL string

	MachineRefreshInterval time.Duration

	CORSOrigins string

	ResendAPIKey string
	FromEmail    string
	AlertsEmail  string
	SiteName     string
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		BackendURL:   getEnv("BACKEND_URL", "http://localhost:8080"),
		BackendWSURL: getEnv("BACKEND_WS_URL", "ws://localhost:8080/ws"),
		BackendToken: getEnv("BACKEND_TOKEN", ""),

		PublicURL:        getEnv("PUBLIC_URL", ""),
		PushWebhookToken: getEnv("PUSH_WEBHOOK_TOKEN", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		MachineRefreshInterval: getDurationEnv("MACHINE_REFRESH_INTERVAL", 15*time.Second),

		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "alerts@machinehub.local"),
		AlertsEmail:  getEnv("ALERTS_EMAIL", ""),
		SiteName:     getEnv("SITE_NAME", "MachineHub"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
