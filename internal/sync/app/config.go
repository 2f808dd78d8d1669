package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseFile string // Optional: path to SQLite database file (default: ./hourflow.db)

	RemoteBackend string // Optional: remote document store variant (docbin, userdb, none) (default: none)
	DocbinBaseURL string // Required for docbin: base URL of the bin service
	DocbinKey     string // Required for docbin: master key for bin access
	UserdbURL     string // Required for userdb: websocket URL of the document database

	UserID         string // Optional: fixed user id (takes precedence over the token)
	IdentityToken  string // Optional: JWT carrying the user id in its subject
	IdentitySecret string // Optional: HMAC secret to verify the identity token

	LicenseURL string // Optional: licensing backend base URL

	SyncInterval        time.Duration // Background reconcile interval (default: 5m)
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		DatabaseFile: getEnvOrDefault("HOURFLOW_DATABASE_FILE", "hourflow.db"),

		RemoteBackend: getEnvOrDefault("HOURFLOW_REMOTE_BACKEND", "none"),
		DocbinBaseURL: os.Getenv("HOURFLOW_DOCBIN_BASE_URL"),
		DocbinKey:     os.Getenv("HOURFLOW_DOCBIN_MASTER_KEY"),
		UserdbURL:     os.Getenv("HOURFLOW_USERDB_URL"),

		UserID:         os.Getenv("HOURFLOW_USER_ID"),
		IdentityToken:  os.Getenv("HOURFLOW_IDENTITY_TOKEN"),
		IdentitySecret: os.Getenv("HOURFLOW_IDENTITY_SECRET"),

		LicenseURL: os.Getenv("HOURFLOW_LICENSE_URL"),

		SyncInterval:        getEnvDurationOrDefault("HOURFLOW_SYNC_INTERVAL", 5*time.Minute),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers read as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
