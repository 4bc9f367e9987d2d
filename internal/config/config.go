package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Backend
	APIURL      string
	HTTPTimeout time.Duration

	// Google Identity Services
	GoogleClientID    string
	VerifyGoogleToken bool

	// Storage
	StorageType string
	StoragePath string
	RedisURL    string

	// Local pages
	SignInAddr      string
	ProjectorAddr   string
	ProjectorSecret string

	// Session timers
	RefreshInterval time.Duration
	PollInterval    time.Duration

	// Presentation
	NoticeTTL   time.Duration
	DownloadDir string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		APIURL:            getEnvOrDefault("API_URL", "http://localhost:5000/api"),
		HTTPTimeout:       getEnvAsDurationOrDefault("HTTP_TIMEOUT", 0),
		GoogleClientID:    getEnvOrDefault("GOOGLE_CLIENT_ID", ""),
		VerifyGoogleToken: getEnvAsBoolOrDefault("VERIFY_GOOGLE_TOKEN", false),
		StorageType:       getEnvOrDefault("STORAGE_TYPE", "file"),
		StoragePath:       getEnvOrDefault("STORAGE_PATH", defaultStoragePath()),
		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		SignInAddr:        getEnvOrDefault("SIGNIN_ADDR", "127.0.0.1:8765"),
		ProjectorAddr:     getEnvOrDefault("PROJECTOR_ADDR", "127.0.0.1:8766"),
		ProjectorSecret:   getEnvOrDefault("PROJECTOR_SECRET", ""),
		RefreshInterval:   getEnvAsDurationOrDefault("REFRESH_INTERVAL", 5*time.Second),
		PollInterval:      getEnvAsDurationOrDefault("POLL_INTERVAL", 3*time.Second),
		NoticeTTL:         getEnvAsDurationOrDefault("NOTICE_TTL", 4*time.Second),
		DownloadDir:       getEnvOrDefault("DOWNLOAD_DIR", "."),
	}

	if cfg.StorageType == "redis" {
		cfg.RedisURL = mustGetEnv("REDIS_URL")
	}

	return cfg
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "qroll", "session.json")
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvAsDurationOrDefault accepts Go durations ("5s") or a bare number of seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs := getEnvAsIntOrDefault(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}
