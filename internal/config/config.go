// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"

	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

type Config struct {
	Port    string
	GinMode string

	LogLevel  string
	LogFormat string

	HistoryBackend string
	HistoryFile    string
	HistoryDir     string
	DatabaseURL    string

	ModelProvider string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	OllamaModel   string
	ModelTimeout  time.Duration

	MaxUploadBytes int64
	UploadDir      string

	SessionLimit int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "release"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", BackendFile)),
		HistoryFile:    getEnv("HISTORY_FILE", "chat_history.json"),
		HistoryDir:     getEnv("HISTORY_DIR", "."),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ModelProvider:  strings.ToLower(getEnv("MODEL_PROVIDER", ProviderGemini)),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", os.Getenv("API_KEY_FP")),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:  getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		OllamaModel:    getEnv("OLLAMA_MODEL", "llama3.2"),
		UploadDir:      getEnv("UPLOAD_DIR", os.TempDir()),
	}

	timeout, err := time.ParseDuration(getEnv("MODEL_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("MODEL_TIMEOUT: %w", err)
	}
	cfg.ModelTimeout = timeout

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "20971520"), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be a positive integer")
	}
	cfg.MaxUploadBytes = maxUpload

	sessionLimit, err := strconv.Atoi(getEnv("SESSION_LIMIT", "1000"))
	if err != nil || sessionLimit <= 0 {
		return nil, fmt.Errorf("SESSION_LIMIT must be a positive integer")
	}
	cfg.SessionLimit = sessionLimit

	switch cfg.HistoryBackend {
	case BackendFile:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when HISTORY_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.HistoryBackend)
	}

	switch cfg.ModelProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when MODEL_PROVIDER=gemini")
		}
	case ProviderOllama:
	default:
		return nil, fmt.Errorf("unknown MODEL_PROVIDER %q", cfg.ModelProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
