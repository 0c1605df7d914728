package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values for LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Supported values for STORE_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

const (
	defaultGeminiModel  = "gemini-2.5-flash"
	defaultGroqModel    = "llama-3.3-70b-versatile"
	defaultGroqBaseURL  = "https://api.groq.com/openai/v1/"
	defaultDatabasePath = "data/health-navigator.db"
	defaultFileStore    = "data/documents"
	defaultAdvanceDelay = 2 * time.Second
)

// Config holds the configuration for the application.
type Config struct {
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string
	GroqBaseURL  string
	GroqModel    string

	StoreBackend  string
	DatabasePath  string
	DatabaseURL   string
	FileStorePath string

	// AutoAdvanceDelay is how long a fully completed day stays on screen
	// before the next day is generated.
	AutoAdvanceDelay time.Duration

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	// HTTP API Config
	APIJWTSecret string
	Port         string
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini))

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	groqAPIKey := os.Getenv("GROQ_API_KEY")
	switch provider {
	case ProviderGemini:
		if geminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case ProviderGroq:
		if groqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", provider)
	}

	backend := strings.ToLower(getEnv("STORE_BACKEND", BackendSQLite))
	databaseURL := os.Getenv("DATABASE_URL")
	switch backend {
	case BackendSQLite, BackendFile, BackendMemory:
	case BackendPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", backend)
	}

	advanceDelay := defaultAdvanceDelay
	if raw := os.Getenv("AUTO_ADVANCE_DELAY"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid AUTO_ADVANCE_DELAY %q: %w", raw, err)
		}
		advanceDelay = d
	}

	allowed, err := parseIDList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}

	var adminID int64
	if raw := os.Getenv("ADMIN_TELEGRAM_ID"); raw != "" {
		adminID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID %q: %w", raw, err)
		}
	}

	return &Config{
		LLMProvider:            provider,
		GeminiAPIKey:           geminiAPIKey,
		GeminiModel:            getEnv("GEMINI_MODEL", defaultGeminiModel),
		GroqAPIKey:             groqAPIKey,
		GroqBaseURL:            getEnv("GROQ_BASE_URL", defaultGroqBaseURL),
		GroqModel:              getEnv("GROQ_MODEL", defaultGroqModel),
		StoreBackend:           backend,
		DatabasePath:           getEnv("DATABASE_PATH", defaultDatabasePath),
		DatabaseURL:            databaseURL,
		FileStorePath:          getEnv("FILE_STORE_PATH", defaultFileStore),
		AutoAdvanceDelay:       advanceDelay,
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowed,
		AdminTelegramID:        adminID,
		APIJWTSecret:           os.Getenv("API_JWT_SECRET"),
		Port:                   getEnv("PORT", "8080"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseIDList parses a comma separated list of Telegram user ids.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a user id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
