package app

import (
	"context"
	"fmt"
	"log"

	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/database"
	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/metrics"
	"ai-health-navigator/internal/notify"
	"ai-health-navigator/internal/storage"
)

// groqTemperature matches the sampling used for the Gemini plans.
const groqTemperature = 0.7

// NewTextGenerator creates the model client selected by LLM_PROVIDER.
func NewTextGenerator(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	case config.ProviderGroq:
		return llm.NewGroqClient(cfg, groqTemperature), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

// OpenStore opens the document store selected by STORE_BACKEND. The returned
// database is nil for the file and memory backends.
func OpenStore(ctx context.Context, cfg *config.Config) (storage.DocumentStore, *database.DB, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		db, err := database.NewDB(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return storage.NewSQLStore(db.SQL), db, nil
	case config.BackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return storage.NewSQLStore(db.SQL), db, nil
	case config.BackendFile:
		store, err := storage.NewFileStore(cfg.FileStorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		return store, nil, nil
	case config.BackendMemory:
		log.Println("Warning: using the in-memory store, data is lost on exit")
		return storage.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

// Bootstrap opens every resource the configuration asks for and builds the
// App. The returned function releases them.
func Bootstrap(ctx context.Context, cfg *config.Config, notifier notify.Sink) (*App, func(), error) {
	textGen, err := NewTextGenerator(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	store, db, err := OpenStore(ctx, cfg)
	if err != nil {
		textGen.Close()
		return nil, nil, err
	}

	var metricsStore *metrics.Store
	if db != nil {
		metricsStore = metrics.NewStore(db.SQL)
	}

	cleanup := func() {
		if err := textGen.Close(); err != nil {
			log.Printf("Warning: failed to close model client: %v", err)
		}
		if db != nil {
			if err := db.Close(); err != nil {
				log.Printf("Warning: failed to close database: %v", err)
			}
		}
	}
	return NewApp(cfg, textGen, store, metricsStore, notifier), cleanup, nil
}
