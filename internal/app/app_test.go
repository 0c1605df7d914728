package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/database"
	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/metrics"
	"ai-health-navigator/internal/notify"
	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/shared"
	"ai-health-navigator/internal/storage"
	"ai-health-navigator/internal/triage"
)

type MockTextGenerator struct{}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	if strings.Contains(prompt, "spoken text") {
		return llm.ContentResponse{Content: "Stress Level: Calm\nEmotion: calm\nConfidence: 80\nMessage: Keep it up."}, nil
	}
	if strings.Contains(prompt, "Classify symptoms") {
		return llm.ContentResponse{Content: "Home Care & Rest", Usage: shared.TokenUsage{PromptTokens: 20, CompletionTokens: 4, Model: "mock"}}, nil
	}
	return llm.ContentResponse{
		Content: `[{"id":1,"text":"Walk 10 minutes","category":"exercise"},{"id":2,"text":"Nap","category":"rest"}]`,
		Usage:   shared.TokenUsage{PromptTokens: 100, CompletionTokens: 40, Model: "mock"},
	}, nil
}

func newTestApp(t *testing.T, metricsStore *metrics.Store) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{AutoAdvanceDelay: time.Hour}
	a := NewApp(cfg, &MockTextGenerator{}, storage.NewMemoryStore(), metricsStore, notify.LogSink{})
	var out bytes.Buffer
	a.SetOutput(&out)
	return a, &out
}

func TestCLIFlow(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, nil)

	if err := a.StartPlan(ctx, "cli", recovery.HealthProfile{Symptoms: "mild headache"}); err != nil {
		t.Fatalf("StartPlan failed: %v", err)
	}
	if !strings.Contains(out.String(), "=== DAY 1 RECOVERY PLAN ===") || !strings.Contains(out.String(), "[ ]  1. Walk 10 minutes (exercise)") {
		t.Errorf("Unexpected plan output:\n%s", out.String())
	}

	out.Reset()
	if err := a.ToggleTask(ctx, "cli", 1); err != nil {
		t.Fatal(err)
	}
	if err := a.ToggleTask(ctx, "cli", 2); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Run `next` to load Day 2") {
		t.Errorf("Expected next hint, got:\n%s", out.String())
	}
	s, _ := a.Registry().Get(ctx, "cli")
	if s.AdvancePending() {
		t.Error("Expected the CLI to cancel the auto-advance")
	}

	out.Reset()
	if err := a.NextDay(ctx, "cli"); err != nil {
		t.Fatalf("NextDay failed: %v", err)
	}
	if !strings.Contains(out.String(), "=== DAY 2 RECOVERY PLAN ===") {
		t.Errorf("Expected day 2, got:\n%s", out.String())
	}

	out.Reset()
	if err := a.PrintStatus(ctx, "cli"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Day 1: 2/2 tasks completed") || !strings.Contains(out.String(), "Day 2: 0/2 tasks completed") {
		t.Errorf("Unexpected status:\n%s", out.String())
	}

	out.Reset()
	if err := a.ReportCondition(ctx, "cli", recovery.ConditionWorse); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "My condition has worsened") {
		t.Errorf("Expected draft symptoms, got:\n%s", out.String())
	}

	out.Reset()
	_ = a.PrintStatus(ctx, "cli")
	if !strings.Contains(out.String(), "No active recovery plan") {
		t.Errorf("Expected empty status, got:\n%s", out.String())
	}
}

func TestTriageCommands(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t, nil)

	if err := a.CheckSymptoms(ctx, "cli", "sore throat"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Home Care & Rest") {
		t.Errorf("Unexpected advice output:\n%s", out.String())
	}

	out.Reset()
	if err := a.AnalyzeTranscript(ctx, "cli", "today went fine honestly"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Stress Level: Calm") {
		t.Errorf("Unexpected voice output:\n%s", out.String())
	}
	if err := a.AnalyzeTranscript(ctx, "cli", "hm"); err == nil {
		t.Error("Expected a short transcript to be rejected")
	}

	if err := a.SubmitCheckin(ctx, triage.Checkin{UserID: "cli", Sleep: 7}); err != nil {
		t.Fatal(err)
	}
	if err := a.SubmitCheckin(ctx, triage.Checkin{UserID: "cli", Sleep: 40}); err == nil {
		t.Error("Expected invalid sleep to be rejected")
	}
}

func TestMetricsCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutDatabase", func(t *testing.T) {
		a, _ := newTestApp(t, nil)
		if err := a.PrintMetrics(7); err == nil {
			t.Error("Expected an error without a metrics store")
		}
	})

	t.Run("SQLite", func(t *testing.T) {
		db, err := database.NewDB(filepath.Join(t.TempDir(), "app.db"))
		if err != nil {
			t.Fatalf("NewDB failed: %v", err)
		}
		defer db.Close()

		a, out := newTestApp(t, metrics.NewStore(db.SQL))
		if err := a.StartPlan(ctx, "cli", recovery.HealthProfile{Symptoms: "cough"}); err != nil {
			t.Fatal(err)
		}
		if err := a.CheckSymptoms(ctx, "cli", "cough"); err != nil {
			t.Fatal(err)
		}

		out.Reset()
		if err := a.PrintMetrics(7); err != nil {
			t.Fatalf("PrintMetrics failed: %v", err)
		}
		if !strings.Contains(out.String(), "164 tokens (2 execs)") {
			t.Errorf("Unexpected metrics output:\n%s", out.String())
		}

		out.Reset()
		if err := a.CleanupMetrics(30); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "removed 0 old metric records") {
			t.Errorf("Unexpected cleanup output:\n%s", out.String())
		}
	})
}

func TestParseCondition(t *testing.T) {
	if c, err := ParseCondition(" Worse "); err != nil || c != recovery.ConditionWorse {
		t.Errorf("ParseCondition = %q, %v", c, err)
	}
	if _, err := ParseCondition("fine"); err == nil {
		t.Error("Expected an error for an unknown condition")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, backend := range []string{config.BackendSQLite, config.BackendFile, config.BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			cfg := &config.Config{
				StoreBackend:  backend,
				DatabasePath:  filepath.Join(dir, "store.db"),
				FileStorePath: filepath.Join(dir, "docs"),
			}
			store, db, err := OpenStore(ctx, cfg)
			if err != nil {
				t.Fatalf("OpenStore failed: %v", err)
			}
			if db != nil {
				defer db.Close()
			}
			if (db != nil) != (backend == config.BackendSQLite) {
				t.Errorf("Unexpected database handle for %s", backend)
			}
			if _, err := store.Insert(ctx, "checkins", storage.Document{UserID: "u", Data: []byte(`{"sleep":7}`)}); err != nil {
				t.Errorf("Insert failed: %v", err)
			}
		})
	}

	if _, _, err := OpenStore(ctx, &config.Config{StoreBackend: "redis"}); err == nil {
		t.Error("Expected an error for an unknown backend")
	}
}

func TestNewTextGenerator(t *testing.T) {
	ctx := context.Background()
	client, err := NewTextGenerator(ctx, &config.Config{LLMProvider: config.ProviderGroq, GroqAPIKey: "key", GroqModel: "m", GroqBaseURL: "http://localhost/"})
	if err != nil {
		t.Fatalf("NewTextGenerator failed: %v", err)
	}
	client.Close()

	if _, err := NewTextGenerator(ctx, &config.Config{LLMProvider: "other"}); err == nil {
		t.Error("Expected an error for an unknown provider")
	}
}
