package metrics

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ai-health-navigator/internal/database"
	"ai-health-navigator/internal/shared"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestStoreDailyUsage(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "metrics.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewStore(db.SQL)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	records := []ExecutionMetric{
		{AgentName: "InitialPlan", PromptTokens: 100, CompletionTokens: 50, Timestamp: now.Add(-time.Hour)},
		{AgentName: "NextDayPlan", PromptTokens: 10, CompletionTokens: 5, Timestamp: now.Add(-2 * time.Hour)},
		{AgentName: "Triage", PromptTokens: 1, CompletionTokens: 1, Timestamp: now.AddDate(0, 0, -1)},
		{AgentName: "Old", PromptTokens: 999, CompletionTokens: 999, Timestamp: now.AddDate(0, 0, -40)},
	}
	for _, r := range records {
		if err := store.Record(r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	usage, err := store.GetDailyUsage(7)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("Expected 2 days of usage, got %d: %+v", len(usage), usage)
	}
	if usage[0].Date != "2024-05-10" || usage[0].TotalPrompt != 110 || usage[0].TotalExecution != 2 {
		t.Errorf("Unexpected usage for today: %+v", usage[0])
	}

	removed, err := store.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed record, got %d", removed)
	}
}

func TestRecordMetaSkipsEmptyUsage(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	if err := store.RecordMeta(shared.AgentMeta{AgentName: "InitialPlan"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	mock.ExpectExec("INSERT INTO execution_metrics").WillReturnError(errors.New("locked"))
	err = store.RecordMeta(shared.AgentMeta{AgentName: "InitialPlan", Usage: shared.TokenUsage{PromptTokens: 3}})
	if err == nil {
		t.Fatal("Expected the insert error to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
