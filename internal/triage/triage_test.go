package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/shared"
	"ai-health-navigator/internal/storage"

	"github.com/tidwall/gjson"
)

type MockTextGenerator struct {
	prompt  string
	content string
	err     error
}

func (m *MockTextGenerator) GenerateContent(ctx context.Context, prompt string) (llm.ContentResponse, error) {
	m.prompt = prompt
	if m.err != nil {
		return llm.ContentResponse{}, m.err
	}
	if m.content != "" {
		return llm.ContentResponse{Content: m.content}, nil
	}
	return llm.ContentResponse{Content: "3. Home Care & Rest\nDrink fluids and rest."}, nil
}

type failingStore struct {
	storage.DocumentStore
}

func (failingStore) Insert(context.Context, string, storage.Document) (string, error) {
	return "", errors.New("offline")
}

func TestCheckSymptoms(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		store := storage.NewMemoryStore()
		gen := &MockTextGenerator{}
		svc := NewService(store, gen, nil)

		advice, err := svc.CheckSymptoms(ctx, "u1", " runny nose ")
		if err != nil {
			t.Fatalf("CheckSymptoms failed: %v", err)
		}
		if !strings.Contains(advice.Text, "Home Care & Rest") {
			t.Errorf("Unexpected advice: %q", advice.Text)
		}
		for _, want := range []string{"Visit a Doctor", "Talk to a Counselor", "Do NOT diagnose", "Symptoms:\nrunny nose"} {
			if !strings.Contains(gen.prompt, want) {
				t.Errorf("Expected prompt to contain %q", want)
			}
		}

		docs, _ := store.Query(ctx, symptomLogsCollection, storage.Filter{UserID: "u1"})
		if len(docs) != 1 || gjson.GetBytes(docs[0].Data, "symptoms").String() != "runny nose" {
			t.Errorf("Expected one symptom log, got %d", len(docs))
		}
	})

	t.Run("AnonymousIsNotLogged", func(t *testing.T) {
		store := storage.NewMemoryStore()
		svc := NewService(store, &MockTextGenerator{}, nil)
		if _, err := svc.CheckSymptoms(ctx, "", "cough"); err != nil {
			t.Fatal(err)
		}
		docs, _ := store.Query(ctx, symptomLogsCollection, storage.Filter{})
		if len(docs) != 0 {
			t.Errorf("Expected no log, got %d", len(docs))
		}
	})

	t.Run("LogFailureIsTolerated", func(t *testing.T) {
		svc := NewService(failingStore{}, &MockTextGenerator{}, nil)
		if _, err := svc.CheckSymptoms(ctx, "u1", "cough"); err != nil {
			t.Errorf("Expected log failure to be swallowed, got %v", err)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		gen := &MockTextGenerator{}
		svc := NewService(storage.NewMemoryStore(), gen, nil)
		var vErr *shared.ValidationError
		if _, err := svc.CheckSymptoms(ctx, "u1", "  "); !errors.As(err, &vErr) {
			t.Errorf("Expected ValidationError, got %v", err)
		}
		if gen.prompt != "" {
			t.Error("Model must not be called for empty symptoms")
		}
	})

	t.Run("ModelError", func(t *testing.T) {
		gen := &MockTextGenerator{err: &llm.RemoteServiceError{Provider: "gemini", Status: 500, Message: "internal"}}
		svc := NewService(storage.NewMemoryStore(), gen, nil)
		_, err := svc.CheckSymptoms(ctx, "u1", "cough")
		var rErr *llm.RemoteServiceError
		if !errors.As(err, &rErr) || rErr.Status != 500 {
			t.Errorf("Expected RemoteServiceError, got %v", err)
		}
	})
}

func TestAnalyzeTranscript(t *testing.T) {
	ctx := context.Background()
	reply := "**Stress Level:** Moderate Stress\nEmotion: anxious\nConfidence: 72%\nMessage: Take short breaks between study sessions."

	t.Run("Success", func(t *testing.T) {
		store := storage.NewMemoryStore()
		gen := &MockTextGenerator{content: reply}
		svc := NewService(store, gen, nil)

		analysis, err := svc.AnalyzeTranscript(ctx, "u1", "  I have three exams this week and I can't sleep ")
		if err != nil {
			t.Fatalf("AnalyzeTranscript failed: %v", err)
		}
		if analysis.StressLevel != "Moderate Stress" || analysis.Emotion != "anxious" || analysis.Confidence != 72 {
			t.Errorf("Unexpected analysis: %+v", analysis)
		}
		if analysis.Message != "Take short breaks between study sessions." || analysis.Text != reply {
			t.Errorf("Unexpected message or text: %+v", analysis)
		}
		for _, want := range []string{"Stress Level: Calm | Moderate Stress | High Stress", "Do NOT diagnose diseases", `"I have three exams this week and I can't sleep"`} {
			if !strings.Contains(gen.prompt, want) {
				t.Errorf("Expected prompt to contain %q", want)
			}
		}

		docs, _ := store.Query(ctx, voiceLogsCollection, storage.Filter{UserID: "u1"})
		if len(docs) != 1 {
			t.Fatalf("Expected one voice log, got %d", len(docs))
		}
		data := gjson.ParseBytes(docs[0].Data)
		if data.Get("transcript").String() != "I have three exams this week and I can't sleep" || data.Get("aiResult").String() != reply {
			t.Errorf("Unexpected voice log: %s", docs[0].Data)
		}
	})

	t.Run("FreeFormReply", func(t *testing.T) {
		svc := NewService(storage.NewMemoryStore(), &MockTextGenerator{content: "You sound calm today."}, nil)
		analysis, err := svc.AnalyzeTranscript(ctx, "", "feeling okay")
		if err != nil {
			t.Fatal(err)
		}
		if analysis.Text != "You sound calm today." || analysis.StressLevel != "" || analysis.Confidence != 0 {
			t.Errorf("Unexpected analysis: %+v", analysis)
		}
	})

	t.Run("TooShort", func(t *testing.T) {
		gen := &MockTextGenerator{}
		svc := NewService(storage.NewMemoryStore(), gen, nil)
		for _, transcript := range []string{"", "   ", "hi", " ok  ", "ñañá"} {
			var vErr *shared.ValidationError
			if _, err := svc.AnalyzeTranscript(ctx, "u1", transcript); !errors.As(err, &vErr) {
				t.Errorf("Expected ValidationError for %q, got %v", transcript, err)
			}
		}
		if gen.prompt != "" {
			t.Error("Model must not be called for a short transcript")
		}
	})

	t.Run("ModelErrorIsNotLogged", func(t *testing.T) {
		store := storage.NewMemoryStore()
		gen := &MockTextGenerator{err: &llm.NoCandidatesError{Provider: "gemini"}}
		svc := NewService(store, gen, nil)
		var ncErr *llm.NoCandidatesError
		if _, err := svc.AnalyzeTranscript(ctx, "u1", "so much pressure"); !errors.As(err, &ncErr) {
			t.Errorf("Expected NoCandidatesError, got %v", err)
		}
		docs, _ := store.Query(ctx, voiceLogsCollection, storage.Filter{})
		if len(docs) != 0 {
			t.Errorf("Expected no voice log, got %d", len(docs))
		}
	})

	t.Run("LogFailureIsTolerated", func(t *testing.T) {
		svc := NewService(failingStore{}, &MockTextGenerator{content: reply}, nil)
		if _, err := svc.AnalyzeTranscript(ctx, "u1", "a long day of classes"); err != nil {
			t.Errorf("Expected log failure to be swallowed, got %v", err)
		}
	})
}

func TestParseSleep(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"7.5", 7.5, false},
		{" 0 ", 0, false},
		{"24", 24, false},
		{"25", 0, true},
		{"-1", 0, true},
		{"eight", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSleep(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSleep(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSleep(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSubmitCheckin(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		store := storage.NewMemoryStore()
		svc := NewService(store, &MockTextGenerator{}, nil)
		if err := svc.SubmitCheckin(ctx, Checkin{UserID: "u1", Sleep: 6}); err != nil {
			t.Fatalf("SubmitCheckin failed: %v", err)
		}
		docs, _ := store.Query(ctx, checkinsCollection, storage.Filter{UserID: "u1"})
		if len(docs) != 1 {
			t.Fatalf("Expected one check-in, got %d", len(docs))
		}
		data := gjson.ParseBytes(docs[0].Data)
		if data.Get("mood").String() != "neutral" || data.Get("stress").String() != "moderate" || data.Get("sleep").Float() != 6 {
			t.Errorf("Unexpected check-in: %s", docs[0].Data)
		}
		if !data.Get("timestamp").Exists() {
			t.Error("Expected the store to stamp a timestamp")
		}
	})

	t.Run("Validation", func(t *testing.T) {
		svc := NewService(storage.NewMemoryStore(), &MockTextGenerator{}, nil)
		for _, c := range []Checkin{{Sleep: 5}, {UserID: "u1", Sleep: 30}, {UserID: "u1", Sleep: -2}} {
			var vErr *shared.ValidationError
			if err := svc.SubmitCheckin(ctx, c); !errors.As(err, &vErr) {
				t.Errorf("Expected ValidationError for %+v, got %v", c, err)
			}
		}
	})

	t.Run("StoreFailure", func(t *testing.T) {
		svc := NewService(failingStore{}, &MockTextGenerator{}, nil)
		var pErr *shared.PersistenceError
		if err := svc.SubmitCheckin(ctx, Checkin{UserID: "u1", Sleep: 8, Mood: "happy"}); !errors.As(err, &pErr) {
			t.Errorf("Expected PersistenceError, got %v", err)
		}
	})
}
