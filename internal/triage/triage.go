// Package triage holds the one-shot helpers that sit next to the recovery
// planner: symptom triage advice, stress analysis of a spoken transcript and
// the mood/sleep/stress check-in.
package triage

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/shared"
	"ai-health-navigator/internal/storage"
)

const (
	symptomLogsCollection = "symptom_logs"
	checkinsCollection    = "checkins"
	voiceLogsCollection   = "voiceStressLogs"
	agentSymptomCheck     = "SymptomCheck"
	agentVoiceStress      = "VoiceStress"

	minTranscriptLen = 5

	defaultMood   = "neutral"
	defaultStress = "moderate"
	maxSleepHours = 24
)

//go:embed prompts/symptom_check.md
var symptomCheckPrompt string

var symptomCheckTmpl = template.Must(template.New("symptom_check").Parse(symptomCheckPrompt))

//go:embed prompts/voice_stress.md
var voiceStressPrompt string

var voiceStressTmpl = template.Must(template.New("voice_stress").Parse(voiceStressPrompt))

// UsageRecorder stores token usage of model calls.
type UsageRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// Advice is the model's triage answer for a set of symptoms.
type Advice struct {
	Text  string
	Usage shared.TokenUsage
}

// SymptomLog is the persisted record of a triage request.
type SymptomLog struct {
	UserID    string    `json:"userId"`
	Symptoms  string    `json:"symptoms"`
	CreatedAt time.Time `json:"createdAt"`
}

// StressAnalysis is the model's reading of a spoken transcript. The labelled
// fields are filled from the reply when the model kept the requested format;
// Text always holds the full reply.
type StressAnalysis struct {
	Text        string
	StressLevel string
	Emotion     string
	Confidence  int
	Message     string
	Usage       shared.TokenUsage
}

// VoiceLog is the persisted record of a transcript analysis.
type VoiceLog struct {
	UserID     string    `json:"userId"`
	Transcript string    `json:"transcript"`
	AIResult   string    `json:"aiResult"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Checkin is a mental health check-in.
type Checkin struct {
	UserID string  `json:"userId"`
	Mood   string  `json:"mood"`
	Sleep  float64 `json:"sleep"`
	Stress string  `json:"stress"`
}

// Service runs symptom checks and records check-ins.
type Service struct {
	store   storage.DocumentStore
	textGen llm.TextGenerator
	usage   UsageRecorder
	now     func() time.Time
}

// NewService creates a new Service. usage may be nil.
func NewService(store storage.DocumentStore, textGen llm.TextGenerator, usage UsageRecorder) *Service {
	return &Service{store: store, textGen: textGen, usage: usage, now: time.Now}
}

// CheckSymptoms asks the model to classify symptoms into a care level. The
// request is logged for signed-in users; a failed log write does not stop the
// check. Model failures are returned.
func (s *Service) CheckSymptoms(ctx context.Context, userID, symptoms string) (Advice, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return Advice{}, &shared.ValidationError{Field: "symptoms", Message: "please enter your symptoms"}
	}

	if userID != "" {
		s.logSymptoms(ctx, userID, symptoms)
	}

	var buf bytes.Buffer
	if err := symptomCheckTmpl.Execute(&buf, symptoms); err != nil {
		return Advice{}, fmt.Errorf("failed to build symptom check prompt: %w", err)
	}

	resp, err := s.generate(ctx, agentSymptomCheck, buf.String())
	if err != nil {
		return Advice{}, fmt.Errorf("failed to check symptoms: %w", err)
	}
	return Advice{Text: resp.Content, Usage: resp.Usage}, nil
}

// AnalyzeTranscript estimates the stress level and emotion behind a spoken
// transcript. Transcripts shorter than five characters are rejected. The
// result is logged for signed-in users; a failed log write is ignored.
func (s *Service) AnalyzeTranscript(ctx context.Context, userID, transcript string) (StressAnalysis, error) {
	transcript = strings.TrimSpace(transcript)
	if utf8.RuneCountInString(transcript) < minTranscriptLen {
		return StressAnalysis{}, &shared.ValidationError{
			Field:   "transcript",
			Message: "please speak a bit more for analysis (at least 5 characters)",
		}
	}

	var buf bytes.Buffer
	if err := voiceStressTmpl.Execute(&buf, transcript); err != nil {
		return StressAnalysis{}, fmt.Errorf("failed to build voice analysis prompt: %w", err)
	}

	resp, err := s.generate(ctx, agentVoiceStress, buf.String())
	if err != nil {
		return StressAnalysis{}, fmt.Errorf("failed to analyze transcript: %w", err)
	}

	if userID != "" {
		s.logVoice(ctx, VoiceLog{UserID: userID, Transcript: transcript, AIResult: resp.Content, CreatedAt: s.now().UTC()})
	}

	analysis := parseStressAnalysis(resp.Content)
	analysis.Usage = resp.Usage
	return analysis, nil
}

// parseStressAnalysis reads the "Label: value" lines of the model reply.
func parseStressAnalysis(text string) StressAnalysis {
	a := StressAnalysis{Text: text}
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.ToLower(strings.Trim(strings.TrimSpace(label), "*- "))
		value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), "*"))
		switch label {
		case "stress level":
			a.StressLevel = value
		case "emotion":
			a.Emotion = value
		case "confidence":
			if n, err := strconv.Atoi(strings.TrimSuffix(value, "%")); err == nil && n >= 0 && n <= 100 {
				a.Confidence = n
			}
		case "message":
			a.Message = value
		}
	}
	return a
}

func (s *Service) generate(ctx context.Context, agent, prompt string) (llm.ContentResponse, error) {
	start := time.Now()
	resp, err := s.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return llm.ContentResponse{}, err
	}

	if s.usage != nil {
		meta := shared.AgentMeta{AgentName: agent, Usage: resp.Usage, Latency: time.Since(start)}
		if err := s.usage.RecordMeta(meta); err != nil {
			log.Printf("Warning: failed to record metrics for %s: %v", agent, err)
		}
	}
	return resp, nil
}

func (s *Service) logVoice(ctx context.Context, entry VoiceLog) {
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Warning: failed to marshal voice log: %v", err)
		return
	}
	if _, err := s.store.Insert(ctx, voiceLogsCollection, storage.Document{UserID: entry.UserID, Data: data}); err != nil {
		log.Printf("Warning: failed to save voice log for user %s: %v", entry.UserID, err)
	}
}

func (s *Service) logSymptoms(ctx context.Context, userID, symptoms string) {
	data, err := json.Marshal(SymptomLog{UserID: userID, Symptoms: symptoms, CreatedAt: s.now().UTC()})
	if err != nil {
		log.Printf("Warning: failed to marshal symptom log: %v", err)
		return
	}
	if _, err := s.store.Insert(ctx, symptomLogsCollection, storage.Document{UserID: userID, Data: data}); err != nil {
		log.Printf("Warning: failed to save symptom log for user %s: %v", userID, err)
	}
}

// ParseSleep reads a number of sleep hours as typed by the user.
func ParseSleep(raw string) (float64, error) {
	hours, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !validSleep(hours) {
		return 0, sleepError()
	}
	return hours, nil
}

// SubmitCheckin validates and stores a check-in. Empty mood and stress take
// their defaults.
func (s *Service) SubmitCheckin(ctx context.Context, c Checkin) error {
	if c.UserID == "" {
		return &shared.ValidationError{Field: "userId", Message: "please login first"}
	}
	if !validSleep(c.Sleep) {
		return sleepError()
	}
	c.Mood = strings.TrimSpace(c.Mood)
	if c.Mood == "" {
		c.Mood = defaultMood
	}
	c.Stress = strings.TrimSpace(c.Stress)
	if c.Stress == "" {
		c.Stress = defaultStress
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal check-in: %w", err)
	}
	if _, err := s.store.Insert(ctx, checkinsCollection, storage.Document{UserID: c.UserID, Data: data}); err != nil {
		return &shared.PersistenceError{Op: "save check-in", Err: err}
	}
	return nil
}

func validSleep(hours float64) bool {
	return !math.IsNaN(hours) && hours >= 0 && hours <= maxSleepHours
}

func sleepError() error {
	return &shared.ValidationError{Field: "sleep", Message: "please enter valid sleep hours (0-24)"}
}
