package recovery

import (
	"strings"
	"testing"
)

func TestBuildInitialPrompt(t *testing.T) {
	prompt, err := buildInitialPrompt(HealthProfile{
		Weight:    "70",
		Age:       "29",
		Symptoms:  "mild headache",
		Lifestyle: "desk job",
	})
	if err != nil {
		t.Fatalf("buildInitialPrompt failed: %v", err)
	}

	for _, want := range []string{
		"- Weight: 70 kg",
		"- Age: 29 years",
		"- Symptoms: mild headache",
		"- Lifestyle: desk job",
		"Return ONLY a JSON array",
		"Do NOT diagnose diseases",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
	for _, absent := range []string{"- Height:", "- Gender:", "- Medical History:"} {
		if strings.Contains(prompt, absent) {
			t.Errorf("Expected prompt to omit %q", absent)
		}
	}
	if strings.Contains(prompt, "&#") {
		t.Error("Prompt must not be HTML escaped")
	}
}

func TestBuildNextDayPrompt(t *testing.T) {
	history := []DayPlan{
		{Day: 1, Tasks: []Task{{ID: 1, Completed: true}, {ID: 2, Completed: true}}},
		{Day: 2, Tasks: []Task{{ID: 1, Completed: true}, {ID: 2}, {ID: 3}}},
	}
	prompt, err := buildNextDayPrompt(3, HealthProfile{Symptoms: "sore throat", Height: "180"}, history)
	if err != nil {
		t.Fatalf("buildNextDayPrompt failed: %v", err)
	}

	for _, want := range []string{
		"Generate Day 3 of a recovery plan",
		"- Symptoms: sore throat",
		"- Height: 180 cm",
		"Day 1: 2/2 tasks completed",
		"Day 2: 1/3 tasks completed",
		"Create Day 3 to-do list",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}
