package recovery

import (
	"strings"
	"time"
)

// Category classifies a recovery task.
type Category string

const (
	CategoryExercise   Category = "exercise"
	CategoryDiet       Category = "diet"
	CategoryMedication Category = "medication"
	CategoryRest       Category = "rest"
	CategoryOther      Category = "other"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryExercise, CategoryDiet, CategoryMedication, CategoryRest, CategoryOther:
		return true
	}
	return false
}

// Task is one actionable recovery item. IDs are unique within a DayPlan.
type Task struct {
	ID        int      `json:"id"`
	Text      string   `json:"text"`
	Category  Category `json:"category"`
	Completed bool     `json:"completed"`
}

// DayPlan is the ordered task list for one recovery day.
type DayPlan struct {
	Day              int    `json:"day"`
	Tasks            []Task `json:"todos"`
	HealthProfileRef string `json:"healthDataId,omitempty"`
}

// CompletedCount returns how many tasks are done.
func (p DayPlan) CompletedCount() int {
	n := 0
	for _, t := range p.Tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

// AllCompleted reports whether the plan has tasks and every one is done.
func (p DayPlan) AllCompleted() bool {
	return len(p.Tasks) > 0 && p.CompletedCount() == len(p.Tasks)
}

func (p DayPlan) clone() DayPlan {
	p.Tasks = append([]Task(nil), p.Tasks...)
	return p
}

// HealthProfile is the intake snapshot used to seed plan generation.
type HealthProfile struct {
	ID             string `json:"-"`
	UserID         string `json:"userId"`
	Weight         string `json:"weight,omitempty"`
	Height         string `json:"height,omitempty"`
	Age            string `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	Symptoms       string `json:"symptoms"`
	MedicalHistory string `json:"medicalHistory,omitempty"`
	Lifestyle      string `json:"lifestyle,omitempty"`
}

// Condition is the user's self-reported change since the plan started.
type Condition string

const (
	ConditionBetter    Condition = "better"
	ConditionWorse     Condition = "worse"
	ConditionDifferent Condition = "different"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionBetter, ConditionWorse, ConditionDifferent:
		return true
	}
	return false
}

// LeadIn is the sentence placed in front of the symptoms on the next intake.
// ConditionBetter has none.
func (c Condition) LeadIn() string {
	switch c {
	case ConditionWorse:
		return "My condition has worsened. Please provide a new recovery plan."
	case ConditionDifferent:
		return "I'm experiencing different symptoms. Please provide a new recovery plan."
	}
	return ""
}

// stripLeadIn removes a leading condition lead-in and its separator.
func stripLeadIn(text string) string {
	for _, c := range []Condition{ConditionWorse, ConditionDifferent} {
		if rest, ok := strings.CutPrefix(text, c.LeadIn()); ok {
			return strings.TrimLeft(rest, "\n")
		}
	}
	return text
}

func (c Condition) message() string {
	if c == ConditionBetter {
		return "User reported feeling better"
	}
	return "User reported condition is " + string(c)
}

// ConditionUpdate is the persisted record of a condition report.
type ConditionUpdate struct {
	UserID    string    `json:"userId"`
	Condition Condition `json:"condition"`
	Day       int       `json:"day"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"-"`
}

// Snapshot is the most recent persisted state of a user's recovery arc.
type Snapshot struct {
	Day     int
	Plan    DayPlan
	Profile *HealthProfile
	History []DayPlan
}
