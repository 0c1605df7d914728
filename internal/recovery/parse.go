package recovery

import (
	"log"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const placeholderTaskText = "Complete this task"

// DefaultTasks returns the fixed plan used when the model's reply cannot be
// turned into tasks.
func DefaultTasks() []Task {
	return []Task{
		{ID: 1, Text: "Take a 20-minute walk in the morning", Category: CategoryExercise},
		{ID: 2, Text: "Drink at least 8 glasses of water", Category: CategoryDiet},
		{ID: 3, Text: "Eat a balanced meal with fruits and vegetables", Category: CategoryDiet},
		{ID: 4, Text: "Take 15 minutes of rest in the afternoon", Category: CategoryRest},
		{ID: 5, Text: "Practice deep breathing exercises for 10 minutes", Category: CategoryExercise},
		{ID: 6, Text: "Get 7-8 hours of sleep tonight", Category: CategoryRest},
	}
}

// ParseTasks extracts a task list from free-form model output. It never
// fails: prose around the array is ignored, and output that is not a
// non-empty JSON array yields DefaultTasks.
func ParseTasks(raw string) []Task {
	candidate := extractArray(raw)
	if !gjson.Valid(candidate) {
		log.Printf("Warning: model reply is not valid JSON, using default tasks")
		return DefaultTasks()
	}

	parsed := gjson.Parse(candidate)
	if !parsed.IsArray() {
		return DefaultTasks()
	}
	items := parsed.Array()
	if len(items) == 0 {
		return DefaultTasks()
	}

	tasks := make([]Task, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	maxID := 0
	for i, item := range items {
		tasks = append(tasks, normalizeTask(item, i+1))
		if id := tasks[i].ID; id > maxID {
			maxID = id
		}
	}

	// Duplicate ids would make toggling ambiguous; later duplicates get fresh ids.
	for i := range tasks {
		if _, dup := seen[tasks[i].ID]; dup {
			maxID++
			tasks[i].ID = maxID
		}
		seen[tasks[i].ID] = struct{}{}
	}
	return tasks
}

// extractArray returns the span from the first '[' to the last ']' of raw,
// or the whole trimmed input when there is no such span.
func extractArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return strings.TrimSpace(raw)
	}
	return raw[start : end+1]
}

func normalizeTask(item gjson.Result, position int) Task {
	task := Task{
		ID:       position,
		Text:     placeholderTaskText,
		Category: CategoryOther,
	}
	if !item.IsObject() {
		return task
	}

	if id := taskID(item.Get("id")); id > 0 {
		task.ID = id
	}
	if text := strings.TrimSpace(item.Get("text").String()); text != "" {
		task.Text = text
	}
	if c := Category(strings.ToLower(strings.TrimSpace(item.Get("category").String()))); c.Valid() {
		task.Category = c
	}
	task.Completed = item.Get("completed").Bool()
	return task
}

func taskID(v gjson.Result) int {
	switch v.Type {
	case gjson.Number:
		if n := v.Int(); n > 0 {
			return int(n)
		}
	case gjson.String:
		if n, err := strconv.Atoi(strings.TrimSpace(v.Str)); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
