package recovery

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed prompts/initial_plan.md
var initialPlanPrompt string

//go:embed prompts/next_day.md
var nextDayPrompt string

var (
	initialPlanTmpl = template.Must(template.New("initial_plan").Parse(initialPlanPrompt))
	nextDayTmpl     = template.Must(template.New("next_day").Parse(nextDayPrompt))
)

// DayProgress is the completion count of one day, as reported to the model.
type DayProgress struct {
	Day       int
	Completed int
	Total     int
}

type nextDayPromptData struct {
	Day     int
	Profile HealthProfile
	History []DayProgress
}

func buildInitialPrompt(profile HealthProfile) (string, error) {
	var buf bytes.Buffer
	if err := initialPlanTmpl.Execute(&buf, profile); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildNextDayPrompt(day int, profile HealthProfile, history []DayPlan) (string, error) {
	data := nextDayPromptData{Day: day, Profile: profile}
	for _, p := range history {
		data.History = append(data.History, DayProgress{
			Day:       p.Day,
			Completed: p.CompletedCount(),
			Total:     len(p.Tasks),
		})
	}

	var buf bytes.Buffer
	if err := nextDayTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
