package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/triage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `👋 *AI Health Navigator*

/plan - start a recovery plan from your symptoms
/today - show today's to-do list
/next - load the next day
/better, /worse, /different - tell me how you feel
/check <symptoms> - quick triage advice
/voice <what you said> - stress check of a spoken transcript
/checkin <mood> <sleep hours> <stress> - mental health check-in

_This is not medical advice._`

const intakeHelpText = "Send your health information with /plan, one field per line:\n\n" +
	"`/plan\nsymptoms: mild headache\nage: 25\nweight: 70\nheight: 175\ngender: female\nhistory: none\nlifestyle: desk job`"

var categoryIcons = map[recovery.Category]string{
	recovery.CategoryExercise:   "🏃",
	recovery.CategoryDiet:       "🥗",
	recovery.CategoryMedication: "💊",
	recovery.CategoryRest:       "😴",
	recovery.CategoryOther:      "📌",
}

// parseIntake reads "key: value" lines into a profile. Lines without a known
// key are treated as symptoms, so a plain sentence works too.
func parseIntake(text string) recovery.HealthProfile {
	var profile recovery.HealthProfile
	var symptoms []string

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			symptoms = append(symptoms, line)
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "") {
		case "symptoms", "symptom":
			symptoms = append(symptoms, value)
		case "weight":
			profile.Weight = value
		case "height":
			profile.Height = value
		case "age":
			profile.Age = value
		case "gender":
			profile.Gender = value
		case "history", "medicalhistory":
			profile.MedicalHistory = value
		case "lifestyle":
			profile.Lifestyle = value
		default:
			symptoms = append(symptoms, line)
		}
	}

	profile.Symptoms = strings.Join(symptoms, "\n")
	return profile
}

func formatPlanMarkdown(plan recovery.DayPlan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Day %d Recovery Plan*\n", plan.Day))
	sb.WriteString(fmt.Sprintf("Progress: %d/%d tasks completed\n\n", plan.CompletedCount(), len(plan.Tasks)))

	for _, t := range plan.Tasks {
		mark := "⬜"
		if t.Completed {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s %s\n", mark, categoryIcons[t.Category], tgbotapi.EscapeText(tgbotapi.ModeMarkdown, t.Text)))
	}

	sb.WriteString("\n_Tap a task to mark it done. How are you feeling?_")
	return sb.String()
}

// planKeyboard has one toggle button per task and a row of condition buttons.
// Toggle data carries the day so presses on an old plan can be ignored.
func planKeyboard(plan recovery.DayPlan) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plan.Tasks)+1)
	for _, t := range plan.Tasks {
		mark := "⬜"
		if t.Completed {
			mark = "✅"
		}
		label := fmt.Sprintf("%s %s", mark, truncate(t.Text, maxButtonTextLen))
		data := fmt.Sprintf("toggle|%d|%d", plan.Day, t.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("😊 Better", "cond|"+string(recovery.ConditionBetter)),
		tgbotapi.NewInlineKeyboardButtonData("😟 Worse", "cond|"+string(recovery.ConditionWorse)),
		tgbotapi.NewInlineKeyboardButtonData("🔄 Different", "cond|"+string(recovery.ConditionDifferent)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// formatStressMarkdown renders a stress reading. Replies that did not keep the
// labelled format are shown as they are.
func formatStressMarkdown(a triage.StressAnalysis) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }
	if a.StressLevel == "" {
		return esc(a.Text)
	}

	var sb strings.Builder
	sb.WriteString("🎙️ *Voice Stress Check*\n\n")
	fmt.Fprintf(&sb, "• Stress: *%s*\n", esc(a.StressLevel))
	if a.Emotion != "" {
		fmt.Fprintf(&sb, "• Emotion: %s\n", esc(a.Emotion))
	}
	if a.Confidence > 0 {
		fmt.Fprintf(&sb, "• Confidence: %d%%\n", a.Confidence)
	}
	if a.Message != "" {
		fmt.Fprintf(&sb, "\n%s\n", esc(a.Message))
	}
	sb.WriteString("\n_This is not medical advice._")
	return sb.String()
}
