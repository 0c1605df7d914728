package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ai-health-navigator/internal/app"
	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/metrics"
	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/shared"
	"ai-health-navigator/internal/triage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	requestTimeout   = 2 * time.Minute
	maxButtonTextLen = 40
)

// Sender is the part of tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot wraps the Telegram API and the recovery planner.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	app    *app.App
	cfg    *config.Config
}

// NewBot creates the bot and points the Telegram webhook at this server.
func NewBot(cfg *config.Config, api *tgbotapi.BotAPI, application *app.App) (*Bot, error) {
	log.Printf("Authorized on account %s", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return newBot(cfg, api, api, application), nil
}

func newBot(cfg *config.Config, api *tgbotapi.BotAPI, sender Sender, application *app.App) *Bot {
	return &Bot{api: api, sender: sender, app: application, cfg: cfg}
}

// RegisterHandlers registers the webhook handler with the given mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		if !b.isAllowed(update.CallbackQuery.From) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil || !b.isAllowed(update.Message.From) {
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) isAllowed(user *tgbotapi.User) bool {
	if user == nil {
		return false
	}
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if user.ID == id {
			return true
		}
	}
	log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", user.ID, user.UserName)
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	userID := strconv.FormatInt(msg.From.ID, 10)
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.reply(msg.Chat.ID, helpText)
	case "plan":
		b.handlePlan(ctx, msg.Chat.ID, userID, args)
	case "today":
		b.handleToday(ctx, msg.Chat.ID, userID)
	case "next":
		b.handleNext(ctx, msg.Chat.ID, userID)
	case "better", "worse", "different":
		b.handleCondition(ctx, msg.Chat.ID, userID, recovery.Condition(msg.Command()))
	case "check":
		b.handleCheck(ctx, msg.Chat.ID, userID, args)
	case "voice":
		b.handleVoice(ctx, msg.Chat.ID, userID, args)
	case "checkin":
		b.handleCheckin(ctx, msg.Chat.ID, userID, args)
	case "metrics":
		b.handleMetricsRequest(msg)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handlePlan(ctx context.Context, chatID int64, userID, args string) {
	profile := parseIntake(args)
	if profile.Symptoms == "" {
		b.reply(chatID, intakeHelpText)
		return
	}

	sentMsg, err := b.sender.Send(markdownMessage(chatID, "⏳ *Creating your personalized recovery plan...*"))
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	s, err := b.app.Registry().Get(ctx, userID)
	if err != nil {
		b.editText(chatID, sentMsg.MessageID, userMessage(err))
		return
	}

	plan, err := b.app.Registry().Manager().GenerateInitialPlan(ctx, s, profile)
	if err != nil {
		log.Printf("Error generating plan for user %s: %v", userID, err)
		b.editText(chatID, sentMsg.MessageID, userMessage(err))
		return
	}
	b.editPlan(chatID, sentMsg.MessageID, plan, "")
}

func (b *Bot) handleToday(ctx context.Context, chatID int64, userID string) {
	s, err := b.app.Registry().Get(ctx, userID)
	if err != nil {
		b.reply(chatID, userMessage(err))
		return
	}

	plan, ok := s.CurrentPlan()
	if !ok {
		text := "No active recovery plan. " + intakeHelpText
		if draft := s.DraftSymptoms(); draft != "" {
			text += "\n\nSuggested symptoms:\n" + tgbotapi.EscapeText(tgbotapi.ModeMarkdown, draft)
		}
		b.reply(chatID, text)
		return
	}
	b.sendPlan(chatID, plan)
}

func (b *Bot) handleNext(ctx context.Context, chatID int64, userID string) {
	s, err := b.app.Registry().Get(ctx, userID)
	if err != nil {
		b.reply(chatID, userMessage(err))
		return
	}

	day := s.CurrentDay() + 1
	sentMsg, err := b.sender.Send(markdownMessage(chatID, fmt.Sprintf("⏳ *Loading Day %d...*", day)))
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	plan, err := b.app.Registry().Manager().GenerateNextDayPlan(ctx, s, day)
	if err != nil {
		log.Printf("Error loading day %d for user %s: %v", day, userID, err)
		b.editText(chatID, sentMsg.MessageID, userMessage(err))
		return
	}
	b.editPlan(chatID, sentMsg.MessageID, plan, "")
}

func (b *Bot) handleCondition(ctx context.Context, chatID int64, userID string, condition recovery.Condition) {
	s, err := b.app.Registry().Get(ctx, userID)
	if err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	// The manager notifies the user through the Telegram sink.
	if err := b.app.Registry().Manager().ReportCondition(ctx, s, condition); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	if draft := s.DraftSymptoms(); draft != "" {
		b.reply(chatID, "Send /plan with your updated symptoms, for example:\n\n"+
			tgbotapi.EscapeText(tgbotapi.ModeMarkdown, "/plan symptoms: "+strings.ReplaceAll(draft, "\n\n", " ")))
	}
}

func (b *Bot) handleCheck(ctx context.Context, chatID int64, userID, symptoms string) {
	if strings.TrimSpace(symptoms) == "" {
		b.reply(chatID, "Please enter your symptoms, e.g. `/check headache and fever`")
		return
	}

	sentMsg, err := b.sender.Send(markdownMessage(chatID, "⏳ *Analyzing symptoms with AI...*"))
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	advice, err := b.app.Triage().CheckSymptoms(ctx, userID, symptoms)
	if err != nil {
		log.Printf("Error checking symptoms for user %s: %v", userID, err)
		b.editText(chatID, sentMsg.MessageID, "❌ Error connecting to AI service. Please try later.")
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, sentMsg.MessageID, advice.Text)
	b.sender.Send(edit)
}

func (b *Bot) handleVoice(ctx context.Context, chatID int64, userID, transcript string) {
	if strings.TrimSpace(transcript) == "" {
		b.reply(chatID, "Send the transcript of what you said, e.g. `/voice I have too many deadlines this week`")
		return
	}

	sentMsg, err := b.sender.Send(markdownMessage(chatID, "⏳ *Analyzing voice with AI...*"))
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	analysis, err := b.app.Triage().AnalyzeTranscript(ctx, userID, transcript)
	if err != nil {
		var vErr *shared.ValidationError
		if errors.As(err, &vErr) {
			b.editText(chatID, sentMsg.MessageID, userMessage(err))
			return
		}
		log.Printf("Error analyzing transcript for user %s: %v", userID, err)
		b.editText(chatID, sentMsg.MessageID, "❌ AI analysis failed. Please try later.")
		return
	}
	b.editText(chatID, sentMsg.MessageID, formatStressMarkdown(analysis))
}

func (b *Bot) handleCheckin(ctx context.Context, chatID int64, userID, args string) {
	checkin, err := parseCheckin(userID, args)
	if err != nil {
		b.reply(chatID, userMessage(err)+"\nUsage: `/checkin <mood> <sleep hours> <stress>`")
		return
	}
	if err := b.app.Triage().SubmitCheckin(ctx, checkin); err != nil {
		b.reply(chatID, userMessage(err))
		return
	}
	b.reply(chatID, "✅ Check-in saved. Take care of yourself 💙")
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	userID := strconv.FormatInt(query.From.ID, 10)
	parts := strings.Split(query.Data, "|")
	if query.Message == nil || len(parts) < 2 {
		return
	}
	chatID, messageID := query.Message.Chat.ID, query.Message.MessageID

	switch parts[0] {
	case "toggle":
		if len(parts) != 3 {
			return
		}
		day, err1 := strconv.Atoi(parts[1])
		taskID, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil {
			return
		}
		b.handleToggle(ctx, query.ID, chatID, messageID, userID, day, taskID)
	case "cond":
		b.sender.Request(tgbotapi.NewCallback(query.ID, ""))
		b.handleCondition(ctx, chatID, userID, recovery.Condition(parts[1]))
	}
}

func (b *Bot) handleToggle(ctx context.Context, queryID string, chatID int64, messageID int, userID string, day, taskID int) {
	s, err := b.app.Registry().Get(ctx, userID)
	if err != nil {
		b.sender.Request(tgbotapi.NewCallback(queryID, "Failed to load your plan"))
		return
	}
	if s.CurrentDay() != day {
		b.sender.Request(tgbotapi.NewCallback(queryID, "This plan is no longer active"))
		return
	}

	plan, err := b.app.Registry().Manager().ToggleTask(ctx, s, taskID)
	if err != nil {
		b.sender.Request(tgbotapi.NewCallback(queryID, "Failed to update task"))
		return
	}
	b.sender.Request(tgbotapi.NewCallback(queryID, ""))

	footer := ""
	if plan.AllCompleted() {
		footer = fmt.Sprintf("\n🎉 *All tasks completed!* Loading Day %d...", plan.Day+1)
	}
	b.editPlan(chatID, messageID, plan, footer)
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.sender.Send(tgbotapi.NewMessage(msg.Chat.ID, "⛔ Access Denied: Admin only."))
		return
	}
	b.handleMetricsCommand(msg.Chat.ID)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	store := b.app.Metrics()
	if store == nil {
		b.reply(chatID, "Metrics are not available with this store backend.")
		return
	}
	usage, err := store.GetDailyUsage(7)
	if err != nil {
		b.reply(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath), b.cfg.FileStorePath)

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))

	b.reply(chatID, sb.String())
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.sender.Send(markdownMessage(chatID, text)); err != nil {
		log.Printf("Failed to send message to %d: %v", chatID, err)
	}
}

func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.sender.Send(edit)
}

func (b *Bot) sendPlan(chatID int64, plan recovery.DayPlan) {
	msg := markdownMessage(chatID, formatPlanMarkdown(plan))
	msg.ReplyMarkup = planKeyboard(plan)
	if _, err := b.sender.Send(msg); err != nil {
		log.Printf("Failed to send plan to %d: %v", chatID, err)
	}
}

func (b *Bot) editPlan(chatID int64, messageID int, plan recovery.DayPlan, footer string) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, formatPlanMarkdown(plan)+footer, planKeyboard(plan))
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.sender.Send(edit); err != nil {
		log.Printf("Failed to edit plan message for %d: %v", chatID, err)
	}
}

func markdownMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return msg
}

// userMessage turns a planner error into a chat reply.
func userMessage(err error) string {
	var vErr *shared.ValidationError
	var gErr *recovery.GenerationFailedError
	switch {
	case errors.As(err, &vErr):
		return "⚠️ " + tgbotapi.EscapeText(tgbotapi.ModeMarkdown, vErr.Message)
	case errors.Is(err, recovery.ErrGenerationInProgress):
		return "⏳ A plan is already being generated. Please wait a moment."
	case errors.Is(err, recovery.ErrNoActivePlan), errors.Is(err, recovery.ErrInvalidDay):
		return "No active recovery plan. " + intakeHelpText
	case errors.As(err, &gErr):
		return "❌ Error generating plan. Please try again."
	default:
		return "❌ Something went wrong. Please try again later."
	}
}

func parseCheckin(userID, args string) (triage.Checkin, error) {
	fields := strings.Fields(args)
	checkin := triage.Checkin{UserID: userID}

	var rawSleep string
	switch len(fields) {
	case 0:
		return checkin, &shared.ValidationError{Field: "sleep", Message: "please enter valid sleep hours (0-24)"}
	case 1:
		rawSleep = fields[0]
	default:
		checkin.Mood = fields[0]
		rawSleep = fields[1]
		if len(fields) > 2 {
			checkin.Stress = strings.Join(fields[2:], " ")
		}
	}

	sleep, err := triage.ParseSleep(rawSleep)
	if err != nil {
		return checkin, err
	}
	checkin.Sleep = sleep
	return checkin, nil
}
