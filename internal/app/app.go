package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"ai-health-navigator/internal/config"
	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/metrics"
	"ai-health-navigator/internal/notify"
	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/storage"
	"ai-health-navigator/internal/triage"
)

// App holds the application's dependencies.
type App struct {
	cfg          *config.Config
	store        storage.DocumentStore
	metricsStore *metrics.Store
	registry     *recovery.Registry
	triage       *triage.Service
	out          io.Writer
}

// NewApp creates and initializes a new App instance. metricsStore may be nil
// for backends without a SQL database.
func NewApp(
	cfg *config.Config,
	textGen llm.TextGenerator,
	store storage.DocumentStore,
	metricsStore *metrics.Store,
	notifier notify.Sink,
) *App {
	var usage recovery.UsageRecorder
	var triageUsage triage.UsageRecorder
	if metricsStore != nil {
		usage = metricsStore
		triageUsage = metricsStore
	}

	manager := recovery.NewManager(recovery.NewDocumentRepository(store), textGen, recovery.Options{
		AdvanceDelay: cfg.AutoAdvanceDelay,
		Notifier:     notifier,
		Usage:        usage,
	})

	return &App{
		cfg:          cfg,
		store:        store,
		metricsStore: metricsStore,
		registry:     recovery.NewRegistry(manager),
		triage:       triage.NewService(store, textGen, triageUsage),
		out:          os.Stdout,
	}
}

// SetOutput redirects the CLI output.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

func (a *App) Registry() *recovery.Registry {
	return a.registry
}

func (a *App) Triage() *triage.Service {
	return a.triage
}

// Metrics returns the metrics store, or nil when the backend has none.
func (a *App) Metrics() *metrics.Store {
	return a.metricsStore
}

// StartPlan submits an intake form and prints day 1.
func (a *App) StartPlan(ctx context.Context, userID string, profile recovery.HealthProfile) error {
	s, err := a.registry.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	fmt.Fprintln(a.out, "Creating your personalized recovery plan...")
	plan, err := a.registry.Manager().GenerateInitialPlan(ctx, s, profile)
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	fmt.Fprintln(a.out, "Recovery plan created!")
	writePlan(a.out, plan)
	return nil
}

// PrintStatus prints the current plan and the per-day progress.
func (a *App) PrintStatus(ctx context.Context, userID string) error {
	s, err := a.registry.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	plan, ok := s.CurrentPlan()
	if !ok {
		fmt.Fprintln(a.out, "No active recovery plan. Start one with the plan command.")
		if draft := s.DraftSymptoms(); draft != "" {
			fmt.Fprintf(a.out, "Suggested symptoms:\n%s\n", draft)
		}
		return nil
	}

	writePlan(a.out, plan)
	fmt.Fprintln(a.out, "\n=== PROGRESS ===")
	for _, day := range s.History() {
		fmt.Fprintf(a.out, "Day %d: %d/%d tasks completed\n", day.Day, day.CompletedCount(), len(day.Tasks))
	}
	return nil
}

// ToggleTask flips a task. The CLI exits right after, so a pending
// auto-advance is cancelled and the user is told to run next instead.
func (a *App) ToggleTask(ctx context.Context, userID string, taskID int) error {
	s, err := a.registry.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	manager := a.registry.Manager()
	plan, err := manager.ToggleTask(ctx, s, taskID)
	if err != nil {
		return fmt.Errorf("failed to toggle task %d: %w", taskID, err)
	}
	writePlan(a.out, plan)

	if s.AdvancePending() {
		manager.CancelPendingAdvance(s)
		fmt.Fprintf(a.out, "\nAll tasks completed! Run `next` to load Day %d.\n", plan.Day+1)
	}
	return nil
}

// NextDay loads the day after the current one.
func (a *App) NextDay(ctx context.Context, userID string) error {
	s, err := a.registry.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	day := s.CurrentDay() + 1
	fmt.Fprintf(a.out, "Loading Day %d...\n", day)
	plan, err := a.registry.Manager().GenerateNextDayPlan(ctx, s, day)
	if err != nil {
		return fmt.Errorf("failed to load day %d: %w", day, err)
	}
	writePlan(a.out, plan)
	return nil
}

// ReportCondition records how the user feels and ends the current plan.
func (a *App) ReportCondition(ctx context.Context, userID string, condition recovery.Condition) error {
	s, err := a.registry.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if err := a.registry.Manager().ReportCondition(ctx, s, condition); err != nil {
		return err
	}
	if draft := s.DraftSymptoms(); draft != "" {
		fmt.Fprintf(a.out, "Start a new plan with these symptoms:\n%s\n", draft)
	}
	return nil
}

// CheckSymptoms prints triage advice for the given symptoms.
func (a *App) CheckSymptoms(ctx context.Context, userID, symptoms string) error {
	fmt.Fprintln(a.out, "Analyzing symptoms with AI...")
	advice, err := a.triage.CheckSymptoms(ctx, userID, symptoms)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, advice.Text)
	return nil
}

// AnalyzeTranscript prints the stress reading of a spoken transcript.
func (a *App) AnalyzeTranscript(ctx context.Context, userID, transcript string) error {
	fmt.Fprintln(a.out, "Analyzing voice with AI...")
	analysis, err := a.triage.AnalyzeTranscript(ctx, userID, transcript)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, analysis.Text)
	return nil
}

// SubmitCheckin stores a mental health check-in.
func (a *App) SubmitCheckin(ctx context.Context, checkin triage.Checkin) error {
	if err := a.triage.SubmitCheckin(ctx, checkin); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Check-in saved. Take care of yourself.")
	return nil
}

// PrintMetrics prints token usage for the last days.
func (a *App) PrintMetrics(days int) error {
	if a.metricsStore == nil {
		return fmt.Errorf("metrics need the %s or %s store backend", config.BackendSQLite, config.BackendPostgres)
	}
	usage, err := a.metricsStore.GetDailyUsage(days)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "=== LLM USAGE ===")
	if len(usage) == 0 {
		fmt.Fprintln(a.out, "No data yet")
	}
	for _, d := range usage {
		fmt.Fprintf(a.out, "%s: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
	}
	return nil
}

// CleanupMetrics removes metric records older than days.
func (a *App) CleanupMetrics(days int) error {
	if a.metricsStore == nil {
		return fmt.Errorf("metrics need the %s or %s store backend", config.BackendSQLite, config.BackendPostgres)
	}
	affected, err := a.metricsStore.Cleanup(days)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Fprintf(a.out, "Successfully removed %d old metric records.\n", affected)
	return nil
}

func writePlan(w io.Writer, plan recovery.DayPlan) {
	fmt.Fprintf(w, "\n=== DAY %d RECOVERY PLAN ===\n", plan.Day)
	for _, t := range plan.Tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s] %2d. %s (%s)\n", mark, t.ID, t.Text, t.Category)
	}
	fmt.Fprintf(w, "Progress: %d/%d tasks completed\n", plan.CompletedCount(), len(plan.Tasks))
}

// ParseCondition maps user input such as "Worse" to a Condition.
func ParseCondition(raw string) (recovery.Condition, error) {
	c := recovery.Condition(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown condition %q (want better, worse or different)", raw)
	}
	return c, nil
}
