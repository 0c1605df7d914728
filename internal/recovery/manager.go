package recovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/notify"
	"ai-health-navigator/internal/shared"
)

const (
	defaultAdvanceDelay     = 2 * time.Second
	defaultAdvanceTimeout   = 2 * time.Minute
	agentInitialPlan        = "InitialPlan"
	agentNextDayPlan        = "NextDayPlan"
	leadInSeparator         = "\n\n"
	symptomsRequiredMessage = "please describe your symptoms or health concerns"
)

// UsageRecorder stores token usage of model calls.
type UsageRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	// AdvanceDelay is how long a fully completed day is shown before the
	// next day is generated.
	AdvanceDelay time.Duration
	// AdvanceTimeout bounds the background generation started by the timer.
	AdvanceTimeout time.Duration
	Notifier       notify.Sink
	Usage          UsageRecorder
}

// Manager runs the recovery plan protocol over Sessions.
type Manager struct {
	repo           Repository
	textGen        llm.TextGenerator
	notifier       notify.Sink
	usage          UsageRecorder
	advanceDelay   time.Duration
	advanceTimeout time.Duration

	// stopped disables auto-advance once the process is shutting down.
	stopped atomic.Bool
}

// NewManager creates a new Manager.
func NewManager(repo Repository, textGen llm.TextGenerator, opts Options) *Manager {
	m := &Manager{
		repo:           repo,
		textGen:        textGen,
		notifier:       opts.Notifier,
		usage:          opts.Usage,
		advanceDelay:   opts.AdvanceDelay,
		advanceTimeout: opts.AdvanceTimeout,
	}
	if m.notifier == nil {
		m.notifier = notify.LogSink{}
	}
	if m.advanceDelay <= 0 {
		m.advanceDelay = defaultAdvanceDelay
	}
	if m.advanceTimeout <= 0 {
		m.advanceTimeout = defaultAdvanceTimeout
	}
	return m
}

// GenerateInitialPlan starts a new recovery arc from an intake form: the
// profile is saved, day 1 is generated, and the session becomes Active.
//
// A failed profile save is returned as *shared.PersistenceError and a failed
// model call as *GenerationFailedError; malformed model output falls back to
// DefaultTasks.
func (m *Manager) GenerateInitialPlan(ctx context.Context, s *Session, profile HealthProfile) (DayPlan, error) {
	profile.Symptoms = strings.TrimSpace(profile.Symptoms)
	if profile.Symptoms == "" {
		return DayPlan{}, &shared.ValidationError{Field: "symptoms", Message: symptomsRequiredMessage}
	}

	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return DayPlan{}, ErrGenerationInProgress
	}
	s.generating = true
	s.stopAdvanceLocked()
	epoch := s.epoch
	if leadIn := s.pendingLeadIn; leadIn != "" && !strings.HasPrefix(profile.Symptoms, leadIn) {
		profile.Symptoms = leadIn + leadInSeparator + profile.Symptoms
	}
	s.mu.Unlock()
	defer m.finishGeneration(s)

	profile.UserID = s.userID
	id, err := m.repo.SaveProfile(ctx, profile)
	if err != nil {
		return DayPlan{}, &shared.PersistenceError{Op: "save health profile", Err: err}
	}
	profile.ID = id

	prompt, err := buildInitialPrompt(profile)
	if err != nil {
		return DayPlan{}, fmt.Errorf("failed to build initial plan prompt: %w", err)
	}

	tasks, err := m.generateTasks(ctx, agentInitialPlan, prompt)
	if err != nil {
		return DayPlan{}, &GenerationFailedError{Day: 1, Err: err}
	}
	plan := DayPlan{Day: 1, Tasks: tasks, HealthProfileRef: id}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return DayPlan{}, fmt.Errorf("%w: session was reset during generation", ErrNoActivePlan)
	}
	s.stopAdvanceLocked()
	s.epoch++
	s.activateLocked(&profile, plan, []DayPlan{plan.clone()})
	s.pendingLeadIn = ""
	s.draftSymptoms = ""
	s.mu.Unlock()

	m.savePlan(ctx, s.userID, plan)
	return plan.clone(), nil
}

// GenerateNextDayPlan moves an Active session to day, which must be
// currentDay+1. A plan already persisted for that day and profile is reused
// as-is; otherwise a new one is generated from the profile and the
// completion history.
func (m *Manager) GenerateNextDayPlan(ctx context.Context, s *Session, day int) (DayPlan, error) {
	s.mu.Lock()
	if s.state != StateActive || s.currentPlan == nil {
		s.mu.Unlock()
		return DayPlan{}, ErrNoActivePlan
	}
	if s.profile == nil {
		s.mu.Unlock()
		return DayPlan{}, fmt.Errorf("%w: health profile is unavailable", ErrNoActivePlan)
	}
	if day != s.currentDay+1 {
		expected := s.currentDay + 1
		s.mu.Unlock()
		return DayPlan{}, fmt.Errorf("%w: expected day %d, got %d", ErrInvalidDay, expected, day)
	}
	if s.generating {
		s.mu.Unlock()
		return DayPlan{}, ErrGenerationInProgress
	}
	s.generating = true
	s.stopAdvanceLocked()
	profile := *s.profile
	history := clonePlans(s.history)
	epoch := s.epoch
	s.mu.Unlock()
	defer m.finishGeneration(s)

	plan, found, err := m.findPlan(ctx, s.userID, day, profile.ID)
	if err != nil {
		log.Printf("Warning: failed to look up existing day %d plan for user %s: %v", day, s.userID, err)
	}

	if !found {
		prompt, err := buildNextDayPrompt(day, profile, history)
		if err != nil {
			return DayPlan{}, fmt.Errorf("failed to build next day prompt: %w", err)
		}
		tasks, err := m.generateTasks(ctx, agentNextDayPlan, prompt)
		if err != nil {
			return DayPlan{}, &GenerationFailedError{Day: day, Err: err}
		}
		plan = DayPlan{Day: day, Tasks: tasks, HealthProfileRef: profile.ID}
	}

	s.mu.Lock()
	if s.epoch != epoch || s.currentDay != day-1 {
		s.mu.Unlock()
		return DayPlan{}, fmt.Errorf("%w: session was reset during generation", ErrNoActivePlan)
	}
	s.epoch++
	s.activateLocked(s.profile, plan, upsertDay(s.history, plan))
	s.mu.Unlock()

	if !found {
		m.savePlan(ctx, s.userID, plan)
	}
	return plan.clone(), nil
}

// ToggleTask flips the completion flag of a task in the current plan and
// saves the plan. Unknown ids are ignored. When the toggle completes the
// plan, the next day is generated after the advance delay.
func (m *Manager) ToggleTask(ctx context.Context, s *Session, taskID int) (DayPlan, error) {
	s.mu.Lock()
	if s.currentPlan == nil {
		s.mu.Unlock()
		return DayPlan{}, ErrNoActivePlan
	}

	idx := -1
	for i, t := range s.currentPlan.Tasks {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		plan := s.currentPlan.clone()
		s.mu.Unlock()
		log.Printf("Toggle ignored: task %d not found in day %d plan for user %s", taskID, plan.Day, s.userID)
		return plan, nil
	}

	task := &s.currentPlan.Tasks[idx]
	task.Completed = !task.Completed
	s.history = upsertDay(s.history, *s.currentPlan)
	plan := s.currentPlan.clone()
	if plan.AllCompleted() {
		m.scheduleAdvanceLocked(s)
	} else {
		s.stopAdvanceLocked()
	}
	s.mu.Unlock()

	m.savePlan(ctx, s.userID, plan)
	return plan, nil
}

// ReportCondition records the user's condition and returns the session to
// Collecting. For "worse" and "different" the next intake's symptoms are
// prefixed with a lead-in sentence; the model is not called here.
func (m *Manager) ReportCondition(ctx context.Context, s *Session, condition Condition) error {
	if !condition.Valid() {
		return &shared.ValidationError{Field: "condition", Message: fmt.Sprintf("unknown condition %q", condition)}
	}

	s.mu.Lock()
	day := s.currentDay
	previous := stripLeadIn(s.draftSymptoms)
	if s.profile != nil {
		previous = s.profile.Symptoms
	}
	s.resetLocked()
	if leadIn := condition.LeadIn(); leadIn != "" {
		s.pendingLeadIn = leadIn
		s.draftSymptoms = leadIn + leadInSeparator + previous
	} else {
		s.pendingLeadIn = ""
		s.draftSymptoms = ""
	}
	s.mu.Unlock()

	update := ConditionUpdate{
		UserID:    s.userID,
		Condition: condition,
		Day:       day,
		Message:   condition.message(),
	}
	if err := m.repo.SaveConditionUpdate(ctx, update); err != nil {
		log.Printf("Warning: failed to save condition update for user %s: %v", s.userID, err)
	}

	if condition == ConditionBetter {
		m.notifier.Notify(ctx, notify.Notice{
			UserID:  s.userID,
			Level:   notify.LevelSuccess,
			Title:   "Condition Updated",
			Message: "Great to hear you're feeling better! To-do list will be stopped.",
		})
	} else {
		m.notifier.Notify(ctx, notify.Notice{
			UserID:  s.userID,
			Level:   notify.LevelInfo,
			Title:   "Update Required",
			Message: "Please update your health information to get a new recovery plan.",
		})
	}
	return nil
}

// LoadMostRecent rebuilds the latest persisted state of a user's arc: the
// most recently saved plan, its profile and the per-day history of that arc.
func (m *Manager) LoadMostRecent(ctx context.Context, userID string) (*Snapshot, error) {
	records, err := m.repo.ListPlans(ctx, userID, 0)
	if err != nil {
		return nil, &shared.PersistenceError{Op: "load recovery plans", Err: err}
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	latest := records[latestRecord(records)]
	snap := &Snapshot{
		Day:     latest.Plan.Day,
		Plan:    latest.Plan.clone(),
		History: collapseHistory(records, latest.Plan.HealthProfileRef),
	}

	if ref := latest.Plan.HealthProfileRef; ref != "" {
		profile, err := m.repo.GetProfile(ctx, ref)
		if err != nil {
			log.Printf("Warning: failed to load health profile %s for user %s: %v", ref, userID, err)
		} else {
			snap.Profile = profile
		}
	}
	return snap, nil
}

// Resume builds a session for userID from its persisted state. Users without
// plans get a Collecting session.
func (m *Manager) Resume(ctx context.Context, userID string) (*Session, error) {
	s := NewSession(userID)
	snap, err := m.LoadMostRecent(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.activateLocked(snap.Profile, snap.Plan, snap.History)
	s.mu.Unlock()
	return s, nil
}

// CancelPendingAdvance stops a scheduled auto-advance, e.g. when the user
// leaves the page.
func (m *Manager) CancelPendingAdvance(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAdvanceLocked()
}

// StopAdvancing prevents new auto-advances from being scheduled or run.
// Already scheduled timers still need CancelPendingAdvance.
func (m *Manager) StopAdvancing() {
	m.stopped.Store(true)
}

func (m *Manager) scheduleAdvanceLocked(s *Session) {
	if s.advanceTimer != nil || m.stopped.Load() {
		return
	}
	s.advanceToken++
	token := s.advanceToken
	day := s.currentDay + 1
	s.advanceTimer = time.AfterFunc(m.advanceDelay, func() {
		m.runAdvance(s, day, token)
	})
}

func (m *Manager) runAdvance(s *Session, day int, token uint64) {
	s.mu.Lock()
	if s.advanceToken != token || s.advanceTimer == nil || m.stopped.Load() {
		s.mu.Unlock()
		return
	}
	s.advanceTimer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.advanceTimeout)
	defer cancel()

	if _, err := m.GenerateNextDayPlan(ctx, s, day); err != nil {
		if errors.Is(err, ErrGenerationInProgress) || errors.Is(err, ErrInvalidDay) {
			return
		}
		log.Printf("Error loading day %d for user %s: %v", day, s.userID, err)
		m.notifier.Notify(ctx, notify.Notice{
			UserID:  s.userID,
			Level:   notify.LevelError,
			Title:   "Error",
			Message: "Failed to load next day. Please try again.",
		})
		return
	}

	m.notifier.Notify(ctx, notify.Notice{
		UserID:  s.userID,
		Level:   notify.LevelSuccess,
		Title:   "New Day",
		Message: fmt.Sprintf("Day %d plan loaded!", day),
	})
}

func (m *Manager) finishGeneration(s *Session) {
	s.mu.Lock()
	s.generating = false
	s.mu.Unlock()
}

func (m *Manager) generateTasks(ctx context.Context, agent, prompt string) ([]Task, error) {
	start := time.Now()
	resp, err := m.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	if m.usage != nil {
		meta := shared.AgentMeta{AgentName: agent, Usage: resp.Usage, Latency: time.Since(start)}
		if err := m.usage.RecordMeta(meta); err != nil {
			log.Printf("Warning: failed to record metrics for %s: %v", agent, err)
		}
	}
	return ParseTasks(resp.Content), nil
}

// findPlan returns the latest persisted plan for (userID, day) belonging to
// the given profile.
func (m *Manager) findPlan(ctx context.Context, userID string, day int, profileID string) (DayPlan, bool, error) {
	records, err := m.repo.ListPlans(ctx, userID, day)
	if err != nil {
		return DayPlan{}, false, err
	}

	var candidates []PlanRecord
	for _, rec := range records {
		if len(rec.Plan.Tasks) == 0 {
			continue
		}
		if profileID != "" && rec.Plan.HealthProfileRef != profileID {
			continue
		}
		candidates = append(candidates, rec)
	}
	if len(candidates) == 0 {
		return DayPlan{}, false, nil
	}
	return candidates[latestRecord(candidates)].Plan.clone(), true, nil
}

// savePlan persists a plan version. Failures are logged and swallowed so
// the in-memory plan stays usable.
func (m *Manager) savePlan(ctx context.Context, userID string, plan DayPlan) {
	if err := m.repo.SavePlan(ctx, userID, plan); err != nil {
		log.Printf("Warning: failed to save day %d plan for user %s: %v", plan.Day, userID, err)
	}
}

// collapseHistory keeps the latest version of each day belonging to profileRef,
// ordered by day.
func collapseHistory(records []PlanRecord, profileRef string) []DayPlan {
	latestByDay := make(map[int]PlanRecord)
	for _, rec := range records {
		if rec.Plan.HealthProfileRef != profileRef {
			continue
		}
		if prev, ok := latestByDay[rec.Plan.Day]; !ok || !rec.Timestamp.Before(prev.Timestamp) {
			latestByDay[rec.Plan.Day] = rec
		}
	}

	history := make([]DayPlan, 0, len(latestByDay))
	for _, rec := range latestByDay {
		history = append(history, rec.Plan.clone())
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Day < history[j].Day })
	return history
}
