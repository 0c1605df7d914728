package recovery

import (
	"sync"
	"time"
)

// State is the lifecycle state of a Session.
type State string

const (
	// StateCollecting means there is no active plan and the session waits for an intake.
	StateCollecting State = "collecting"
	// StateActive means the session has a plan for its current day.
	StateActive State = "active"
)

// Session is one user's in-memory recovery state. All fields are guarded by
// mu; the Manager never holds mu across a model or store call.
type Session struct {
	mu sync.Mutex

	userID      string
	state       State
	currentDay  int
	currentPlan *DayPlan
	history     []DayPlan
	profile     *HealthProfile

	// Set by a "worse"/"different" report and applied to the next intake.
	pendingLeadIn string
	draftSymptoms string

	generating bool
	// epoch changes on every reset so in-flight generations can tell their
	// result is stale.
	epoch uint64

	advanceTimer *time.Timer
	advanceToken uint64
}

// NewSession creates a Collecting session for a user.
func NewSession(userID string) *Session {
	return &Session{userID: userID, state: StateCollecting}
}

func (s *Session) UserID() string {
	return s.userID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) CurrentDay() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentDay
}

// CurrentPlan returns a copy of the active plan.
func (s *Session) CurrentPlan() (DayPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentPlan == nil {
		return DayPlan{}, false
	}
	return s.currentPlan.clone(), true
}

// History returns a copy of the per-day history, ordered by day.
func (s *Session) History() []DayPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clonePlans(s.history)
}

// Profile returns a copy of the profile that produced the current arc.
func (s *Session) Profile() (HealthProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return HealthProfile{}, false
	}
	return *s.profile, true
}

// DraftSymptoms is the text a front end should pre-fill into the symptoms
// field of the next intake form.
func (s *Session) DraftSymptoms() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftSymptoms
}

// AdvancePending reports whether an auto-advance is scheduled.
func (s *Session) AdvancePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceTimer != nil
}

// resetLocked moves the session to Collecting and invalidates in-flight work.
func (s *Session) resetLocked() {
	s.stopAdvanceLocked()
	s.epoch++
	s.state = StateCollecting
	s.currentDay = 0
	s.currentPlan = nil
	s.history = nil
	s.profile = nil
}

func (s *Session) activateLocked(profile *HealthProfile, plan DayPlan, history []DayPlan) {
	s.state = StateActive
	s.profile = profile
	s.currentDay = plan.Day
	p := plan.clone()
	s.currentPlan = &p
	s.history = history
}

func (s *Session) stopAdvanceLocked() {
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
	s.advanceToken++
}

func clonePlans(plans []DayPlan) []DayPlan {
	if plans == nil {
		return nil
	}
	out := make([]DayPlan, len(plans))
	for i, p := range plans {
		out[i] = p.clone()
	}
	return out
}

// upsertDay replaces the entry for plan.Day or inserts it in day order.
func upsertDay(history []DayPlan, plan DayPlan) []DayPlan {
	plan = plan.clone()
	for i := range history {
		if history[i].Day == plan.Day {
			history[i] = plan
			return history
		}
		if history[i].Day > plan.Day {
			history = append(history, DayPlan{})
			copy(history[i+1:], history[i:])
			history[i] = plan
			return history
		}
	}
	return append(history, plan)
}
