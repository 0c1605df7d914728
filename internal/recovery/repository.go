package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-health-navigator/internal/storage"
)

// Collections used by the recovery planner.
const (
	profilesCollection   = "health_todo_data"
	plansCollection      = "health_todo_lists"
	conditionsCollection = "health_todo_updates"
)

// PlanRecord is one persisted version of a DayPlan. Saving a plan always
// appends a new record; readers pick the latest Timestamp.
type PlanRecord struct {
	UserID    string
	Plan      DayPlan
	Timestamp time.Time
}

// Repository persists profiles, plans and condition reports.
type Repository interface {
	SaveProfile(ctx context.Context, profile HealthProfile) (string, error)
	GetProfile(ctx context.Context, id string) (*HealthProfile, error)
	SavePlan(ctx context.Context, userID string, plan DayPlan) error
	// ListPlans returns every saved version of the user's plans; day 0 means all days.
	ListPlans(ctx context.Context, userID string, day int) ([]PlanRecord, error)
	SaveConditionUpdate(ctx context.Context, update ConditionUpdate) error
}

// DocumentRepository maps recovery records onto a storage.DocumentStore.
type DocumentRepository struct {
	store storage.DocumentStore
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(store storage.DocumentStore) *DocumentRepository {
	return &DocumentRepository{store: store}
}

// planDocument is the persisted plan shape:
// { userId, day, todos, healthDataId, timestamp }.
type planDocument struct {
	UserID       string  `json:"userId"`
	Day          int     `json:"day"`
	Todos        []Task  `json:"todos"`
	HealthDataID *string `json:"healthDataId"`
}

func (r *DocumentRepository) SaveProfile(ctx context.Context, profile HealthProfile) (string, error) {
	data, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to marshal health profile: %w", err)
	}
	return r.store.Insert(ctx, profilesCollection, storage.Document{UserID: profile.UserID, Data: data})
}

func (r *DocumentRepository) GetProfile(ctx context.Context, id string) (*HealthProfile, error) {
	doc, err := r.store.Get(ctx, profilesCollection, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var profile HealthProfile
	if err := json.Unmarshal(doc.Data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal health profile %s: %w", id, err)
	}
	profile.ID = doc.ID
	return &profile, nil
}

func (r *DocumentRepository) SavePlan(ctx context.Context, userID string, plan DayPlan) error {
	doc := planDocument{UserID: userID, Day: plan.Day, Todos: plan.Tasks}
	if plan.HealthProfileRef != "" {
		ref := plan.HealthProfileRef
		doc.HealthDataID = &ref
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal day %d plan: %w", plan.Day, err)
	}
	_, err = r.store.Insert(ctx, plansCollection, storage.Document{UserID: userID, Day: plan.Day, Data: data})
	return err
}

func (r *DocumentRepository) ListPlans(ctx context.Context, userID string, day int) ([]PlanRecord, error) {
	docs, err := r.store.Query(ctx, plansCollection, storage.Filter{UserID: userID, Day: day})
	if err != nil {
		return nil, err
	}

	records := make([]PlanRecord, 0, len(docs))
	for _, doc := range docs {
		var pd planDocument
		if err := json.Unmarshal(doc.Data, &pd); err != nil {
			return nil, fmt.Errorf("failed to unmarshal plan %s: %w", doc.ID, err)
		}
		plan := DayPlan{Day: pd.Day, Tasks: pd.Todos}
		if pd.HealthDataID != nil {
			plan.HealthProfileRef = *pd.HealthDataID
		}
		records = append(records, PlanRecord{UserID: pd.UserID, Plan: plan, Timestamp: doc.CreatedAt})
	}
	return records, nil
}

func (r *DocumentRepository) SaveConditionUpdate(ctx context.Context, update ConditionUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal condition update: %w", err)
	}
	_, err = r.store.Insert(ctx, conditionsCollection, storage.Document{UserID: update.UserID, Day: update.Day, Data: data})
	return err
}

// latestRecord returns the index of the record with the greatest timestamp;
// ties go to the later record.
func latestRecord(records []PlanRecord) int {
	best := -1
	for i, rec := range records {
		if best < 0 || !rec.Timestamp.Before(records[best].Timestamp) {
			best = i
		}
	}
	return best
}
