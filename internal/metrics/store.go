package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"ai-health-navigator/internal/shared"
)

// ExecutionMetric records metadata for a single model call.
type ExecutionMetric struct {
	AgentName        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// Store handles persistence of metrics to the execution_metrics table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record saves a metric to the database.
func (s *Store) Record(m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now().UTC()
	}

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO execution_metrics (agent_name, model, prompt_tokens, completion_tokens, latency_ms, recorded_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.AgentName, m.Model, int64(m.PromptTokens), int64(m.CompletionTokens), m.LatencyMS, ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record metric for %s: %w", m.AgentName, err)
	}
	return nil
}

// RecordMeta records metrics directly from shared.AgentMeta.
func (s *Store) RecordMeta(meta shared.AgentMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(MapUsage(meta.AgentName, meta.Usage, meta.Latency))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
}

// GetDailyUsage retrieves usage for the last N days, newest day first.
// Aggregation happens here rather than in SQL so the query is the same on
// SQLite and PostgreSQL.
func (s *Store) GetDailyUsage(days int) ([]DailyUsage, error) {
	since := s.now().UTC().AddDate(0, 0, -days).Unix()
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT prompt_tokens, completion_tokens, recorded_at FROM execution_metrics WHERE recorded_at >= $1`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	byDay := make(map[string]*DailyUsage)
	for rows.Next() {
		var prompt, completion, recordedAt int64
		if err := rows.Scan(&prompt, &completion, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		day := time.Unix(recordedAt, 0).UTC().Format("2006-01-02")
		u, ok := byDay[day]
		if !ok {
			u = &DailyUsage{Date: day}
			byDay[day] = u
		}
		u.TotalPrompt += int(prompt)
		u.TotalCompletion += int(completion)
		u.TotalExecution++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage rows: %w", err)
	}

	results := make([]DailyUsage, 0, len(byDay))
	for _, u := range byDay {
		results = append(results, *u)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := s.now().UTC().AddDate(0, 0, -olderThanDays).Unix()
	res, err := s.db.ExecContext(context.Background(),
		`DELETE FROM execution_metrics WHERE recorded_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up metrics: %w", err)
	}
	return res.RowsAffected()
}

// MapUsage helper to convert shared.TokenUsage to ExecutionMetric.
func MapUsage(agentName string, usage shared.TokenUsage, latency time.Duration) ExecutionMetric {
	return ExecutionMetric{
		AgentName:        agentName,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}
