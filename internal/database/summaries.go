package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Summary kinds. "speaker" requires a diarized transcript; the two templated
// kinds get a context header prefixed to their source text.
const (
	SummaryTopic       = "topic"
	SummarySpeaker     = "speaker"
	SummaryActionItems = "action_items"
	SummaryDecisionLog = "decision_log"
	SummaryBBHHDQT     = "summary_bbh_hdqt"
	SummaryNghiQuyet   = "summary_nghi_quyet"
)

// SummaryTypes lists every valid summary kind.
var SummaryTypes = []string{
	SummaryTopic, SummarySpeaker, SummaryActionItems,
	SummaryDecisionLog, SummaryBBHHDQT, SummaryNghiQuyet,
}

// ValidSummaryType reports whether t names a known summary kind.
func ValidSummaryType(t string) bool {
	for _, s := range SummaryTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Summary is one stored LLM-produced artifact of a given kind.
type Summary struct {
	ID          int64
	JobID       int64
	SummaryType string
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UpsertSummary stores the summary content for (job, type),
// create-if-absent-update-otherwise.
func (db *DB) UpsertSummary(ctx context.Context, jobID int64, summaryType, content string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO summaries (job_id, summary_type, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, summary_type) DO UPDATE
		SET content = EXCLUDED.content, updated_at = now()
	`, jobID, summaryType, content)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// GetSummary fetches the summary of one kind, or ErrNotFound.
func (db *DB) GetSummary(ctx context.Context, jobID int64, summaryType string) (*Summary, error) {
	s := &Summary{}
	err := db.Pool.QueryRow(ctx, `
		SELECT id, job_id, summary_type, content, created_at, updated_at
		FROM summaries WHERE job_id = $1 AND summary_type = $2
	`, jobID, summaryType).Scan(&s.ID, &s.JobID, &s.SummaryType, &s.Content, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return s, nil
}

// ListSummaries returns every stored summary for a job, oldest first.
func (db *DB) ListSummaries(ctx context.Context, jobID int64) ([]Summary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, job_id, summary_type, content, created_at, updated_at
		FROM summaries WHERE job_id = $1 ORDER BY created_at
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.JobID, &s.SummaryType, &s.Content, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
