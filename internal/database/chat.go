package database

import (
	"context"
	"fmt"
	"time"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatEntry is one turn in a job's append-only chat log.
type ChatEntry struct {
	ID        int64
	JobID     int64
	Role      string
	Message   string
	CreatedAt time.Time
}

// AppendChatEntry appends one turn to the chat log.
func (db *DB) AppendChatEntry(ctx context.Context, jobID int64, role, message string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO chat_entries (job_id, role, message) VALUES ($1, $2, $3)
	`, jobID, role, message)
	if err != nil {
		return fmt.Errorf("append chat entry: %w", err)
	}
	return nil
}

// RecentChatEntries returns the last limit entries in chronological order.
func (db *DB) RecentChatEntries(ctx context.Context, jobID int64, limit int) ([]ChatEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, job_id, role, message, created_at FROM (
			SELECT id, job_id, role, message, created_at
			FROM chat_entries WHERE job_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2
		) recent ORDER BY created_at, id
	`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat entries: %w", err)
	}
	defer rows.Close()

	var out []ChatEntry
	for rows.Next() {
		var e ChatEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Role, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
