package database

import (
	"context"
	"fmt"
	"time"
)

// User is an owner of meeting jobs, created on first reference.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	CreatedAt   time.Time
}

// GetOrCreateUser looks up a user by username, inserting a row on first
// reference. The insert races benignly: ON CONFLICT falls through to the
// existing row.
func (db *DB) GetOrCreateUser(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (username, display_name)
		VALUES ($1, $1)
		ON CONFLICT (username) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, username, display_name, created_at
	`, username).Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	return u, nil
}
