// Package speakers reads the enrolled voice-profile table. The diarization
// worker hands these profiles to the external diarizer so known voices keep
// their enrolled names; writes happen through the separate speaker-management
// surface, never here.
package speakers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/snarg/meeting-engine/internal/database"
)

// Profile is one enrolled speaker: a display name and its reference voice
// embedding.
type Profile struct {
	ID        int64     `json:"-"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
}

// Store reads speaker profiles.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Profiles returns every enrolled speaker profile.
func (s *Store) Profiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id, name, embedding FROM speaker_profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list speaker profiles: %w", err)
	}

	profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Profile, error) {
		var (
			p   Profile
			vec pgvector.Vector
		)
		if err := row.Scan(&p.ID, &p.Name, &vec); err != nil {
			return Profile{}, err
		}
		p.Embedding = vec.Slice()
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan speaker profiles: %w", err)
	}
	return profiles, nil
}
