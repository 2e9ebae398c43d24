package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Segment is one timed span of transcript text. The transcription worker
// writes word-granular segments; a user edit replaces them with
// sentence-granular ones. Both shapes share these fields.
type Segment struct {
	ID    int     `json:"id"`
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// SpeakerSegment is one speaker turn of the diarized transcript.
type SpeakerSegment struct {
	ID      int     `json:"id"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start_time"`
	End     float64 `json:"end_time"`
}

// Transcript is the language-scoped transcript of one job.
type Transcript struct {
	ID        int64
	JobID     int64
	Language  string
	Segments  []Segment
	Edited    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DiarizedTranscript is the at-most-one speaker-separated transcript of a job.
type DiarizedTranscript struct {
	ID        int64
	JobID     int64
	Segments  []SpeakerSegment
	Edited    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertTranscript writes the transcript for (job, language), replacing any
// previous one. Reruns of the transcription task land here, which is what
// makes the task idempotent.
func (db *DB) UpsertTranscript(ctx context.Context, jobID int64, language string, segments []Segment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO transcripts (job_id, language, segments, edited)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (job_id, language) DO UPDATE
		SET segments = EXCLUDED.segments, edited = false, updated_at = now()
	`, jobID, language, data)
	if err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}
	return nil
}

// GetTranscript fetches the transcript for (job, language).
// Returns ErrNotFound when none exists.
func (db *DB) GetTranscript(ctx context.Context, jobID int64, language string) (*Transcript, error) {
	t := &Transcript{}
	var data []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT id, job_id, language, segments, edited, created_at, updated_at
		FROM transcripts WHERE job_id = $1 AND language = $2
	`, jobID, language).Scan(&t.ID, &t.JobID, &t.Language, &data, &t.Edited, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	if err := json.Unmarshal(data, &t.Segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return t, nil
}

// HasTranscript reports whether a transcript exists for (job, language).
func (db *DB) HasTranscript(ctx context.Context, jobID int64, language string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transcripts WHERE job_id = $1 AND language = $2)`,
		jobID, language).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has transcript: %w", err)
	}
	return exists, nil
}

// ReplaceTranscriptSegments overwrites the segments of the active-language
// transcript with user edits, marking it edited, and clears every derived
// artifact in the same transaction: the diarized transcript, all summaries,
// all chat entries. The status reverts to transcription_complete.
// Returns ErrNotFound if no transcript exists for (job, language).
func (db *DB) ReplaceTranscriptSegments(ctx context.Context, jobID int64, language string, segments []Segment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE transcripts SET segments = $3, edited = true, updated_at = now()
		WHERE job_id = $1 AND language = $2
	`, jobID, language, data)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM diarized_transcripts WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete diarized transcript: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM summaries WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete summaries: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chat_entries WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("delete chat entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE meeting_jobs SET status = $2, updated_at = now() WHERE id = $1
	`, jobID, StatusTranscriptionComplete); err != nil {
		return fmt.Errorf("revert status: %w", err)
	}

	return tx.Commit(ctx)
}

// ReplaceDiarizedTranscript writes the diarized transcript for a job,
// dropping any prior one (at most one exists per job).
func (db *DB) ReplaceDiarizedTranscript(ctx context.Context, jobID int64, segments []SpeakerSegment) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO diarized_transcripts (job_id, segments, edited)
		VALUES ($1, $2, false)
		ON CONFLICT (job_id) DO UPDATE
		SET segments = EXCLUDED.segments, edited = false, updated_at = now()
	`, jobID, data)
	if err != nil {
		return fmt.Errorf("replace diarized transcript: %w", err)
	}
	return nil
}

// GetDiarizedTranscript fetches the job's diarized transcript, or ErrNotFound.
func (db *DB) GetDiarizedTranscript(ctx context.Context, jobID int64) (*DiarizedTranscript, error) {
	dt := &DiarizedTranscript{}
	var data []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT id, job_id, segments, edited, created_at, updated_at
		FROM diarized_transcripts WHERE job_id = $1
	`, jobID).Scan(&dt.ID, &dt.JobID, &data, &dt.Edited, &dt.CreatedAt, &dt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get diarized transcript: %w", err)
	}
	if err := json.Unmarshal(data, &dt.Segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return dt, nil
}

// DeleteDiarizedTranscript drops the diarized transcript if present.
// Deleting an absent row is a no-op, not an error.
func (db *DB) DeleteDiarizedTranscript(ctx context.Context, jobID int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM diarized_transcripts WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete diarized transcript: %w", err)
	}
	return nil
}
