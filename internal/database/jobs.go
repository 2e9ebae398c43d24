package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Job statuses. Transitions are monotone along the happy path; any
// non-terminal status may move to failed.
const (
	StatusUploading             = "uploading"
	StatusAssembling            = "assembling"
	StatusTranscribing          = "transcribing"
	StatusTranscriptionComplete = "transcription_complete"
	StatusDiarizing             = "diarizing"
	StatusCompleted             = "completed"
	StatusFailed                = "failed"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate")
	// ErrNotOwner is returned when the requesting user does not own the job.
	ErrNotOwner = errors.New("not owner")
)

// Job is one meeting processing session, identified by its client-chosen
// request id.
type Job struct {
	ID               int64
	RequestID        string
	OwnerID          int64
	OriginalFilename string
	BBHName          string
	MeetingType      string
	MeetingHost      string
	MeetingMembers   []string
	Language         string
	Status           string
	UploadStartedAt  *time.Time
	UploadFinishedAt *time.Time
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// JobInfoUpdate is a partial metadata update; nil fields are left unchanged.
type JobInfoUpdate struct {
	BBHName     *string `json:"bbh_name"`
	MeetingType *string `json:"meeting_type"`
	MeetingHost *string `json:"meeting_host"`
}

const jobColumns = `id, request_id, owner_id, original_filename, bbh_name,
	meeting_type, meeting_host, meeting_members, language, status,
	upload_started_at, upload_finished_at, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	j := &Job{}
	var members []byte
	err := row.Scan(
		&j.ID, &j.RequestID, &j.OwnerID, &j.OriginalFilename, &j.BBHName,
		&j.MeetingType, &j.MeetingHost, &members, &j.Language, &j.Status,
		&j.UploadStartedAt, &j.UploadFinishedAt, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &j.MeetingMembers); err != nil {
			return nil, fmt.Errorf("decode meeting_members: %w", err)
		}
	}
	return j, nil
}

// CreateJob inserts a new job in status uploading.
// Returns ErrDuplicate if the request id has been used before.
func (db *DB) CreateJob(ctx context.Context, j *Job) error {
	members, err := json.Marshal(j.MeetingMembers)
	if err != nil {
		return fmt.Errorf("encode meeting_members: %w", err)
	}
	if members == nil || string(members) == "null" {
		members = []byte("[]")
	}

	err = db.Pool.QueryRow(ctx, `
		INSERT INTO meeting_jobs (
			request_id, owner_id, original_filename, bbh_name,
			meeting_type, meeting_host, meeting_members, language, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`,
		j.RequestID, j.OwnerID, j.OriginalFilename, j.BBHName,
		j.MeetingType, j.MeetingHost, members, j.Language, StatusUploading,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert job: %w", err)
	}
	j.Status = StatusUploading
	return nil
}

// GetJob fetches a job by request id. Returns ErrNotFound if missing.
func (db *DB) GetJob(ctx context.Context, requestID string) (*Job, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM meeting_jobs WHERE request_id = $1`, requestID)
	return scanJob(row)
}

// GetJobByID fetches a job by its internal id.
func (db *DB) GetJobByID(ctx context.Context, id int64) (*Job, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM meeting_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// OwnedJob fetches a job and verifies that username owns it.
// Returns ErrNotFound for an unknown request id, ErrNotOwner on a mismatch.
func (db *DB) OwnedJob(ctx context.Context, requestID, username string) (*Job, error) {
	j, err := db.GetJob(ctx, requestID)
	if err != nil {
		return nil, err
	}
	var ownerName string
	err = db.Pool.QueryRow(ctx,
		`SELECT username FROM users WHERE id = $1`, j.OwnerID).Scan(&ownerName)
	if err != nil {
		return nil, fmt.Errorf("lookup owner: %w", err)
	}
	if ownerName != username {
		return nil, ErrNotOwner
	}
	return j, nil
}

// TransitionStatus performs a guarded state transition: the write happens
// only if the current status equals from. Returns false when the predicate
// misses (another actor already moved the job, or the job is gone) — callers
// treat that as a silent no-op, never an error.
func (db *DB) TransitionStatus(ctx context.Context, jobID int64, from, to string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE meeting_jobs SET status = $3, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = $2
	`, jobID, from, to)
	if err != nil {
		return false, fmt.Errorf("transition %s->%s: %w", from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed moves a job to failed with an error message, unless the job is
// already in a terminal state or has been deleted.
func (db *DB) MarkFailed(ctx context.Context, jobID int64, msg string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE meeting_jobs SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status NOT IN ($2, $4)
	`, jobID, StatusFailed, msg, StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TouchUploadStarted records the first-chunk arrival time. Only the first
// call writes; later chunks see a non-null column and leave it alone.
func (db *DB) TouchUploadStarted(ctx context.Context, jobID int64) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE meeting_jobs SET upload_started_at = now(), updated_at = now()
		WHERE id = $1 AND upload_started_at IS NULL
	`, jobID)
	if err != nil {
		return fmt.Errorf("touch upload_started_at: %w", err)
	}
	return nil
}

// FinishUpload records the last-chunk arrival and moves the job to
// assembling in one guarded write. Exactly one caller can observe
// status == uploading, so a concurrent duplicate "last chunk" loses the race
// and reports false.
func (db *DB) FinishUpload(ctx context.Context, jobID int64) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE meeting_jobs
		SET status = $2, upload_finished_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
	`, jobID, StatusAssembling, StatusUploading)
	if err != nil {
		return false, fmt.Errorf("finish upload: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateInfo applies a partial metadata update and returns the fresh row.
func (db *DB) UpdateInfo(ctx context.Context, jobID int64, upd JobInfoUpdate) (*Job, error) {
	row := db.Pool.QueryRow(ctx, `
		UPDATE meeting_jobs SET
			bbh_name     = COALESCE($2, bbh_name),
			meeting_type = COALESCE($3, meeting_type),
			meeting_host = COALESCE($4, meeting_host),
			updated_at   = now()
		WHERE id = $1
		RETURNING `+jobColumns,
		jobID, upd.BBHName, upd.MeetingType, upd.MeetingHost)
	return scanJob(row)
}

// SetLanguage changes the active language and status together.
func (db *DB) SetLanguage(ctx context.Context, jobID int64, language, status string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE meeting_jobs SET language = $2, status = $3, updated_at = now()
		WHERE id = $1
	`, jobID, language, status)
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}

// DeleteJob removes the job row; child rows go with it via ON DELETE CASCADE.
func (db *DB) DeleteJob(ctx context.Context, jobID int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM meeting_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

// FailStaleJobs marks long-stuck jobs as failed and returns how many rows
// were affected. Used by the reaper.
func (db *DB) FailStaleJobs(ctx context.Context, olderThan time.Duration, msg string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE meeting_jobs SET status = $1, error_message = $2, updated_at = now()
		WHERE status = ANY($3) AND created_at < now() - $4::interval
	`,
		StatusFailed, msg,
		[]string{StatusUploading, StatusAssembling, StatusTranscribing, StatusDiarizing},
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
