package database

import (
	"context"
	"errors"
	"testing"
)

func TestCreateJob_DuplicateRequestID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	job := newTestJob(t, db)

	dup := &Job{
		RequestID:        job.RequestID,
		OwnerID:          job.OwnerID,
		OriginalFilename: "other.wav",
		Language:         "vi",
	}
	if err := db.CreateJob(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestFinishUpload_SecondCallLoses(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	job := newTestJob(t, db)

	closed, err := db.FinishUpload(ctx, job.ID)
	if err != nil {
		t.Fatalf("finish upload: %v", err)
	}
	if !closed {
		t.Fatal("first finish should close the upload")
	}

	closed, err = db.FinishUpload(ctx, job.ID)
	if err != nil {
		t.Fatalf("second finish upload: %v", err)
	}
	if closed {
		t.Fatal("second finish should miss the status predicate")
	}

	got, err := db.GetJobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if got.Status != StatusAssembling {
		t.Errorf("status = %q, want %q", got.Status, StatusAssembling)
	}
	if got.UploadFinishedAt == nil {
		t.Error("upload_finished_at not recorded")
	}
}

func TestTransitionStatus_PredicateMiss(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	job := newTestJob(t, db)

	t.Run("wrong_from_is_noop", func(t *testing.T) {
		ok, err := db.TransitionStatus(ctx, job.ID, StatusTranscribing, StatusTranscriptionComplete)
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if ok {
			t.Fatal("transition from a status the job is not in should report false")
		}
		got, err := db.GetJobByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("reload job: %v", err)
		}
		if got.Status != StatusUploading {
			t.Errorf("status = %q, want %q", got.Status, StatusUploading)
		}
	})

	t.Run("matching_from_wins_once", func(t *testing.T) {
		ok, err := db.TransitionStatus(ctx, job.ID, StatusUploading, StatusAssembling)
		if err != nil {
			t.Fatalf("transition: %v", err)
		}
		if !ok {
			t.Fatal("transition from the current status should report true")
		}
		ok, err = db.TransitionStatus(ctx, job.ID, StatusUploading, StatusAssembling)
		if err != nil {
			t.Fatalf("repeat transition: %v", err)
		}
		if ok {
			t.Fatal("repeated transition should miss the predicate")
		}
	})
}

func TestMarkFailed_SkipsTerminalStates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	job := newTestJob(t, db)

	marked, err := db.MarkFailed(ctx, job.ID, "worker crashed")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if !marked {
		t.Fatal("non-terminal job should be markable")
	}

	marked, err = db.MarkFailed(ctx, job.ID, "again")
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if marked {
		t.Fatal("already-failed job should not be marked again")
	}

	got, err := db.GetJobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want %q", got.Status, StatusFailed)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "worker crashed" {
		t.Errorf("error_message = %v, want first failure message", got.ErrorMessage)
	}
}
