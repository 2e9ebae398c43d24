package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/diarize"
)

// runDiarize runs speaker diarization over the assembled audio and joins the
// speaker timeline with the stored word transcript.
func (r *Runner) runDiarize(ctx context.Context, t broker.Task) error {
	// 1. Reload the job; skip if it was cancelled while queued.
	job, err := r.db.GetJobByID(ctx, t.JobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			r.log.Debug().Str("request_id", t.RequestID).Msg("job gone before diarization, skipping")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	// 2. The word transcript drives the speaker mapping; without it there
	// is nothing to attribute.
	transcript, err := r.db.GetTranscript(ctx, job.ID, job.Language)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no transcript for language %q", job.Language)
		}
		return fmt.Errorf("load transcript: %w", err)
	}

	diarizer, profileStore := r.diarizeServices()

	// 3. Enrolled speaker profiles let the service name known voices.
	profiles, err := profileStore.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("load speaker profiles: %w", err)
	}

	audioPath := t.AudioPath
	if audioPath == "" {
		audioPath = r.store.AssembledPath(job.RequestID, job.OriginalFilename)
	}

	// 4. Run diarization and map words onto the speaker timeline.
	timeline, err := diarizer.Diarize(ctx, audioPath, profiles)
	if err != nil {
		return fmt.Errorf("diarization: %w", err)
	}
	segments := diarize.MapWords(timeline, transcript.Segments)

	// 5. Store and finish.
	if err := r.db.ReplaceDiarizedTranscript(ctx, job.ID, segments); err != nil {
		return fmt.Errorf("store diarized transcript: %w", err)
	}
	ok, err := r.db.TransitionStatus(ctx, job.ID, database.StatusDiarizing, database.StatusCompleted)
	if err != nil {
		return fmt.Errorf("transition to completed: %w", err)
	}
	if !ok {
		r.log.Debug().Str("request_id", job.RequestID).Str("status", job.Status).Msg("job not diarizing, skipping")
		return nil
	}
	r.publishStatus(ctx, job.ID)
	return nil
}
