package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/snarg/meeting-engine/internal/api"
	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/database"
)

// runTranscribe sends the assembled audio to the ASR service and stores the
// word-level transcript for the task's language.
func (r *Runner) runTranscribe(ctx context.Context, t broker.Task) error {
	// 1. Reload the job; skip if it was cancelled while queued.
	job, err := r.db.GetJobByID(ctx, t.JobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			r.log.Debug().Str("request_id", t.RequestID).Msg("job gone before transcription, skipping")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	audioPath := t.AudioPath
	if audioPath == "" {
		audioPath = r.store.AssembledPath(job.RequestID, job.OriginalFilename)
	}
	language := t.Language
	if language == "" {
		language = job.Language
	}

	// 2. Run recognition.
	res, err := r.asrClient().Transcribe(ctx, audioPath, language)
	if err != nil {
		return fmt.Errorf("transcription: %w", err)
	}

	// 3. Store word timestamps; sentence segments are derivable but words
	// are what the speaker mapper consumes.
	if err := r.db.UpsertTranscript(ctx, job.ID, language, res.Words); err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}

	// 4. Advance the job and publish the transcript to listeners.
	ok, err := r.db.TransitionStatus(ctx, job.ID, database.StatusTranscribing, database.StatusTranscriptionComplete)
	if err != nil {
		return fmt.Errorf("transition to transcription_complete: %w", err)
	}
	if !ok {
		r.log.Debug().Str("request_id", job.RequestID).Str("status", job.Status).Msg("job not transcribing, skipping")
		return nil
	}

	// 5. Listeners get the sentence view; the stored word segments feed the
	// speaker mapper later.
	r.publishPartial(job.RequestID, map[string]any{
		"request_id":       job.RequestID,
		"status":           database.StatusTranscriptionComplete,
		"plain_transcript": api.TimedView(res.Sentences),
	})
	return nil
}
