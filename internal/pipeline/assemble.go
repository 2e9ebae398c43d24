package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/database"
)

var (
	soxOnce sync.Once
	soxPath string
	soxErr  error
)

// CheckSox reports whether the sox binary is on PATH. The lookup runs once
// and is cached for the process lifetime.
func CheckSox() error {
	soxOnce.Do(func() {
		soxPath, soxErr = exec.LookPath("sox")
	})
	return soxErr
}

// runAssemble concatenates the uploaded chunks into one mono 16-bit 16 kHz
// WAV next to them, removes the chunks, and hands the job to transcription.
func (r *Runner) runAssemble(ctx context.Context, t broker.Task) error {
	// 1. Reload the job; a cancel may have deleted it while queued.
	job, err := r.db.GetJobByID(ctx, t.JobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			r.log.Debug().Str("request_id", t.RequestID).Msg("job gone before assembly, skipping")
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	// 2. Collect chunks in upload order.
	chunks, err := r.store.ChunkFiles(job.RequestID, job.OriginalFilename)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no audio chunks found for request %s", job.RequestID)
	}

	// 3. Assemble and re-encode.
	outPath := r.store.AssembledPath(job.RequestID, job.OriginalFilename)
	if err := assembleAudio(ctx, chunks, outPath); err != nil {
		return fmt.Errorf("assemble audio: %w", err)
	}

	// 4. Drop the chunks; the assembled file is the source of truth now.
	if err := r.store.RemoveChunks(chunks); err != nil {
		r.log.Warn().Err(err).Str("request_id", job.RequestID).Msg("chunk cleanup failed")
	}

	// 5. Advance the job and publish.
	ok, err := r.db.TransitionStatus(ctx, job.ID, database.StatusAssembling, database.StatusTranscribing)
	if err != nil {
		return fmt.Errorf("transition to transcribing: %w", err)
	}
	if !ok {
		r.log.Debug().Str("request_id", job.RequestID).Str("status", job.Status).Msg("job not assembling, skipping")
		return nil
	}
	r.publishStatus(ctx, job.ID)

	// 6. Queue transcription.
	if err := r.bk.EnqueueTask(broker.Task{
		Name:      broker.TaskTranscribe,
		RequestID: job.RequestID,
		JobID:     job.ID,
		AudioPath: outPath,
		Language:  job.Language,
	}); err != nil {
		return fmt.Errorf("enqueue transcription: %w", err)
	}
	return nil
}

// assembleAudio joins the chunk files into outPath. With sox available the
// output is re-encoded to mono 16-bit 16 kHz in the same pass; otherwise the
// WAV payloads are stitched raw, trusting the client recorded a uniform
// format.
func assembleAudio(ctx context.Context, chunks []string, outPath string) error {
	if err := CheckSox(); err != nil {
		return concatWAV(chunks, outPath)
	}

	args := make([]string, 0, len(chunks)+6)
	args = append(args, chunks...)
	args = append(args, "-b", "16", outPath, "rate", "16000", "channels", "1")
	cmd := exec.CommandContext(ctx, soxPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("sox: %v: %s", err, out)
	}
	return nil
}

const wavHeaderSize = 44

// concatWAV writes the first chunk whole, appends the data payload of the
// rest, then patches the RIFF and data sizes in the header.
func concatWAV(chunks []string, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	var total int64
	for i, p := range chunks {
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		if i > 0 {
			if _, err := f.Seek(wavHeaderSize, io.SeekStart); err != nil {
				f.Close()
				return err
			}
		}
		n, err := io.Copy(out, f)
		f.Close()
		if err != nil {
			return err
		}
		total += n
	}

	if total < wavHeaderSize {
		return fmt.Errorf("assembled file too small: %d bytes", total)
	}

	var sizes [4]byte
	binary.LittleEndian.PutUint32(sizes[:], uint32(total-8))
	if _, err := out.WriteAt(sizes[:], 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(sizes[:], uint32(total-wavHeaderSize))
	if _, err := out.WriteAt(sizes[:], 40); err != nil {
		return err
	}
	return out.Sync()
}
