// Package pipeline implements the background workers: audio assembly,
// transcription, and diarization, consumed from one broker task queue.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/api"
	"github.com/snarg/meeting-engine/internal/asr"
	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/config"
	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/diarize"
	"github.com/snarg/meeting-engine/internal/metrics"
	"github.com/snarg/meeting-engine/internal/speakers"
	"github.com/snarg/meeting-engine/internal/store"
)

// Options configures a Runner.
type Options struct {
	Config *config.Config
	DB     *database.DB
	Broker *broker.Client
	Store  *store.JobStore
	Queue  string // broker queue to consume
	Log    zerolog.Logger
}

// Runner consumes one task queue and executes tasks sequentially. GPU-bound
// models serialize on a single device, so concurrency stays at 1 per
// process; scale by running more worker processes.
type Runner struct {
	cfg   *config.Config
	db    *database.DB
	bk    *broker.Client
	store *store.JobStore
	queue string
	log   zerolog.Logger

	tasks chan broker.Task
	wg    sync.WaitGroup

	// Heavy service clients are built once, on the first task that needs
	// them, and shared for the life of the process.
	asrOnce  sync.Once
	asr      *asr.Client
	diarOnce sync.Once
	diarizer diarize.Diarizer
	profiles *speakers.Store
}

func NewRunner(opts Options) *Runner {
	return &Runner{
		cfg:   opts.Config,
		db:    opts.DB,
		bk:    opts.Broker,
		store: opts.Store,
		queue: opts.Queue,
		log:   opts.Log.With().Str("component", "pipeline").Str("queue", opts.Queue).Logger(),
		tasks: make(chan broker.Task, 64),
	}
}

// Start subscribes to the queue and launches the single worker goroutine.
// Runs until ctx is cancelled; Wait blocks for the in-flight task.
func (r *Runner) Start(ctx context.Context) {
	r.bk.SubscribeTasks(r.queue, func(t broker.Task) {
		select {
		case r.tasks <- t:
		case <-ctx.Done():
		}
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.log.Info().Msg("task runner started")
		for {
			select {
			case <-ctx.Done():
				r.log.Info().Msg("task runner stopped")
				return
			case t := <-r.tasks:
				r.handle(ctx, t)
			}
		}
	}()
}

// Wait blocks until the worker goroutine has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) handle(ctx context.Context, t broker.Task) {
	log := r.log.With().Str("task", t.Name).Str("request_id", t.RequestID).Int64("job_id", t.JobID).Logger()
	log.Info().Msg("task started")

	var err error
	switch t.Name {
	case broker.TaskAssemble:
		err = r.runAssemble(ctx, t)
	case broker.TaskTranscribe:
		err = r.runTranscribe(ctx, t)
	case broker.TaskDiarize:
		err = r.runDiarize(ctx, t)
	case broker.TaskEmbed:
		// Speaker enrollment is owned by the speaker-management surface;
		// its embedding tasks only share the queue.
		log.Debug().Msg("ignoring embedding task")
		return
	default:
		log.Warn().Msg("unknown task name, dropping")
		return
	}

	if err != nil {
		metrics.TasksProcessedTotal.WithLabelValues(t.Name, "failed").Inc()
		log.Error().Err(err).Msg("task failed")
		r.failJob(ctx, t, err)
		return
	}
	metrics.TasksProcessedTotal.WithLabelValues(t.Name, "ok").Inc()
	log.Info().Msg("task completed")
}

// failJob moves the job to failed and publishes the terminal update. A miss
// on the status predicate, or a job deleted by cancel, is a silent no-op.
func (r *Runner) failJob(ctx context.Context, t broker.Task, taskErr error) {
	marked, err := r.db.MarkFailed(ctx, t.JobID, taskErr.Error())
	if err != nil {
		r.log.Error().Err(err).Int64("job_id", t.JobID).Msg("mark failed write failed")
		return
	}
	if !marked {
		return
	}
	msg := taskErr.Error()
	r.publishPartial(t.RequestID, map[string]any{
		"request_id":    t.RequestID,
		"status":        database.StatusFailed,
		"error_message": &msg,
	})
}

// publishStatus re-reads the job and publishes its full envelope.
func (r *Runner) publishStatus(ctx context.Context, jobID int64) {
	job, err := r.db.GetJobByID(ctx, jobID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			r.log.Error().Err(err).Int64("job_id", jobID).Msg("reload job for publish failed")
		}
		return
	}
	env, err := api.BuildEnvelope(ctx, r.db, job)
	if err != nil {
		r.log.Error().Err(err).Str("request_id", job.RequestID).Msg("build envelope failed")
		return
	}
	r.publishPartial(job.RequestID, env)
}

func (r *Runner) publishPartial(requestID string, data any) {
	if err := r.bk.PublishUpdate(requestID, data); err != nil {
		r.log.Error().Err(err).Str("request_id", requestID).Msg("publish update failed")
		return
	}
	metrics.UpdatesPublishedTotal.Inc()
}

func (r *Runner) asrClient() *asr.Client {
	r.asrOnce.Do(func() {
		r.asr = asr.NewClient(r.cfg.AsrURL, r.cfg.AsrModel, r.cfg.AsrBeamSize, r.cfg.AsrTimeout)
	})
	return r.asr
}

func (r *Runner) diarizeServices() (diarize.Diarizer, *speakers.Store) {
	r.diarOnce.Do(func() {
		r.diarizer = diarize.NewHTTPDiarizer(r.cfg.DiarizerURL, diarize.ParamsFromConfig(r.cfg), r.cfg.DiarizerTimeout)
		r.profiles = speakers.NewStore(r.db)
	})
	return r.diarizer, r.profiles
}
