package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/metrics"
	"github.com/snarg/meeting-engine/internal/store"
)

// MeetingHandler serves the job lifecycle routes: create, chunk upload,
// stage triggers, status, metadata edits, and cancel.
type MeetingHandler struct {
	db    *database.DB
	bk    *broker.Client
	store *store.JobStore
	log   zerolog.Logger
}

func NewMeetingHandler(db *database.DB, bk *broker.Client, st *store.JobStore, log zerolog.Logger) *MeetingHandler {
	return &MeetingHandler{
		db:    db,
		bk:    bk,
		store: st,
		log:   log.With().Str("handler", "meeting").Logger(),
	}
}

// Routes registers the lifecycle endpoints on the meeting subtree.
func (h *MeetingHandler) Routes(r chi.Router) {
	r.Post("/start-bbh", h.Start)
	r.Post("/upload-file-chunk", h.UploadChunk)
	r.Post("/{requestID}/diarize", h.Diarize)
	r.Get("/{requestID}/status", h.Status)
	r.Patch("/{requestID}/info", h.UpdateInfo)
	r.Post("/{requestID}/language", h.ChangeLanguage)
	r.Put("/{requestID}/transcript/plain", h.UpdateTranscript)
	r.Delete("/{requestID}/cancel", h.Cancel)
}

// publishEnvelope pushes the job's current envelope on the job_updates topic.
// Publish failures are logged, never surfaced: the DB write already happened
// and clients can always re-fetch status.
func (h *MeetingHandler) publishEnvelope(ctx context.Context, job *database.Job) *StatusEnvelope {
	env, err := BuildEnvelope(ctx, h.db, job)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", job.RequestID).Msg("build envelope failed")
		return nil
	}
	if err := h.bk.PublishUpdate(job.RequestID, env); err != nil {
		h.log.Error().Err(err).Str("request_id", job.RequestID).Msg("publish update failed")
		return env
	}
	metrics.UpdatesPublishedTotal.Inc()
	return env
}

// ownedJob resolves the {requestID} path param against the username query
// param, writing the error response itself on failure.
func (h *MeetingHandler) ownedJob(w http.ResponseWriter, r *http.Request) *database.Job {
	requestID := chi.URLParam(r, "requestID")
	username, ok := QueryString(r, "username")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "missing username")
		return nil
	}
	job, err := h.db.OwnedJob(r.Context(), requestID, username)
	if err != nil {
		writeJobLookupError(w, err)
		return nil
	}
	return job
}

// pathJob resolves the {requestID} path param without an ownership check,
// for routes whose contract carries no username.
func (h *MeetingHandler) pathJob(w http.ResponseWriter, r *http.Request) *database.Job {
	requestID := chi.URLParam(r, "requestID")
	job, err := h.db.GetJob(r.Context(), requestID)
	if err != nil {
		writeJobLookupError(w, err)
		return nil
	}
	return job
}

func writeJobLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "unknown request id")
	case errors.Is(err, database.ErrNotOwner):
		WriteErrorWithCode(w, http.StatusForbidden, ErrForbidden, "job belongs to another user")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// Start handles POST /start-bbh. Creates the job in status uploading and
// provisions its chunk directory.
func (h *MeetingHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "invalid form: "+err.Error())
		return
	}

	requestID := r.FormValue("requestId")
	username := r.FormValue("username")
	filename := r.FormValue("filename")
	if requestID == "" || username == "" || filename == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "requestId, username and filename are required")
		return
	}
	// Request ids are opaque and client-chosen, but they double as directory
	// names on the shared volume, so they must be path-safe.
	if !validRequestID(requestID) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "requestId must not contain path separators")
		return
	}
	language := r.FormValue("language")
	if language == "" {
		language = "vi"
	}

	var members []string
	if raw := r.FormValue("meetingMembers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &members); err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "meetingMembers must be a JSON array of strings")
			return
		}
	}

	user, err := h.db.GetOrCreateUser(r.Context(), username)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job := &database.Job{
		RequestID:        requestID,
		OwnerID:          user.ID,
		OriginalFilename: filename,
		BBHName:          r.FormValue("bbhName"),
		MeetingType:      r.FormValue("Type"),
		MeetingHost:      r.FormValue("Host"),
		MeetingMembers:   members,
		Language:         language,
	}
	if err := h.db.CreateJob(r.Context(), job); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			WriteErrorWithCode(w, http.StatusConflict, ErrConflict, "request id already used")
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.store.CreateDir(requestID); err != nil {
		h.log.Error().Err(err).Str("request_id", requestID).Msg("create job directory failed")
		WriteError(w, http.StatusInternalServerError, "create job directory: "+err.Error())
		return
	}

	metrics.JobsCreatedTotal.Inc()
	h.log.Info().Str("request_id", requestID).Str("username", username).Msg("job created")

	env, err := BuildEnvelope(r.Context(), h.db, job)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, env)
}

// UploadChunk handles POST /upload-file-chunk. Accepts one chunk; the last
// chunk closes the upload and enqueues assembly.
func (h *MeetingHandler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	requestID := r.FormValue("requestId")
	if requestID == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "missing requestId")
		return
	}
	isLast := r.FormValue("isLastChunk") == "true"

	job, err := h.db.GetJob(r.Context(), requestID)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}
	if job.Status != database.StatusUploading {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidState, "job is not accepting chunks, status is "+job.Status)
		return
	}

	file, header, err := r.FormFile("FileData")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "missing FileData")
		return
	}
	defer file.Close()

	// First chunk records the upload start; the predicate makes later calls no-ops.
	if err := h.db.TouchUploadStarted(r.Context(), job.ID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.SaveChunk(requestID, header.Filename, file); err != nil {
		WriteError(w, http.StatusInternalServerError, "save chunk: "+err.Error())
		return
	}
	metrics.ChunksUploadedTotal.Inc()

	if isLast {
		closed, err := h.db.FinishUpload(r.Context(), job.ID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if closed {
			job.Status = database.StatusAssembling
			if err := h.bk.EnqueueTask(broker.Task{
				Name:      broker.TaskAssemble,
				RequestID: requestID,
				JobID:     job.ID,
				Language:  job.Language,
			}); err != nil {
				WriteError(w, http.StatusInternalServerError, "enqueue assemble: "+err.Error())
				return
			}
			h.publishEnvelope(r.Context(), job)
		}
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"request_id": requestID,
		"status":     job.Status,
	})
}

// Diarize handles POST /{requestID}/diarize. Requires transcription_complete
// and the assembled audio on disk.
func (h *MeetingHandler) Diarize(w http.ResponseWriter, r *http.Request) {
	job := h.ownedJob(w, r)
	if job == nil {
		return
	}
	if job.Status != database.StatusTranscriptionComplete {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidState, "diarization requires transcription_complete, status is "+job.Status)
		return
	}
	if !h.store.AssembledExists(job.RequestID, job.OriginalFilename) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "assembled audio not found")
		return
	}

	ok, err := h.db.TransitionStatus(r.Context(), job.ID, database.StatusTranscriptionComplete, database.StatusDiarizing)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidState, "job state changed, diarization not started")
		return
	}
	job.Status = database.StatusDiarizing

	if err := h.bk.EnqueueTask(broker.Task{
		Name:      broker.TaskDiarize,
		RequestID: job.RequestID,
		JobID:     job.ID,
		AudioPath: h.store.AssembledPath(job.RequestID, job.OriginalFilename),
		Language:  job.Language,
	}); err != nil {
		WriteError(w, http.StatusInternalServerError, "enqueue diarize: "+err.Error())
		return
	}
	h.publishEnvelope(r.Context(), job)

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"request_id": job.RequestID,
		"status":     job.Status,
	})
}

// Status handles GET /{requestID}/status.
func (h *MeetingHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.ownedJob(w, r)
	if job == nil {
		return
	}
	env, err := BuildEnvelope(r.Context(), h.db, job)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, env)
}

// UpdateInfo handles PATCH /{requestID}/info with a partial metadata update.
func (h *MeetingHandler) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	job := h.pathJob(w, r)
	if job == nil {
		return
	}
	var upd database.JobInfoUpdate
	if err := DecodeJSON(r, &upd); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "invalid request body")
		return
	}
	job, err := h.db.UpdateInfo(r.Context(), job.ID, upd)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	env := h.publishEnvelope(r.Context(), job)
	if env == nil {
		WriteError(w, http.StatusInternalServerError, "build envelope failed")
		return
	}
	WriteJSON(w, http.StatusOK, env)
}

// ChangeLanguage handles POST /{requestID}/language. A cached transcript for
// the new language switches instantly; otherwise a transcription task is
// enqueued against the assembled audio.
func (h *MeetingHandler) ChangeLanguage(w http.ResponseWriter, r *http.Request) {
	job := h.pathJob(w, r)
	if job == nil {
		return
	}
	var body struct {
		Language string `json:"language"`
	}
	if err := DecodeJSON(r, &body); err != nil || body.Language == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "language is required")
		return
	}

	// Same language: nothing to do.
	if body.Language == job.Language {
		env, err := BuildEnvelope(r.Context(), h.db, job)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, env)
		return
	}

	cached, err := h.db.HasTranscript(r.Context(), job.ID, body.Language)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if cached {
		// The diarized transcript belongs to the old language; drop it.
		if err := h.db.DeleteDiarizedTranscript(r.Context(), job.ID); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := h.db.SetLanguage(r.Context(), job.ID, body.Language, database.StatusTranscriptionComplete); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		job.Language = body.Language
		job.Status = database.StatusTranscriptionComplete
	} else {
		if !h.store.AssembledExists(job.RequestID, job.OriginalFilename) {
			WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidState, "assembled audio not available for re-transcription")
			return
		}
		if err := h.db.SetLanguage(r.Context(), job.ID, body.Language, database.StatusTranscribing); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		job.Language = body.Language
		job.Status = database.StatusTranscribing
		if err := h.bk.EnqueueTask(broker.Task{
			Name:      broker.TaskTranscribe,
			RequestID: job.RequestID,
			JobID:     job.ID,
			AudioPath: h.store.AssembledPath(job.RequestID, job.OriginalFilename),
			Language:  body.Language,
		}); err != nil {
			WriteError(w, http.StatusInternalServerError, "enqueue transcription: "+err.Error())
			return
		}
	}

	env := h.publishEnvelope(r.Context(), job)
	if env == nil {
		WriteError(w, http.StatusInternalServerError, "build envelope failed")
		return
	}
	WriteJSON(w, http.StatusOK, env)
}

// UpdateTranscript handles PUT /{requestID}/transcript/plain. Replaces the
// active-language transcript and clears every derived artifact.
func (h *MeetingHandler) UpdateTranscript(w http.ResponseWriter, r *http.Request) {
	job := h.pathJob(w, r)
	if job == nil {
		return
	}
	var body struct {
		Segments []database.Segment `json:"segments"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "invalid request body")
		return
	}
	if len(body.Segments) == 0 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "segments must not be empty")
		return
	}

	err := h.db.ReplaceTranscriptSegments(r.Context(), job.ID, job.Language, body.Segments)
	if errors.Is(err, database.ErrNotFound) {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "no transcript for the active language")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	job.Status = database.StatusTranscriptionComplete

	env := h.publishEnvelope(r.Context(), job)
	if env == nil {
		WriteError(w, http.StatusInternalServerError, "build envelope failed")
		return
	}
	WriteJSON(w, http.StatusOK, env)
}

// Cancel handles DELETE /{requestID}/cancel. Only jobs that have not started
// processing can be cancelled; the row and the chunk directory both go.
func (h *MeetingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.ownedJob(w, r)
	if job == nil {
		return
	}
	if job.Status != database.StatusUploading && job.Status != database.StatusAssembling {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidState, "cancel is only allowed before processing begins, status is "+job.Status)
		return
	}

	if err := h.db.DeleteJob(r.Context(), job.ID); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.RemoveDir(job.RequestID); err != nil {
		h.log.Error().Err(err).Str("request_id", job.RequestID).Msg("remove job directory failed")
	}

	if err := h.bk.PublishUpdate(job.RequestID, map[string]string{
		"request_id": job.RequestID,
		"status":     "cancelled",
	}); err != nil {
		h.log.Error().Err(err).Str("request_id", job.RequestID).Msg("publish cancel update failed")
	} else {
		metrics.UpdatesPublishedTotal.Inc()
	}

	h.log.Info().Str("request_id", job.RequestID).Msg("job cancelled")
	WriteJSON(w, http.StatusOK, map[string]string{
		"request_id": job.RequestID,
		"status":     "cancelled",
	})
}

// validRequestID reports whether an opaque client-chosen id is safe to use
// as a directory name: non-empty, no path separators, not a dot name.
func validRequestID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\")
}
