package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/chat"
	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/docgen"
	"github.com/snarg/meeting-engine/internal/llm"
	"github.com/snarg/meeting-engine/internal/store"
	"github.com/snarg/meeting-engine/internal/summary"
)

// AnalysisHandler serves the AI-derived routes: summaries, chat, and the
// audio/document downloads.
type AnalysisHandler struct {
	db        *database.DB
	store     *store.JobStore
	summaries *summary.Service
	chat      *chat.Engine
	log       zerolog.Logger
}

func NewAnalysisHandler(db *database.DB, st *store.JobStore, sm *summary.Service, ce *chat.Engine, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		db:        db,
		store:     st,
		summaries: sm,
		chat:      ce,
		log:       log.With().Str("handler", "analysis").Logger(),
	}
}

// Routes registers the analysis endpoints on the meeting subtree.
func (h *AnalysisHandler) Routes(r chi.Router) {
	r.Post("/chat", h.Chat)
	r.Post("/{requestID}/summary", h.Summary)
	r.Get("/{requestID}/download/audio", h.DownloadAudio)
	r.Get("/{requestID}/download/document", h.DownloadDocument)
}

func writeSummaryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, summary.ErrNoSource):
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidState, err.Error())
	case errors.Is(err, llm.ErrUpstream):
		WriteErrorWithCode(w, http.StatusBadGateway, ErrUpstreamFailure, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// Summary handles POST /{requestID}/summary: returns the stored summary of
// the requested type, generating and storing it on demand.
func (h *AnalysisHandler) Summary(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	job, err := h.db.GetJob(r.Context(), requestID)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}

	var body struct {
		SummaryType string `json:"summary_type"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "invalid request body")
		return
	}
	if !database.ValidSummaryType(body.SummaryType) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "unknown summary_type "+body.SummaryType)
		return
	}

	content, err := h.summaries.Get(r.Context(), job, body.SummaryType)
	if err != nil {
		writeSummaryError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"request_id":      job.RequestID,
		"summary_type":    body.SummaryType,
		"summary_content": content,
	})
}

// Chat handles POST /chat.
func (h *AnalysisHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID string `json:"requestId"`
		Username  string `json:"username"`
		Message   string `json:"message"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "invalid request body")
		return
	}
	if body.RequestID == "" || body.Username == "" || body.Message == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "requestId, username and message are required")
		return
	}

	job, err := h.db.OwnedJob(r.Context(), body.RequestID, body.Username)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}

	reply, err := h.chat.Respond(r.Context(), job, body.Message)
	if err != nil {
		if errors.Is(err, llm.ErrUpstream) {
			WriteErrorWithCode(w, http.StatusBadGateway, ErrUpstreamFailure, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// DownloadAudio handles GET /{requestID}/download/audio, streaming the
// assembled wav.
func (h *AnalysisHandler) DownloadAudio(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	username, ok := QueryString(r, "username")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "missing username")
		return
	}
	job, err := h.db.OwnedJob(r.Context(), requestID, username)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}

	path := h.store.AssembledPath(job.RequestID, job.OriginalFilename)
	f, err := h.store.Open(path)
	if err != nil {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "assembled audio not found")
		return
	}
	defer f.Close()

	name := "Meeting_Audio_" + strings.ReplaceAll(job.BBHName, " ", "_") + ".wav"
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", contentDisposition(name))
	if _, err := io.Copy(w, f); err != nil {
		h.log.Error().Err(err).Str("request_id", requestID).Msg("audio stream interrupted")
	}
}

// DownloadDocument handles GET /{requestID}/download/document, rendering the
// requested summary as DOCX. The summary is generated first if absent.
func (h *AnalysisHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	username, ok := QueryString(r, "username")
	if !ok {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "missing username")
		return
	}
	job, err := h.db.OwnedJob(r.Context(), requestID, username)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}

	summaryType, ok := QueryString(r, "summary_type")
	if !ok || !database.ValidSummaryType(summaryType) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidInput, "missing or unknown summary_type")
		return
	}

	content, err := h.summaries.Get(r.Context(), job, summaryType)
	if err != nil {
		writeSummaryError(w, err)
		return
	}

	doc, err := docgen.Render(job.BBHName, content)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "render document: "+err.Error())
		return
	}

	name := fmt.Sprintf("%s_%s.docx", summaryType, strings.ReplaceAll(job.BBHName, " ", "_"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", contentDisposition(name))
	w.Write(doc)
}

// contentDisposition builds an attachment header that survives non-ASCII
// filenames (RFC 5987 filename* with a plain fallback).
func contentDisposition(name string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		name, url.PathEscape(name))
}
