package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/hub"
)

// StreamHandler serves the websocket status stream. Each connection is
// registered with the hub; the hub's broker listener feeds it every
// job_updates message targeting its job.
type StreamHandler struct {
	db       *database.DB
	hub      *hub.Hub
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewStreamHandler(db *database.DB, hb *hub.Hub, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		db:  db,
		hub: hb,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("handler", "stream").Logger(),
	}
}

// Routes registers the websocket endpoint on the meeting subtree.
func (h *StreamHandler) Routes(r chi.Router) {
	r.Get("/ws/{requestID}", h.Stream)
}

// Stream handles GET /ws/{requestID}. On connect it sends a status snapshot,
// then pushes every update for the job until the client goes away. Inbound
// frames are read and discarded; they only serve as keep-alives.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	job, err := h.db.GetJob(r.Context(), requestID)
	if err != nil {
		writeJobLookupError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("request_id", requestID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Register(requestID)
	defer cancel()

	env, err := BuildEnvelope(r.Context(), h.db, job)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", requestID).Msg("snapshot build failed")
		return
	}
	snapshot, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
		return
	}

	h.log.Debug().Str("request_id", requestID).Msg("streaming client connected")

	// Reader goroutine: discard inbound frames, signal disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.log.Debug().Str("request_id", requestID).Msg("streaming client disconnected")
			return
		case payload, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debug().Err(err).Str("request_id", requestID).Msg("streaming write failed")
				return
			}
		}
	}
}
