// Package hub is the in-process live-update registry: streaming clients
// register per request_id, and a single broker listener fans each job_updates
// message out to every handle for the targeted job.
package hub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/metrics"
)

// Hub holds the per-job client registry.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]chan []byte // request_id -> client_id -> send channel
	log     zerolog.Logger
}

func New(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[string]chan []byte),
		log:     log,
	}
}

// Register adds a client handle for a job and returns its receive channel
// and a cancel function. The channel is buffered; Broadcast never blocks
// on a slow client.
func (h *Hub) Register(requestID string) (<-chan []byte, func()) {
	id := uuid.NewString()
	ch := make(chan []byte, 16)

	h.mu.Lock()
	if h.clients[requestID] == nil {
		h.clients[requestID] = make(map[string]chan []byte)
	}
	h.clients[requestID][id] = ch
	h.mu.Unlock()

	metrics.WSClients.Inc()

	cancel := func() {
		h.mu.Lock()
		if m, ok := h.clients[requestID]; ok {
			if _, ok := m[id]; ok {
				delete(m, id)
				metrics.WSClients.Dec()
			}
			if len(m) == 0 {
				delete(h.clients, requestID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast delivers payload to every handle registered for requestID.
// Slow clients drop the message (after logging) rather than stalling the bus.
func (h *Hub) Broadcast(requestID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.clients[requestID] {
		select {
		case ch <- payload:
		default:
			metrics.WSDroppedMessages.Inc()
			h.log.Warn().Str("request_id", requestID).Str("client", id).Msg("dropping update for slow client")
		}
	}
}

// ClientCount reports registered handles for a job (for tests and health).
func (h *Hub) ClientCount(requestID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[requestID])
}

// Listen wires the hub to the broker's job_updates topic. One listener per
// front-end process; runs until ctx is cancelled.
func (h *Hub) Listen(ctx context.Context, bk *broker.Client) {
	updates := make(chan broker.Update, 64)
	bk.SubscribeUpdates(func(u broker.Update) {
		select {
		case updates <- u:
		case <-ctx.Done():
		}
	})

	h.log.Info().Msg("job update listener started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("job update listener stopped")
			return
		case u := <-updates:
			h.Broadcast(u.RequestID, u.Data)
		}
	}
}
