package realtime

import (
	"context"
	"sync"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Hub tracks all live feed sessions and fans persisted message rows out to
// them. Each session filters and dedups on its own timeline, so the hub can
// stay a dumb broadcaster.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	metrics *metrics.ChatMetrics
	logg    *logger.Logger
}

// NewHub builds an empty hub. Metrics are optional.
func NewHub(chatMetrics *metrics.ChatMetrics, logg *logger.Logger) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]*Session),
		metrics:  chatMetrics,
		logg:     logg,
	}
}

// Register adds a session to the broadcast set.
func (h *Hub) Register(session *Session) {
	h.mu.Lock()
	h.sessions[session.ID()] = session
	h.mu.Unlock()
	h.metrics.ConnOpened()
}

// Unregister removes a session and closes its outbound queue. Safe to call
// for a session that was never registered or was already removed.
func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	_, present := h.sessions[session.ID()]
	delete(h.sessions, session.ID())
	h.mu.Unlock()
	if present {
		session.Close()
		h.metrics.ConnClosed()
	}
}

// Publish fans one persisted message out to every session. Sessions whose
// outbound queue is full are dropped; their client reconnects and resyncs.
func (h *Hub) Publish(msg models.Message) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		targets = append(targets, session)
	}
	h.mu.RUnlock()

	for _, session := range targets {
		delivered, ok := session.Deliver(msg)
		switch {
		case !ok:
			h.metrics.IncDelivered("dropped")
			ctx := h.logg.WithFields(context.Background(), map[string]any{
				"session_id": session.ID().String(),
				"message_id": msg.ID.String(),
			})
			h.logg.Warn(ctx, "slow feed session dropped")
			h.Unregister(session)
		case delivered:
			h.metrics.IncDelivered("delivered")
		default:
			h.metrics.IncDelivered("filtered")
		}
	}
}

// SessionCount reports the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
