package realtime

import (
	"encoding/json"
	"time"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	CmdContextSwitch = "context.switch"
	CmdBackfill      = "history.backfill"
	CmdSend          = "message.send"
	CmdAtTail        = "viewport.at_tail"
	CmdResync        = "feed.resync"
	CmdPing          = "ping"
)

// Event types - Server → Client
const (
	EventHistory    = "history.page"
	EventPrepended  = "history.prepended"
	EventMessageNew = "message.new"
	EventPong       = "pong"
	EventError      = "error"
)

// Event is the base envelope for all live feed frames.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

// ContextSwitchPayload selects the conversation the feed should track.
type ContextSwitchPayload struct {
	Kind   string     `json:"kind"`
	PeerID *uuid.UUID `json:"peerId,omitempty"`
}

// SendPayload carries an outgoing message for the active context.
type SendPayload struct {
	Content string `json:"content"`
}

// AtTailPayload reports whether the viewer is pinned to the newest row.
type AtTailPayload struct {
	AtTail bool `json:"atTail"`
}

// --- Server → Client payloads ---

// HistoryPayload replaces the client's buffer wholesale (page 0 or resync).
type HistoryPayload struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// PrependedPayload carries an older page merged at the buffer head. Prepended
// is the exact row count added above the fold so the client can restore its
// scroll anchor.
type PrependedPayload struct {
	Messages  []models.Message `json:"messages"`
	Prepended int              `json:"prepended"`
	HasMore   bool             `json:"hasMore"`
}

// MessageNewPayload appends one live row at the buffer tail.
type MessageNewPayload struct {
	Message    models.Message `json:"message"`
	AutoScroll bool           `json:"autoScroll"`
}

// ErrorPayload surfaces a recoverable failure to the client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
