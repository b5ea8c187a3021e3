package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/amendezcabrera/villagelink-backend/internal/chat"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/google/uuid"
)

const defaultSendBuffer = 64

// Session is one viewer's live conversation feed. It owns the timeline for
// the currently open context and translates client commands into timeline and
// send pipeline operations. Outgoing frames are queued on a bounded channel;
// the transport layer drains it.
type Session struct {
	id     uuid.UUID
	userID uuid.UUID

	timeline *chat.Timeline
	chatSvc  chat.Service
	logg     *logger.Logger

	// sendMu serializes queueing against Close. The hub snapshots sessions
	// outside its lock before delivering, so a disconnect can close the
	// queue while a broadcast still holds the session.
	sendMu   sync.Mutex
	closed   bool
	outbound chan []byte
}

// NewSession builds a session for the given viewer.
func NewSession(userID uuid.UUID, chatSvc chat.Service, logg *logger.Logger, sendBuffer int) *Session {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Session{
		id:       uuid.New(),
		userID:   userID,
		timeline: chat.NewTimeline(chat.ServiceLoader(chatSvc)),
		chatSvc:  chatSvc,
		logg:     logg,
		outbound: make(chan []byte, sendBuffer),
	}
}

// ID returns the session identifier used by the hub registry.
func (s *Session) ID() uuid.UUID { return s.id }

// UserID returns the authenticated viewer.
func (s *Session) UserID() uuid.UUID { return s.userID }

// Outbound exposes the frame queue for the transport write pump.
func (s *Session) Outbound() <-chan []byte { return s.outbound }

// HandleFrame parses and executes one client frame.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		s.sendError("INVALID_FRAME", "malformed event envelope")
		return
	}

	switch event.Type {
	case CmdContextSwitch:
		s.handleContextSwitch(ctx, event.Payload)
	case CmdBackfill:
		s.handleBackfill(ctx)
	case CmdSend:
		s.handleSend(ctx, event.Payload)
	case CmdAtTail:
		s.handleAtTail(event.Payload)
	case CmdResync:
		s.handleResync(ctx)
	case CmdPing:
		s.push(EventPong, nil)
	default:
		s.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (s *Session) handleContextSwitch(ctx context.Context, payload json.RawMessage) {
	var p ContextSwitchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("INVALID_PAYLOAD", "invalid context.switch payload")
		return
	}
	peer := uuid.Nil
	if p.PeerID != nil {
		peer = *p.PeerID
	}
	pred, err := chat.Resolve(s.userID, chat.ContextKind(p.Kind), peer)
	if err != nil {
		s.sendServiceError(err)
		return
	}
	buffer, err := s.timeline.SwitchContext(ctx, pred)
	if err != nil {
		// A newer switch superseded this one; its own load will answer.
		if pkgerrors.As(err).Code() == pkgerrors.CodeConflict {
			return
		}
		s.sendServiceError(err)
		return
	}
	s.push(EventHistory, HistoryPayload{Messages: buffer, HasMore: s.timeline.HasMore()})
}

func (s *Session) handleBackfill(ctx context.Context) {
	added, err := s.timeline.Backfill(ctx)
	if err != nil {
		s.sendServiceError(err)
		return
	}
	if added == 0 {
		return
	}
	snapshot := s.timeline.Snapshot()
	if added > len(snapshot) {
		added = len(snapshot)
	}
	s.push(EventPrepended, PrependedPayload{
		Messages:  snapshot[:added],
		Prepended: added,
		HasMore:   s.timeline.HasMore(),
	})
}

func (s *Session) handleSend(ctx context.Context, payload json.RawMessage) {
	var p SendPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("INVALID_PAYLOAD", "invalid message.send payload")
		return
	}
	pred, active := s.timeline.Predicate()
	if !active {
		s.sendError("NO_CONTEXT", "no conversation selected")
		return
	}
	// The confirmed row comes back through the feed; nothing is appended
	// locally here, which keeps send and feed delivery race free.
	if _, err := s.chatSvc.Send(ctx, chat.SendParams{
		SenderID: s.userID,
		Kind:     pred.Kind,
		PeerID:   pred.PeerID,
		Content:  p.Content,
	}); err != nil {
		s.sendServiceError(err)
	}
}

func (s *Session) handleAtTail(payload json.RawMessage) {
	var p AtTailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("INVALID_PAYLOAD", "invalid viewport.at_tail payload")
		return
	}
	s.timeline.SetAtTail(p.AtTail)
}

func (s *Session) handleResync(ctx context.Context) {
	buffer, err := s.timeline.Resync(ctx)
	if err != nil {
		if pkgerrors.As(err).Code() == pkgerrors.CodeConflict {
			return
		}
		s.sendServiceError(err)
		return
	}
	s.push(EventHistory, HistoryPayload{Messages: buffer, HasMore: s.timeline.HasMore()})
}

// Deliver merges a feed row into the session's timeline and, when the row
// belongs to the open conversation, queues a frame. Returns false when the
// outbound queue is full and the session should be torn down.
func (s *Session) Deliver(msg models.Message) (delivered, ok bool) {
	result := s.timeline.Ingest(msg)
	if !result.Appended {
		return false, true
	}
	event, err := NewEvent(EventMessageNew, MessageNewPayload{Message: msg, AutoScroll: result.AutoScroll})
	if err != nil {
		return false, true
	}
	data, err := json.Marshal(event)
	if err != nil {
		return false, true
	}
	queued, open := s.enqueue(data)
	if !open {
		// Already closed by a disconnect; not a slow-client condition.
		return false, true
	}
	return queued, queued
}

// Close releases the outbound queue. Idempotent, and safe against in-flight
// deliveries: once it returns, no frame will be queued.
func (s *Session) Close() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

// enqueue queues one frame unless the session is closed or the queue is
// full. Holding sendMu here is what keeps the channel send from racing
// Close.
func (s *Session) enqueue(data []byte) (queued, open bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.outbound <- data:
		return true, true
	default:
		return false, true
	}
}

func (s *Session) push(eventType string, payload any) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	s.enqueue(data)
}

func (s *Session) sendServiceError(err error) {
	appErr := pkgerrors.As(err)
	s.push(EventError, ErrorPayload{Code: string(appErr.Code()), Message: appErr.Message()})
}

func (s *Session) sendError(code, message string) {
	s.push(EventError, ErrorPayload{Code: code, Message: message})
}
