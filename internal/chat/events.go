package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	"github.com/google/uuid"
)

const (
	// EventTypeMessageCreated tags every insert event on the message topic.
	EventTypeMessageCreated = "message.created"

	eventVersion          = 1
	defaultPublishTimeout = 10 * time.Second
)

// SenderRef is the read-only sender projection carried on each event so
// consumers can render a bubble without a second lookup.
type SenderRef struct {
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// MessageEvent is the payload published for every persisted message.
type MessageEvent struct {
	Version    int        `json:"version"`
	EventID    string     `json:"eventId"`
	OccurredAt time.Time  `json:"occurredAt"`
	MessageID  uuid.UUID  `json:"messageId"`
	Content    string     `json:"content"`
	SenderID   uuid.UUID  `json:"senderId"`
	ReceiverID *uuid.UUID `json:"receiverId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	Sender     *SenderRef `json:"sender,omitempty"`
}

// NewMessageEvent builds the event for a freshly persisted message row.
func NewMessageEvent(msg models.Message) MessageEvent {
	event := MessageEvent{
		Version:    eventVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		MessageID:  msg.ID,
		Content:    msg.Content,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		CreatedAt:  msg.CreatedAt,
	}
	if msg.Sender != nil {
		ref := &SenderRef{
			FullName: msg.Sender.FullName,
			Role:     string(msg.Sender.Role),
		}
		if msg.Sender.AvatarURL != nil {
			ref.AvatarURL = *msg.Sender.AvatarURL
		}
		event.Sender = ref
	}
	return event
}

// Message reconstructs the message row carried by the event.
func (e MessageEvent) Message() models.Message {
	msg := models.Message{
		ID:         e.MessageID,
		Content:    e.Content,
		SenderID:   e.SenderID,
		ReceiverID: e.ReceiverID,
		CreatedAt:  e.CreatedAt,
	}
	if e.Sender != nil {
		sender := &models.User{
			ID:       e.SenderID,
			FullName: e.Sender.FullName,
			Role:     enums.UserRole(e.Sender.Role),
		}
		if e.Sender.AvatarURL != "" {
			avatar := e.Sender.AvatarURL
			sender.AvatarURL = &avatar
		}
		msg.Sender = sender
	}
	return msg
}

// DecodeMessageEvent parses the published payload.
func DecodeMessageEvent(data []byte) (MessageEvent, error) {
	var event MessageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return MessageEvent{}, fmt.Errorf("decode message event: %w", err)
	}
	if event.MessageID == uuid.Nil {
		return MessageEvent{}, errors.New("message event missing message id")
	}
	return event, nil
}

// EventPublisher pushes message events onto the change feed.
type EventPublisher interface {
	PublishMessage(ctx context.Context, event MessageEvent) error
}

type pubsubPublisher struct {
	publisher *gcppubsub.Publisher
}

// NewPubSubPublisher wraps a Pub/Sub publisher handle as an EventPublisher.
func NewPubSubPublisher(publisher *gcppubsub.Publisher) (EventPublisher, error) {
	if publisher == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &pubsubPublisher{publisher: publisher}, nil
}

func (p *pubsubPublisher) PublishMessage(ctx context.Context, event MessageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message event: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":   event.EventID,
			"event_type": EventTypeMessageCreated,
			"message_id": event.MessageID.String(),
			"created_at": event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := p.publisher.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish message event: %w", err)
	}
	return nil
}
