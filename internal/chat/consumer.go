package chat

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/pubsub/idempotency"
	"github.com/google/uuid"
)

const messageConsumerName = "message-feed"

// FeedSink receives decoded message rows for live delivery.
type FeedSink interface {
	Publish(msg models.Message)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer bridges the message topic onto the live feed. Every API instance
// runs one, so a row persisted anywhere reaches every connected session.
type Consumer struct {
	sink         FeedSink
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	logg         *logger.Logger
}

// NewConsumer builds a message feed consumer.
func NewConsumer(sink FeedSink, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if sink == nil {
		return nil, fmt.Errorf("feed sink required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("message subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		sink:         sink,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != EventTypeMessageCreated {
		c.logg.Info(logCtx, "skipping non-message event")
		return processResult{ack: true}
	}

	event, err := DecodeMessageEvent(msg.Data)
	if err != nil {
		// Malformed payloads never become valid; redelivery would loop.
		c.logg.Error(logCtx, "failed to decode message event", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(event.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, messageConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	c.sink.Publish(event.Message())
	return processResult{ack: true}
}
