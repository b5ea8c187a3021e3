package chat

import (
	"context"
	"strings"

	"github.com/amendezcabrera/villagelink-backend/pkg/config"
	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	pkgerrors "github.com/amendezcabrera/villagelink-backend/pkg/errors"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
	"github.com/amendezcabrera/villagelink-backend/pkg/metrics"
	"github.com/google/uuid"
)

const defaultPageSize = 20

// Service defines message history and send operations.
type Service interface {
	History(ctx context.Context, params HistoryParams) (*HistoryResult, error)
	Send(ctx context.Context, params SendParams) (*SendResult, error)
}

// UserLookup resolves sender profiles for freshly persisted messages.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo      Repository
	users     UserLookup
	publisher EventPublisher
	metrics   *metrics.ChatMetrics
	logg      *logger.Logger
	pageSize  int
	maxLen    int
}

// HistoryParams selects one page of conversation history.
type HistoryParams struct {
	ViewerID uuid.UUID
	Kind     ContextKind
	PeerID   uuid.UUID
	Page     int
}

// HistoryResult is one page of history in display order (oldest first).
type HistoryResult struct {
	Messages []models.Message `json:"messages"`
	Page     int              `json:"page"`
	HasMore  bool             `json:"hasMore"`
}

// SendParams describes an outgoing message.
type SendParams struct {
	SenderID uuid.UUID
	Kind     ContextKind
	PeerID   uuid.UUID
	Content  string
}

// SendResult reports the persisted message, or NoOp for blank submissions.
type SendResult struct {
	Message *models.Message `json:"message,omitempty"`
	NoOp    bool            `json:"noOp,omitempty"`
}

// NewService wires chat dependencies. Publisher and metrics are optional.
func NewService(repo Repository, users UserLookup, publisher EventPublisher, chatMetrics *metrics.ChatMetrics, logg *logger.Logger, cfg config.ChatConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &service{
		repo:      repo,
		users:     users,
		publisher: publisher,
		metrics:   chatMetrics,
		logg:      logg,
		pageSize:  pageSize,
		maxLen:    cfg.MaxContentLen,
	}, nil
}

// PageSize exposes the configured page size for the timeline layer.
func (s *service) PageSize() int {
	return s.pageSize
}

func (s *service) History(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	pred, err := Resolve(params.ViewerID, params.Kind, params.PeerID)
	if err != nil {
		return nil, err
	}
	if params.Page < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page must be non-negative")
	}

	rows, err := s.repo.ListPage(ctx, pred, params.Page, s.pageSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load message page")
	}

	// A short page means the log is exhausted for this predicate.
	hasMore := len(rows) == s.pageSize
	reverseMessages(rows)

	return &HistoryResult{
		Messages: rows,
		Page:     params.Page,
		HasMore:  hasMore,
	}, nil
}

func (s *service) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" {
		// Blank submissions decline silently; no storage call is made.
		return &SendResult{NoOp: true}, nil
	}
	if s.maxLen > 0 && len(content) > s.maxLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message content too long")
	}
	if params.SenderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender id required")
	}
	if !params.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid conversation context")
	}

	var receiverID *uuid.UUID
	if params.Kind != ContextCommunity {
		if params.PeerID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "no peer selected for direct message")
		}
		peer := params.PeerID
		receiverID = &peer
	}

	message := &models.Message{
		Content:    content,
		SenderID:   params.SenderID,
		ReceiverID: receiverID,
	}
	if err := s.repo.Create(ctx, message); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist message")
	}
	s.metrics.IncSent(string(params.Kind))

	s.attachSender(ctx, message)
	s.publish(ctx, message)

	return &SendResult{Message: message}, nil
}

func (s *service) attachSender(ctx context.Context, message *models.Message) {
	if s.users == nil || message.Sender != nil {
		return
	}
	sender, err := s.users.GetByID(ctx, message.SenderID)
	if err != nil {
		s.logg.Warn(ctx, "sender lookup failed after send")
		return
	}
	message.Sender = sender
}

// publish pushes the insert event onto the change feed. Delivery is best
// effort: the row is already durable, and feed consumers self-heal on
// reconnect with a page-0 refetch.
func (s *service) publish(ctx context.Context, message *models.Message) {
	if s.publisher == nil {
		return
	}
	event := NewMessageEvent(*message)
	if err := s.publisher.PublishMessage(ctx, event); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "message_id", message.ID.String()), "publish message event failed", err)
	}
}

func reverseMessages(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
