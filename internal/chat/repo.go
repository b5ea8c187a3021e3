package chat

import (
	"context"
	"fmt"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for the message log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, message *models.Message) error
	// ListPage returns one page of messages matching the predicate, newest
	// first, with the sender profile preloaded.
	ListPage(ctx context.Context, pred Predicate, page, size int) ([]models.Message, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a chat repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repositoryImpl) ListPage(ctx context.Context, pred Predicate, page, size int) ([]models.Message, error) {
	query, err := r.scope(ctx, pred)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	err = query.
		Preload("Sender").
		Order("created_at DESC, id DESC").
		Offset(pagination.Offset(page, size)).
		Limit(size).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repositoryImpl) scope(ctx context.Context, pred Predicate) (*gorm.DB, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{})
	switch pred.Kind {
	case ContextCommunity:
		return query.Where("receiver_id IS NULL"), nil
	case ContextDirect:
		return query.Where(
			"receiver_id IS NOT NULL AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			pred.ViewerID, pred.PeerID, pred.PeerID, pred.ViewerID,
		), nil
	case ContextAdminSupport:
		return query.Where(
			"receiver_id IS NOT NULL AND (sender_id = ? OR receiver_id = ?)",
			pred.ViewerID, pred.ViewerID,
		), nil
	}
	return nil, fmt.Errorf("unsupported context kind %q", pred.Kind)
}
