package alerts

import (
	"context"
	"time"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for alerts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	List(ctx context.Context, params listAlertsParams) ([]models.Alert, error)
	Update(ctx context.Context, alert *models.Alert) error
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	ListActiveZones(ctx context.Context, now time.Time) ([]models.Alert, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an alerts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listAlertsParams struct {
	ActiveOnly bool
	Category   string
	Now        time.Time
	Limit      int
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).Preload("Author").First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listAlertsParams) ([]models.Alert, error) {
	query := r.db.WithContext(ctx).Model(&models.Alert{}).Preload("Author")
	if params.ActiveOnly {
		query = query.Where("expires_at IS NULL OR expires_at > ?", params.Now)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}

	var alerts []models.Alert
	err := query.Order("is_urgent DESC, created_at DESC").Find(&alerts).Error
	return alerts, err
}

func (r *repositoryImpl) Update(ctx context.Context, alert *models.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.Alert{}, "id = ?", id)
	return result.RowsAffected, result.Error
}

// ListActiveZones returns unexpired alerts that carry a map polygon.
func (r *repositoryImpl) ListActiveZones(ctx context.Context, now time.Time) ([]models.Alert, error) {
	var alerts []models.Alert
	err := r.db.WithContext(ctx).
		Where("affected_area IS NOT NULL").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at DESC").
		Find(&alerts).Error
	return alerts, err
}

func (r *repositoryImpl) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
		Delete(&models.Alert{})
	return result.RowsAffected, result.Error
}
