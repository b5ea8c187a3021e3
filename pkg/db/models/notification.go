package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
)

// Notification is the per-recipient fan-out row created when an alert is
// broadcast. Direct chat messages never produce notifications.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null;index"`
	SenderID    uuid.UUID              `gorm:"column:sender_id;type:uuid;not null"`
	AlertID     *uuid.UUID             `gorm:"column:alert_id;type:uuid;index"`
	Title       string                 `gorm:"column:title;type:text;not null"`
	Body        string                 `gorm:"column:body;type:text;not null"`
	Type        enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	IsRead      bool                   `gorm:"column:is_read;not null;default:false"`
	CreatedAt   time.Time              `gorm:"column:created_at;type:timestamptz;default:now()"`
}
