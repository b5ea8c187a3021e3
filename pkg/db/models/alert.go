package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/amendezcabrera/villagelink-backend/pkg/db/types"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
	"github.com/amendezcabrera/villagelink-backend/pkg/types"
)

// Alert is an announcement or geofenced warning published by an admin.
// AffectedArea, when set, is the polygon drawn on the village map;
// RecipientIDs records who was notified at broadcast time.
type Alert struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title        string              `gorm:"column:title;type:text;not null"`
	Body         string              `gorm:"column:body;type:text;not null"`
	Category     enums.AlertCategory `gorm:"column:category;type:alert_category;not null"`
	AuthorID     uuid.UUID           `gorm:"column:author_id;type:uuid;not null"`
	IsUrgent     bool                `gorm:"column:is_urgent;not null;default:false"`
	ExpiresAt    *time.Time          `gorm:"column:expires_at;type:timestamptz"`
	AffectedArea *types.Polygon      `gorm:"column:affected_area;type:jsonb;serializer:json"`
	RecipientIDs dbtypes.UUIDArray   `gorm:"column:recipient_ids;type:uuid[];not null;default:ARRAY[]::uuid[]"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	// Author is a read-time projection, mirroring the message sender join.
	Author *User `gorm:"foreignKey:AuthorID;references:ID"`
}

// Expired reports whether the alert has lapsed as of now.
func (a Alert) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}
