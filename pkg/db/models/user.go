package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
)

// User represents a village account: administrators and residents.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	FullName     string         `gorm:"column:full_name;not null"`
	Role         enums.UserRole `gorm:"column:role;type:user_role;not null;default:resident"`
	AvatarURL    *string        `gorm:"column:avatar_url"`
	Phone        *string        `gorm:"column:phone"`
	AddressBlock *string        `gorm:"column:address_block"`
	AddressLot   *string        `gorm:"column:address_lot"`
	Latitude     *float64       `gorm:"column:latitude"`
	Longitude    *float64       `gorm:"column:longitude"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasLocation reports whether the resident has a pinned map location.
func (u User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}
