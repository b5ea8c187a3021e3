package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/amendezcabrera/villagelink-backend/pkg/db/models"
	"github.com/amendezcabrera/villagelink-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	FullName     string         `json:"full_name"`
	Role         enums.UserRole `json:"role"`
	AvatarURL    *string        `json:"avatar_url,omitempty"`
	Phone        *string        `json:"phone,omitempty"`
	AddressBlock *string        `json:"address_block,omitempty"`
	AddressLot   *string        `json:"address_lot,omitempty"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	IsActive     bool           `json:"is_active"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new account.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         enums.UserRole
	Phone        *string
	AddressBlock *string
	AddressLot   *string
	Latitude     *float64
	Longitude    *float64
	IsActive     *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		AvatarURL:    u.AvatarURL,
		Phone:        u.Phone,
		AddressBlock: u.AddressBlock,
		AddressLot:   u.AddressLot,
		Latitude:     u.Latitude,
		Longitude:    u.Longitude,
		IsActive:     u.IsActive,
		LastLoginAt:  u.LastLoginAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	role := c.Role
	if role == "" {
		role = enums.UserRoleResident
	}

	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FullName:     c.FullName,
		Role:         role,
		Phone:        c.Phone,
		AddressBlock: c.AddressBlock,
		AddressLot:   c.AddressLot,
		Latitude:     c.Latitude,
		Longitude:    c.Longitude,
		IsActive:     isActive,
	}
}
