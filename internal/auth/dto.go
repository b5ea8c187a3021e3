package auth

import "github.com/amendezcabrera/villagelink-backend/internal/users"

// LoginRequest carries the credential payload from the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}

// RefreshRequest rotates a refresh token into a new token pair.
type RefreshRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse carries the rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CreateResidentRequest is the admin onboarding payload. The service issues
// a temporary password and returns it once.
type CreateResidentRequest struct {
	Email        string   `json:"email" validate:"required,email"`
	FullName     string   `json:"full_name" validate:"required"`
	Phone        *string  `json:"phone,omitempty"`
	AddressBlock *string  `json:"address_block,omitempty"`
	AddressLot   *string  `json:"address_lot,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
}

// CreateResidentResponse returns the new account plus its one-time password.
type CreateResidentResponse struct {
	User         *users.UserDTO `json:"user"`
	TempPassword string         `json:"temp_password"`
}

// ChangePasswordRequest replaces the caller's own password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}
