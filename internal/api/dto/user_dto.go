package dto

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// LoginRequest is the credential payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UserResponse is the wire shape of a user.
type UserResponse struct {
	ID         string          `json:"id"`
	Username   string          `json:"username"`
	EmployeeID string          `json:"employee_id"`
	Role       domain.UserRole `json:"role"`
	Sector     *string         `json:"sector,omitempty"`
}
