package auth

import (
	"time"

	"github.com/quickkart/quickkart-backend/internal/users"
	"github.com/quickkart/quickkart-backend/pkg/enums"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the public customer sign-up payload.
type RegisterRequest struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// CreateAccountRequest lets an admin onboard staff, delivery partners or other admins.
type CreateAccountRequest struct {
	RegisterRequest
	Role enums.UserRole `json:"role" validate:"required"`
}

// AuthResponse contains the bearer token and the signed-in user.
type AuthResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *users.UserDTO `json:"user"`
}
