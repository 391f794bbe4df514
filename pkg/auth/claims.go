package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quickkart/quickkart-backend/pkg/enums"
)

// AccessTokenClaims is the typed JWT issued at login. The auth middleware turns it into the
// request's user id and role.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
