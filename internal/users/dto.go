package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// UserDTO is the transport shape that omits credentials and device tokens.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Role        enums.UserRole `json:"role"`
	Phone       *string        `json:"phone,omitempty"`
	IsOnline    bool           `json:"is_online"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data the repository needs to persist a new user.
type CreateUserDTO struct {
	Name         string
	Email        string
	PasswordHash string
	Role         enums.UserRole
	Phone        *string
}

// AddressInput is a new saved address.
type AddressInput struct {
	Address   types.Address `json:"address" validate:"required"`
	IsDefault bool          `json:"is_default"`
}

// PartnerDistance is a delivery partner with their distance to a search point.
type PartnerDistance struct {
	models.User    `gorm:"embedded"`
	DistanceMeters float64 `gorm:"column:distance_meters" json:"distance_meters"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Phone:       u.Phone,
		IsOnline:    u.IsOnline,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleCustomer
	}
	return &models.User{
		Name:         strings.TrimSpace(c.Name),
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		PasswordHash: c.PasswordHash,
		Role:         role,
		Phone:        c.Phone,
	}
}
