package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// User is a customer, staff member, delivery partner or admin.
type User struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string                `gorm:"column:name;not null" json:"name"`
	Email           string                `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash    string                `gorm:"column:password_hash;not null" json:"-"`
	Role            enums.UserRole        `gorm:"column:role;not null" json:"role"`
	Phone           *string               `gorm:"column:phone" json:"phone,omitempty"`
	PushToken       *string               `gorm:"column:push_token" json:"-"`
	CurrentLocation *types.GeographyPoint `gorm:"column:current_location;type:geography(Point,4326)" json:"current_location,omitempty"`
	IsOnline        bool                  `gorm:"column:is_online;not null" json:"is_online"`
	LastLocationAt  *time.Time            `gorm:"column:last_location_at" json:"last_location_at,omitempty"`
	LastLoginAt     *time.Time            `gorm:"column:last_login_at" json:"-"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// UserAddress is a saved delivery address.
type UserAddress struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID     `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Address   types.Address `gorm:"column:address;type:jsonb;not null" json:"address"`
	IsDefault bool          `gorm:"column:is_default;not null" json:"is_default"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (a *UserAddress) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
