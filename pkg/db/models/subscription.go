package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// Subscription is a recurring order of one product from one dark store.
type Subscription struct {
	ID               uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	ProductID        uuid.UUID                   `gorm:"column:product_id;type:uuid;not null" json:"product"`
	StoreID          uuid.UUID                   `gorm:"column:store_id;type:uuid;not null" json:"store"`
	Quantity         int                         `gorm:"column:quantity;not null" json:"quantity"`
	Frequency        enums.SubscriptionFrequency `gorm:"column:frequency;not null" json:"frequency"`
	NextDeliveryDate time.Time                   `gorm:"column:next_delivery_date;not null;index" json:"next_delivery_date"`
	ShippingAddress  types.Address               `gorm:"column:shipping_address;type:jsonb;not null" json:"shipping_address"`
	IsActive         bool                        `gorm:"column:is_active;not null" json:"is_active"`
	LastError        *string                     `gorm:"column:last_error" json:"last_error,omitempty"`
	LastOrderID      *uuid.UUID                  `gorm:"column:last_order_id;type:uuid" json:"last_order_id,omitempty"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
