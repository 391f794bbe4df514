package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/enums"
)

// Coupon is a single-use-per-order discount code with an optional global usage limit.
type Coupon struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code           string             `gorm:"column:code;not null;uniqueIndex" json:"code"`
	DiscountType   enums.DiscountType `gorm:"column:discount_type;not null" json:"discount_type"`
	DiscountValue  decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null" json:"discount_value"`
	MinOrderAmount decimal.Decimal    `gorm:"column:min_order_amount;type:numeric(12,2);not null" json:"min_order_amount"`
	ExpiryDate     time.Time          `gorm:"column:expiry_date;not null" json:"expiry_date"`
	IsActive       bool               `gorm:"column:is_active;not null" json:"is_active"`
	UsageLimit     *int               `gorm:"column:usage_limit" json:"usage_limit,omitempty"`
	UsedCount      int                `gorm:"column:used_count;not null" json:"used_count"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Exhausted reports whether a limited coupon has no uses left.
func (c Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}
