package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// Order is the append-only record of one checkout. Monetary fields are fixed at creation.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID" json:"order_items"`
	ShippingAddress   types.Address       `gorm:"column:shipping_address;type:jsonb;not null" json:"shipping_address"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;not null" json:"payment_method"`
	PaymentResult     PaymentResult       `gorm:"embedded;embeddedPrefix:payment_" json:"payment_result"`
	CouponCode        *string             `gorm:"column:coupon_code" json:"coupon_code,omitempty"`
	ItemsPrice        decimal.Decimal     `gorm:"column:items_price;type:numeric(12,2);not null" json:"items_price"`
	DiscountAmount    decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null" json:"discount_amount"`
	TaxPrice          decimal.Decimal     `gorm:"column:tax_price;type:numeric(12,2);not null" json:"tax_price"`
	ShippingPrice     decimal.Decimal     `gorm:"column:shipping_price;type:numeric(12,2);not null" json:"shipping_price"`
	TotalPrice        decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null" json:"total_price"`
	OrderStatus       enums.OrderStatus   `gorm:"column:order_status;not null;index" json:"order_status"`
	DarkStoreID       *uuid.UUID          `gorm:"column:dark_store_id;type:uuid" json:"dark_store_id,omitempty"`
	DeliveryPartnerID *uuid.UUID          `gorm:"column:delivery_partner_id;type:uuid;index" json:"delivery_partner_id,omitempty"`
	IsPaid            bool                `gorm:"column:is_paid;not null" json:"is_paid"`
	PaidAt            *time.Time          `gorm:"column:paid_at" json:"paid_at,omitempty"`
	IsDelivered       bool                `gorm:"column:is_delivered;not null" json:"is_delivered"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	DeliveryRating    *int                `gorm:"column:delivery_rating" json:"delivery_rating,omitempty"`
	DeliveryFeedback  *string             `gorm:"column:delivery_feedback" json:"delivery_feedback,omitempty"`
	Issue             IssueReport         `gorm:"embedded;embeddedPrefix:issue_" json:"issue_report"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// PaymentResult holds the gateway identifiers of an online payment.
type PaymentResult struct {
	GatewayOrderID   *string              `gorm:"column:gateway_order_id;uniqueIndex" json:"order_id,omitempty"`
	GatewayPaymentID *string              `gorm:"column:gateway_payment_id" json:"payment_id,omitempty"`
	Status           *enums.PaymentStatus `gorm:"column:status" json:"status,omitempty"`
	UpdateTime       *time.Time           `gorm:"column:update_time" json:"update_time,omitempty"`
}

// IssueReport is the post-delivery complaint side channel with its refund sub-workflow.
type IssueReport struct {
	Type         *enums.IssueType    `gorm:"column:type" json:"issue_type,omitempty"`
	Description  *string             `gorm:"column:description" json:"description,omitempty"`
	Status       *enums.IssueStatus  `gorm:"column:status" json:"status,omitempty"`
	Resolution   *string             `gorm:"column:resolution" json:"resolution,omitempty"`
	RefundStatus *enums.RefundStatus `gorm:"column:refund_status" json:"refund_status,omitempty"`
	RefundAmount *decimal.Decimal    `gorm:"column:refund_amount;type:numeric(12,2)" json:"refund_amount,omitempty"`
	ReportedAt   *time.Time          `gorm:"column:reported_at" json:"reported_at,omitempty"`
	ResolvedAt   *time.Time          `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

// Filed reports whether an issue has been raised on the order.
func (r IssueReport) Filed() bool {
	return r.Type != nil
}

// OrderItem snapshots a product line at order creation.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"product"`
	Name      string          `gorm:"column:name;not null" json:"name"`
	Qty       int             `gorm:"column:qty;not null" json:"qty"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Image     string          `gorm:"column:image;not null" json:"image"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
