package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quickkart/quickkart-backend/internal/payments"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// Actor is the authenticated caller driving an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) is(roles ...enums.UserRole) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// CreateOrderInput is the checkout payload. Items come from the server-side cart. The address is
// either a saved one by id or given inline; Location overrides the address coordinates.
type CreateOrderInput struct {
	ShippingAddressID *uuid.UUID            `json:"shipping_address_id"`
	ShippingAddress   *types.Address        `json:"shipping_address"`
	Location          *types.GeographyPoint `json:"location"`
	PaymentMethod     enums.PaymentMethod   `json:"payment_method" validate:"required"`
	CouponCode        string                `json:"coupon_code" validate:"omitempty,max=40"`
}

// CreateResult carries the new order and, for online payments, the gateway checkout.
type CreateResult struct {
	Order   *models.Order      `json:"order"`
	Payment *payments.Checkout `json:"payment,omitempty"`
}

// FeedbackInput rates a delivered order.
type FeedbackInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// ReportIssueInput files a complaint against a delivered order.
type ReportIssueInput struct {
	Type          enums.IssueType `json:"issue_type" validate:"required"`
	Description   string          `json:"description" validate:"required,max=2000"`
	RequestRefund bool            `json:"request_refund"`
}

// ResolveIssueInput is the admin decision on a filed issue.
type ResolveIssueInput struct {
	Status       enums.IssueStatus   `json:"status" validate:"required"`
	Resolution   string              `json:"resolution" validate:"max=2000"`
	RefundStatus *enums.RefundStatus `json:"refund_status"`
	RefundAmount *decimal.Decimal    `json:"refund_amount"`
}

// ListFilter narrows the admin order listing.
type ListFilter struct {
	Status enums.OrderStatus
	Limit  int
	Cursor string
}

// RecurringOrder is a subscription delivery placed as a cash-on-delivery order.
type RecurringOrder struct {
	UserID    uuid.UUID
	StoreID   uuid.UUID
	ProductID uuid.UUID
	Qty       int
	Address   types.Address
}
