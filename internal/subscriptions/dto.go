package subscriptions

import (
	"github.com/google/uuid"

	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// CreateSubscriptionInput starts a recurring delivery of one product.
type CreateSubscriptionInput struct {
	ProductID       uuid.UUID                   `json:"product" validate:"required"`
	Quantity        int                         `json:"quantity" validate:"required,min=1,max=50"`
	Frequency       enums.SubscriptionFrequency `json:"frequency" validate:"required"`
	ShippingAddress types.Address               `json:"shipping_address" validate:"required"`
}

// RunReport summarizes one ProcessDue pass.
type RunReport struct {
	Due         int `json:"due"`
	Placed      int `json:"placed"`
	Deactivated int `json:"deactivated"`
}
