package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/razorpay"
)

// Gateway is the subset of the Razorpay client used at checkout.
type Gateway interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
	KeyID() string
	Currency() string
}

// Checkout is what the storefront needs to open the gateway widget.
type Checkout struct {
	OrderID        uuid.UUID `json:"order_id"`
	GatewayOrderID string    `json:"razorpay_order_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"key_id"`
}

// Confirmation is the client's proof of payment.
type Confirmation struct {
	GatewayOrderID string `json:"razorpay_order_id" validate:"required"`
	PaymentID      string `json:"razorpay_payment_id" validate:"required"`
	Signature      string `json:"razorpay_signature" validate:"required"`
}

// Verifier opens gateway orders and checks payment signatures.
type Verifier struct {
	gateway Gateway
}

func NewVerifier(gateway Gateway) (*Verifier, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &Verifier{gateway: gateway}, nil
}

// Initiate creates a gateway order for total, receipted with the order id.
func (v *Verifier) Initiate(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) (*Checkout, error) {
	amount := ToMinorUnits(total)
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	gatewayOrder, err := v.gateway.CreateOrder(ctx, razorpay.CreateOrderParams{
		Amount:   amount,
		Currency: v.gateway.Currency(),
		Receipt:  orderID.String(),
		Notes:    map[string]string{"order_id": orderID.String()},
	})
	if err != nil {
		return nil, err
	}
	return &Checkout{
		OrderID:        orderID,
		GatewayOrderID: gatewayOrder.ID,
		Amount:         gatewayOrder.Amount,
		Currency:       gatewayOrder.Currency,
		KeyID:          v.gateway.KeyID(),
	}, nil
}

// Check validates the signature over "order_id|payment_id". A mismatch is a client error.
func (v *Verifier) Check(c Confirmation) error {
	if strings.TrimSpace(c.GatewayOrderID) == "" || strings.TrimSpace(c.PaymentID) == "" || strings.TrimSpace(c.Signature) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment confirmation is incomplete")
	}
	if !v.gateway.VerifySignature(c.GatewayOrderID, c.PaymentID, c.Signature) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Invalid payment signature")
	}
	return nil
}

// ToMinorUnits converts rupees to paise.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
