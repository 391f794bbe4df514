package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

var (
	// TaxRate applies to the post-discount item total.
	TaxRate = decimal.RequireFromString("0.05")
	// ShippingFee is the flat per-order delivery charge.
	ShippingFee = decimal.RequireFromString("20.00")

	hundred = decimal.NewFromInt(100)
)

// Line is a priced cart line. Price is the snapshot taken when the line was added.
type Line struct {
	Price decimal.Decimal
	Qty   int
}

// Totals is the immutable money breakdown stored on an order.
type Totals struct {
	ItemsPrice     decimal.Decimal `json:"items_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxPrice       decimal.Decimal `json:"tax_price"`
	ShippingPrice  decimal.Decimal `json:"shipping_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
}

// ComputeTotals prices lines with an optional coupon. It is deterministic in its inputs.
func ComputeTotals(lines []Line, coupon *models.Coupon, now time.Time) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "no items to price")
	}

	items := decimal.Zero
	for _, line := range lines {
		if line.Qty <= 0 {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.Price.IsNegative() {
			return Totals{}, pkgerrors.New(pkgerrors.CodeValidation, "line price must not be negative")
		}
		items = items.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
	}

	discount := decimal.Zero
	if coupon != nil {
		if err := ValidateCoupon(coupon, items, now); err != nil {
			return Totals{}, err
		}
		discount = Discount(coupon, items)
	}

	taxable := items.Sub(discount)
	tax := taxable.Mul(TaxRate).Round(2)
	return Totals{
		ItemsPrice:     items.Round(2),
		DiscountAmount: discount.Round(2),
		TaxPrice:       tax,
		ShippingPrice:  ShippingFee,
		TotalPrice:     taxable.Add(tax).Add(ShippingFee).Round(2),
	}, nil
}

// ValidateCoupon checks every usability rule against an items subtotal.
func ValidateCoupon(coupon *models.Coupon, itemsPrice decimal.Decimal, now time.Time) error {
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "Invalid coupon code")
	}
	if !coupon.IsActive {
		return pkgerrors.New(pkgerrors.CodeConflict, "Coupon is not active")
	}
	if coupon.ExpiryDate.Before(now) {
		return pkgerrors.New(pkgerrors.CodeConflict, "Coupon has expired")
	}
	if coupon.Exhausted() {
		return pkgerrors.New(pkgerrors.CodeConflict, "Coupon usage limit reached")
	}
	if itemsPrice.LessThan(coupon.MinOrderAmount) {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "Minimum order amount of %s required", coupon.MinOrderAmount.StringFixed(2))
	}
	return nil
}

// Discount is capped at the items subtotal so totals never go negative.
func Discount(coupon *models.Coupon, itemsPrice decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = itemsPrice.Mul(coupon.DiscountValue).Div(hundred)
	default:
		discount = coupon.DiscountValue
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(discount, itemsPrice)
}
