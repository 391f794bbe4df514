package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

// Service prices carts and consumes coupon usage.
type Service interface {
	Quote(ctx context.Context, lines []Line, couponCode string, now time.Time) (Totals, *models.Coupon, error)
	RedeemCoupon(ctx context.Context, tx *gorm.DB, code string, now time.Time) error
}

type couponStore interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string, now time.Time) (bool, error)
}

type service struct {
	coupons couponStore
}

func NewService(coupons couponStore) (Service, error) {
	if coupons == nil {
		return nil, fmt.Errorf("coupon store required")
	}
	return &service{coupons: coupons}, nil
}

// NormalizeCode is the canonical stored form of a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Quote looks up the coupon (if any) and computes totals. An unknown code rejects the quote.
func (s *service) Quote(ctx context.Context, lines []Line, couponCode string, now time.Time) (Totals, *models.Coupon, error) {
	code := NormalizeCode(couponCode)
	if code == "" {
		totals, err := ComputeTotals(lines, nil, now)
		return totals, nil, err
	}

	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Totals{}, nil, pkgerrors.New(pkgerrors.CodeConflict, "Invalid coupon code")
		}
		return Totals{}, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}

	totals, err := ComputeTotals(lines, coupon, now)
	if err != nil {
		return Totals{}, nil, err
	}
	return totals, coupon, nil
}

// RedeemCoupon consumes one use. It must run once per successful order, inside the order's
// transaction, so a later failure un-does the increment. A coupon that expired before now is
// not redeemed.
func (s *service) RedeemCoupon(ctx context.Context, tx *gorm.DB, code string, now time.Time) error {
	ok, err := s.coupons.Redeem(ctx, tx, NormalizeCode(code), now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeem coupon")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "Coupon is expired or its usage limit is reached")
	}
	return nil
}
