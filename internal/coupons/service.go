package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/pricing"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

type repository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	List(ctx context.Context) ([]models.Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	Save(ctx context.Context, coupon *models.Coupon) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service administers coupons and previews their effect on a cart total.
type Service interface {
	Create(ctx context.Context, input CouponInput) (*models.Coupon, error)
	List(ctx context.Context) ([]models.Coupon, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCouponInput) (*models.Coupon, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*ValidationResult, error)
}

// CouponInput is the admin create payload.
type CouponInput struct {
	Code           string          `json:"code" validate:"required,min=3,max=32,alphanum"`
	DiscountType   string          `json:"discount_type" validate:"required,oneof=Percentage FixedAmount"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
	ExpiryDate     time.Time       `json:"expiry_date" validate:"required"`
	UsageLimit     *int            `json:"usage_limit" validate:"omitempty,min=1"`
	IsActive       *bool           `json:"is_active"`
}

// UpdateCouponInput patches a coupon. The code is immutable.
type UpdateCouponInput struct {
	DiscountType   *string          `json:"discount_type" validate:"omitempty,oneof=Percentage FixedAmount"`
	DiscountValue  *decimal.Decimal `json:"discount_value"`
	MinOrderAmount *decimal.Decimal `json:"min_order_amount"`
	ExpiryDate     *time.Time       `json:"expiry_date"`
	UsageLimit     *int             `json:"usage_limit" validate:"omitempty,min=1"`
	IsActive       *bool            `json:"is_active"`
}

// ValidationResult previews the discount a coupon would give.
type ValidationResult struct {
	Code           string          `json:"code"`
	DiscountType   string          `json:"discount_type"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type service struct {
	repo repository
	now  func() time.Time
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CouponInput) (*models.Coupon, error) {
	discountType, err := enums.ParseDiscountType(input.DiscountType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	coupon := &models.Coupon{
		Code:           pricing.NormalizeCode(input.Code),
		DiscountType:   discountType,
		DiscountValue:  input.DiscountValue,
		MinOrderAmount: input.MinOrderAmount,
		ExpiryDate:     input.ExpiryDate,
		UsageLimit:     input.UsageLimit,
		IsActive:       input.IsActive == nil || *input.IsActive,
	}
	if err := validateAmounts(coupon); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "coupon code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create coupon")
	}
	return coupon, nil
}

func (s *service) List(ctx context.Context) ([]models.Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list coupons")
	}
	return coupons, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateCouponInput) (*models.Coupon, error) {
	coupon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "load coupon")
	}

	if input.DiscountType != nil {
		discountType, err := enums.ParseDiscountType(*input.DiscountType)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
		}
		coupon.DiscountType = discountType
	}
	if input.DiscountValue != nil {
		coupon.DiscountValue = *input.DiscountValue
	}
	if input.MinOrderAmount != nil {
		coupon.MinOrderAmount = *input.MinOrderAmount
	}
	if input.ExpiryDate != nil {
		coupon.ExpiryDate = *input.ExpiryDate
	}
	if input.UsageLimit != nil {
		if *input.UsageLimit < coupon.UsedCount {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit cannot be below current usage")
		}
		coupon.UsageLimit = input.UsageLimit
	}
	if input.IsActive != nil {
		coupon.IsActive = *input.IsActive
	}
	if coupon.Exhausted() {
		coupon.IsActive = false
	}
	if err := validateAmounts(coupon); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, coupon); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update coupon")
	}
	return coupon, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete coupon")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return nil
}

// Validate applies the same rules checkout uses, without consuming a use.
func (s *service) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*ValidationResult, error) {
	normalized := pricing.NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Invalid coupon code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	if err := pricing.ValidateCoupon(coupon, cartTotal, s.now()); err != nil {
		return nil, err
	}

	return &ValidationResult{
		Code:           coupon.Code,
		DiscountType:   coupon.DiscountType.String(),
		DiscountValue:  coupon.DiscountValue,
		DiscountAmount: pricing.Discount(coupon, cartTotal).Round(2),
	}, nil
}

func validateAmounts(c *models.Coupon) error {
	if !c.DiscountValue.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if c.DiscountType == enums.DiscountTypePercentage && c.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if c.MinOrderAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "minimum order amount cannot be negative")
	}
	return nil
}

func mapNotFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
