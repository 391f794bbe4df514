package pricing

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
)

// CouponStore reads coupons and applies the atomic usage increment.
type CouponStore struct {
	db *gorm.DB
}

func NewCouponStore(db *gorm.DB) *CouponStore {
	return &CouponStore{db: db}
}

func (s *CouponStore) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.db.WithContext(ctx).Where("code = ?", code).Take(&coupon).Error; err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Redeem increments used_count only while the coupon is active, unexpired at now and under its
// limit, and clears is_active on the increment that reaches the limit. It reports false when no
// row qualified.
func (s *CouponStore) Redeem(ctx context.Context, tx *gorm.DB, code string, now time.Time) (bool, error) {
	if tx == nil {
		return false, gorm.ErrInvalidTransaction
	}
	res := tx.WithContext(ctx).Model(&models.Coupon{}).
		Where("code = ? AND is_active = ? AND expiry_date >= ? AND (usage_limit IS NULL OR used_count < usage_limit)", code, true, now).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"is_active":  gorm.Expr("(usage_limit IS NULL OR used_count + 1 < usage_limit)"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
