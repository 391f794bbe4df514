package pricing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:pricing_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Coupon{}))
	return db
}

func seedCoupon(t *testing.T, db *gorm.DB, code string, limit *int, used int) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:           code,
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  decimal.NewFromInt(10),
		MinOrderAmount: decimal.Zero,
		ExpiryDate:     time.Now().Add(48 * time.Hour),
		IsActive:       true,
		UsageLimit:     limit,
		UsedCount:      used,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func loadCoupon(t *testing.T, db *gorm.DB, code string) models.Coupon {
	t.Helper()
	var c models.Coupon
	require.NoError(t, db.Where("code = ?", code).Take(&c).Error)
	return c
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(NewCouponStore(db))
	require.NoError(t, err)
	return svc, db
}

func TestQuoteAndRedeemScenario(t *testing.T) {
	svc, db := newTestService(t)
	seedCoupon(t, db, "SAVE10", intPtr(5), 2)

	totals, coupon, err := svc.Quote(context.Background(), []Line{{Price: d("50"), Qty: 2}}, " save10 ", time.Now())
	require.NoError(t, err)
	require.NotNil(t, coupon)
	require.True(t, totals.TotalPrice.Equal(d("114.5")))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemCoupon(context.Background(), tx, "SAVE10", time.Now())
	}))
	after := loadCoupon(t, db, "SAVE10")
	require.Equal(t, 3, after.UsedCount)
	require.True(t, after.IsActive)
}

func TestQuoteUnknownCouponIsConflict(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Quote(context.Background(), []Line{{Price: d("50"), Qty: 1}}, "NOPE", time.Now())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestQuoteExhaustedCouponIsConflict(t *testing.T) {
	svc, db := newTestService(t)
	seedCoupon(t, db, "ONCE", intPtr(1), 1)
	_, _, err := svc.Quote(context.Background(), []Line{{Price: d("50"), Qty: 1}}, "ONCE", time.Now())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRedeemDeactivatesAtLimit(t *testing.T) {
	svc, db := newTestService(t)
	seedCoupon(t, db, "LAST", intPtr(3), 2)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemCoupon(context.Background(), tx, "LAST", time.Now())
	}))
	c := loadCoupon(t, db, "LAST")
	require.Equal(t, 3, c.UsedCount)
	require.False(t, c.IsActive)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemCoupon(context.Background(), tx, "LAST", time.Now())
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 3, loadCoupon(t, db, "LAST").UsedCount)
}

func TestRedeemRejectsCouponExpiredAfterQuote(t *testing.T) {
	svc, db := newTestService(t)
	quotedAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c := seedCoupon(t, db, "FLASH", intPtr(10), 0)
	require.NoError(t, db.Model(c).Update("expiry_date", quotedAt.Add(time.Hour)).Error)

	_, coupon, err := svc.Quote(context.Background(), []Line{{Price: d("80"), Qty: 1}}, "FLASH", quotedAt)
	require.NoError(t, err)
	require.NotNil(t, coupon)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemCoupon(context.Background(), tx, "FLASH", quotedAt.Add(2*time.Hour))
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Zero(t, loadCoupon(t, db, "FLASH").UsedCount)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemCoupon(context.Background(), tx, "FLASH", quotedAt.Add(30*time.Minute))
	}))
	require.Equal(t, 1, loadCoupon(t, db, "FLASH").UsedCount)
}

func TestRedeemUnlimitedStaysActive(t *testing.T) {
	svc, db := newTestService(t)
	seedCoupon(t, db, "ALWAYS", nil, 40)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemCoupon(context.Background(), tx, "ALWAYS", time.Now())
	}))
	c := loadCoupon(t, db, "ALWAYS")
	require.Equal(t, 41, c.UsedCount)
	require.True(t, c.IsActive)
}

func TestConcurrentRedeemNeverExceedsLimit(t *testing.T) {
	svc, db := newTestService(t)
	seedCoupon(t, db, "RUSH", intPtr(4), 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				return svc.RedeemCoupon(context.Background(), tx, "RUSH", time.Now())
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	c := loadCoupon(t, db, "RUSH")
	require.Equal(t, 4, success)
	require.Equal(t, 4, c.UsedCount)
	require.False(t, c.IsActive)
}
