package pricing

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

func save10(now time.Time) *models.Coupon {
	return &models.Coupon{
		Code:           "SAVE10",
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  d("10"),
		MinOrderAmount: decimal.Zero,
		ExpiryDate:     now.Add(24 * time.Hour),
		IsActive:       true,
		UsageLimit:     intPtr(5),
		UsedCount:      2,
	}
}

func TestComputeTotalsPercentageCoupon(t *testing.T) {
	now := time.Now()
	totals, err := ComputeTotals([]Line{{Price: d("50"), Qty: 2}}, save10(now), now)
	require.NoError(t, err)
	require.True(t, totals.ItemsPrice.Equal(d("100")), totals.ItemsPrice.String())
	require.True(t, totals.DiscountAmount.Equal(d("10")))
	require.True(t, totals.TaxPrice.Equal(d("4.5")))
	require.True(t, totals.ShippingPrice.Equal(d("20")))
	require.True(t, totals.TotalPrice.Equal(d("114.5")), totals.TotalPrice.String())
}

func TestComputeTotalsWithoutCoupon(t *testing.T) {
	totals, err := ComputeTotals([]Line{{Price: d("33.33"), Qty: 3}}, nil, time.Now())
	require.NoError(t, err)
	require.True(t, totals.ItemsPrice.Equal(d("99.99")))
	require.True(t, totals.DiscountAmount.IsZero())
	require.True(t, totals.TaxPrice.Equal(d("5")), totals.TaxPrice.String())
	require.True(t, totals.TotalPrice.Equal(d("124.99")), totals.TotalPrice.String())
}

func TestFixedDiscountNeverExceedsSubtotal(t *testing.T) {
	now := time.Now()
	coupon := &models.Coupon{
		DiscountType:  enums.DiscountTypeFixedAmount,
		DiscountValue: d("500"),
		ExpiryDate:    now.Add(time.Hour),
		IsActive:      true,
	}
	totals, err := ComputeTotals([]Line{{Price: d("40"), Qty: 1}}, coupon, now)
	require.NoError(t, err)
	require.True(t, totals.DiscountAmount.Equal(d("40")))
	require.True(t, totals.TaxPrice.IsZero())
	require.True(t, totals.TotalPrice.Equal(ShippingFee))
}

func TestCouponRejections(t *testing.T) {
	now := time.Now()
	lines := []Line{{Price: d("50"), Qty: 2}}

	cases := map[string]func(c *models.Coupon){
		"inactive":  func(c *models.Coupon) { c.IsActive = false },
		"expired":   func(c *models.Coupon) { c.ExpiryDate = now.Add(-time.Minute) },
		"exhausted": func(c *models.Coupon) { c.UsageLimit = intPtr(1); c.UsedCount = 1 },
		"minimum":   func(c *models.Coupon) { c.MinOrderAmount = d("150") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			coupon := save10(now)
			mutate(coupon)
			_, err := ComputeTotals(lines, coupon, now)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
		})
	}
}

func TestComputeTotalsRejectsBadLines(t *testing.T) {
	_, err := ComputeTotals(nil, nil, time.Now())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ComputeTotals([]Line{{Price: d("1"), Qty: 0}}, nil, time.Now())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestComputeTotalsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	buildLines := func(cents, qtys []int) []Line {
		lines := make([]Line, 0, len(cents))
		for i := 0; i < len(cents) && i < len(qtys); i++ {
			lines = append(lines, Line{Price: decimal.New(int64(cents[i]), -2), Qty: qtys[i]})
		}
		return lines
	}
	centsGen := gen.SliceOfN(4, gen.IntRange(1, 100000))
	qtyGen := gen.SliceOfN(4, gen.IntRange(1, 20))

	properties.Property("identical inputs price identically", prop.ForAll(
		func(cents, qtys []int, pct int) bool {
			lines := buildLines(cents, qtys)
			coupon := &models.Coupon{
				DiscountType:  enums.DiscountTypePercentage,
				DiscountValue: decimal.NewFromInt(int64(pct)),
				ExpiryDate:    now.Add(time.Hour),
				IsActive:      true,
			}
			a, errA := ComputeTotals(lines, coupon, now)
			b, errB := ComputeTotals(lines, coupon, now)
			return errA == nil && errB == nil && a.TotalPrice.Equal(b.TotalPrice) && a.TaxPrice.Equal(b.TaxPrice)
		},
		centsGen,
		qtyGen,
		gen.IntRange(0, 100),
	))

	properties.Property("discount is bounded and total is non-negative", prop.ForAll(
		func(cents, qtys []int, fixed int) bool {
			lines := buildLines(cents, qtys)
			coupon := &models.Coupon{
				DiscountType:  enums.DiscountTypeFixedAmount,
				DiscountValue: decimal.NewFromInt(int64(fixed)),
				ExpiryDate:    now.Add(time.Hour),
				IsActive:      true,
			}
			totals, err := ComputeTotals(lines, coupon, now)
			if err != nil {
				return false
			}
			return !totals.DiscountAmount.GreaterThan(totals.ItemsPrice) &&
				!totals.TotalPrice.LessThan(ShippingFee)
		},
		centsGen,
		qtyGen,
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}
