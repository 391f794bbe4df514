package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int, available bool) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:        name,
		Category:    "Dairy",
		Price:       decimal.NewFromInt(50),
		Stock:       stock,
		IsAvailable: available,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func newTestLedger(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc, err := NewService(db)
	require.NoError(t, err)
	return svc, db
}

func TestReserveDecrementsAndMergesLines(t *testing.T) {
	svc, db := newTestLedger(t)
	milk := seedProduct(t, db, "Milk", 5, true)
	bread := seedProduct(t, db, "Bread", 2, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, []Line{
			{ProductID: milk.ID, Name: "Milk", Qty: 2},
			{ProductID: bread.ID, Name: "Bread", Qty: 2},
			{ProductID: milk.ID, Name: "Milk", Qty: 1},
		})
	})
	require.NoError(t, err)
	require.Equal(t, 2, stockOf(t, db, milk.ID))
	require.Equal(t, 0, stockOf(t, db, bread.ID))
}

func TestReserveInsufficientStockLeavesNoPartialDecrement(t *testing.T) {
	svc, db := newTestLedger(t)
	milk := seedProduct(t, db, "Milk", 5, true)
	eggs := seedProduct(t, db, "Eggs", 1, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, []Line{
			{ProductID: milk.ID, Name: "Milk", Qty: 3},
			{ProductID: eggs.ID, Name: "Eggs", Qty: 2},
		})
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, "Not enough stock for Eggs", pkgerrors.As(err).Message())
	require.Equal(t, 5, stockOf(t, db, milk.ID))
	require.Equal(t, 1, stockOf(t, db, eggs.ID))
}

func TestReserveRejectsUnavailableProduct(t *testing.T) {
	svc, db := newTestLedger(t)
	p := seedProduct(t, db, "Paneer", 10, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, []Line{{ProductID: p.ID, Name: "Paneer", Qty: 1}})
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 10, stockOf(t, db, p.ID))
}

func TestReserveValidatesLines(t *testing.T) {
	svc, db := newTestLedger(t)
	require.True(t, pkgerrors.IsCode(svc.Reserve(context.Background(), db, nil), pkgerrors.CodeValidation))
	require.True(t, pkgerrors.IsCode(svc.Reserve(context.Background(), db, []Line{{ProductID: uuid.New(), Qty: 0}}), pkgerrors.CodeValidation))
}

// Two checkouts racing for the last unit: exactly one wins and stock ends at zero.
func TestConcurrentReserveNeverOversells(t *testing.T) {
	svc, db := newTestLedger(t)
	p := seedProduct(t, db, "Milk", 5, true)

	const buyers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				return svc.Reserve(context.Background(), tx, []Line{{ProductID: p.ID, Name: "Milk", Qty: 1}})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	require.Equal(t, buyers-5, conflicts)
	require.Equal(t, 0, stockOf(t, db, p.ID))
}

func TestReleaseRestoresExactQuantities(t *testing.T) {
	svc, db := newTestLedger(t)
	p := seedProduct(t, db, "Curd", 4, true)
	lines := []Line{{ProductID: p.ID, Name: "Curd", Qty: 3}}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(context.Background(), tx, lines)
	}))
	require.Equal(t, 1, stockOf(t, db, p.ID))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Release(context.Background(), tx, lines)
	}))
	require.Equal(t, 4, stockOf(t, db, p.ID))
}

func TestCheckAvailability(t *testing.T) {
	svc, db := newTestLedger(t)
	p := seedProduct(t, db, "Butter", 3, true)
	off := seedProduct(t, db, "Ghee", 30, false)

	ok, err := svc.CheckAvailability(context.Background(), p.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CheckAvailability(context.Background(), p.ID, 4)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.CheckAvailability(context.Background(), off.ID, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAdjustGuardsNegativeStock(t *testing.T) {
	svc, db := newTestLedger(t)
	p := seedProduct(t, db, "Rice", 2, true)

	updated, err := svc.Adjust(context.Background(), p.ID, 8)
	require.NoError(t, err)
	require.Equal(t, 10, updated.Stock)

	_, err = svc.Adjust(context.Background(), p.ID, -11)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 10, stockOf(t, db, p.ID))

	_, err = svc.Adjust(context.Background(), uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestLowStock(t *testing.T) {
	svc, db := newTestLedger(t)
	seedProduct(t, db, "Salt", 50, true)
	low := seedProduct(t, db, "Sugar", 3, true)
	out := seedProduct(t, db, "Tea", 0, true)

	products, err := svc.LowStock(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, out.ID, products[0].ID)
	require.Equal(t, low.ID, products[1].ID)
}
