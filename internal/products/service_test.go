package products

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

	"github.com/quickkart/quickkart-backend/internal/inventory"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: clock})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.ProductReview{}))

	ledger, err := inventory.NewService(conn)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), ledger, db.FromConn(conn))
	require.NoError(t, err)
	return svc, conn
}

func createProduct(t *testing.T, svc Service, name, category string, stock int) *models.Product {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateProductInput{
		Name:     name,
		Brand:    "Fresh Farms",
		Category: category,
		Price:    decimal.RequireFromString("40.00"),
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
}

func TestCreateDefaultsAvailabilityAndValidatesPrices(t *testing.T) {
	svc, _ := newTestService(t)
	p := createProduct(t, svc, "Toned Milk", "Dairy", 12)
	require.True(t, p.IsAvailable)
	require.Equal(t, 12, p.Stock)

	sale := decimal.RequireFromString("45.00")
	_, err := svc.Create(context.Background(), CreateProductInput{
		Name: "Paneer", Category: "Dairy", Price: decimal.RequireFromString("40.00"), SalePrice: &sale,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetByID(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	createProduct(t, svc, "Toned Milk", "Dairy", 5)
	createProduct(t, svc, "Curd", "Dairy", 0)
	createProduct(t, svc, "Brown Bread", "Bakery", 3)
	createProduct(t, svc, "Butter Milk", "Dairy", 8)

	page, err := svc.List(ctx, ListInput{Category: "Dairy", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "Butter Milk", page.Items[0].Name)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.List(ctx, ListInput{Category: "Dairy", Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	require.Equal(t, "Toned Milk", next.Items[0].Name)
	require.Empty(t, next.NextCursor)

	milk, err := svc.List(ctx, ListInput{Keyword: "MILK", InStock: true})
	require.NoError(t, err)
	require.Len(t, milk.Items, 2)

	_, err = svc.List(ctx, ListInput{Cursor: "not-a-cursor!"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddReviewRecomputesRating(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	p := createProduct(t, svc, "Toned Milk", "Dairy", 5)

	for _, rating := range []int{5, 4, 4} {
		_, err := svc.AddReview(ctx, Reviewer{ID: uuid.New(), Name: "Asha"}, p.ID, ReviewInput{Rating: rating, Comment: "fresh"})
		require.NoError(t, err)
	}

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", p.ID).Error)
	require.Equal(t, 3, stored.NumReviews)
	require.True(t, stored.Rating.Equal(decimal.RequireFromString("4.3")), "rating %s", stored.Rating)

	detail, err := svc.Detail(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.Reviews, 3)
}

func TestAddReviewOncePerCustomer(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	p := createProduct(t, svc, "Curd", "Dairy", 5)
	reviewer := Reviewer{ID: uuid.New(), Name: "Ravi"}

	_, err := svc.AddReview(ctx, reviewer, p.ID, ReviewInput{Rating: 2, Comment: "sour"})
	require.NoError(t, err)
	_, err = svc.AddReview(ctx, reviewer, p.ID, ReviewInput{Rating: 5, Comment: "changed my mind"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", p.ID).Error)
	require.Equal(t, 1, stored.NumReviews)
	require.True(t, stored.Rating.Equal(decimal.NewFromInt(2)))

	_, err = svc.AddReview(ctx, reviewer, p.ID, ReviewInput{Rating: 6, Comment: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateStockAdjustsAndPatchesPrices(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createProduct(t, svc, "Toned Milk", "Dairy", 5)

	sale := decimal.RequireFromString("35.00")
	end := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateStock(ctx, p.ID, UpdateStockInput{Delta: 7, SalePrice: &sale, SaleEndDate: &end})
	require.NoError(t, err)
	require.Equal(t, 12, updated.Stock)
	require.NotNil(t, updated.SalePrice)
	require.True(t, updated.SalePrice.Equal(sale))

	_, err = svc.UpdateStock(ctx, p.ID, UpdateStockInput{Delta: -20})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	cleared, err := svc.UpdateStock(ctx, p.ID, UpdateStockInput{ClearSale: true})
	require.NoError(t, err)
	require.Nil(t, cleared.SalePrice)
	require.Equal(t, 12, cleared.Stock)

	_, err = svc.UpdateStock(ctx, uuid.New(), UpdateStockInput{Delta: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
