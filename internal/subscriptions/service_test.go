package subscriptions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/inventory"
	"github.com/quickkart/quickkart-backend/internal/orders"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

type stubStores struct {
	store       *models.DarkStore
	serviceable map[string]bool
}

func (s stubStores) ResolveForPincode(_ context.Context, pincode string) (*models.DarkStore, error) {
	if s.serviceable[pincode] {
		return s.store, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no dark store serves pincode "+pincode)
}

func (s stubStores) IsServiceable(_ context.Context, pincode string) (bool, error) {
	return s.serviceable[pincode], nil
}

type dbProducts struct{ conn *gorm.DB }

func (p dbProducts) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := p.conn.WithContext(ctx).Where("id = ?", id).Take(&product).Error; err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &product, nil
}

// ledgerPlacer places recurring orders through the real stock ledger.
type ledgerPlacer struct {
	ledger    inventory.Service
	announced int
}

func (p *ledgerPlacer) PlaceRecurring(ctx context.Context, tx *gorm.DB, in orders.RecurringOrder) (*models.Order, error) {
	if err := p.ledger.Reserve(ctx, tx, []inventory.Line{{ProductID: in.ProductID, Name: "item", Qty: in.Qty}}); err != nil {
		return nil, err
	}
	order := &models.Order{
		UserID: in.UserID, ShippingAddress: in.Address, PaymentMethod: enums.PaymentMethodCOD,
		OrderStatus: enums.OrderStatusPlaced, DarkStoreID: &in.StoreID,
		ItemsPrice: decimal.Zero, DiscountAmount: decimal.Zero, TaxPrice: decimal.Zero, ShippingPrice: decimal.Zero, TotalPrice: decimal.Zero,
	}
	if err := tx.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (p *ledgerPlacer) AnnouncePlaced(context.Context, *models.Order) { p.announced++ }

type fixture struct {
	svc     *service
	conn    *gorm.DB
	placer  *ledgerPlacer
	store   *models.DarkStore
	milk    *models.Product
	address types.Address
	user    uuid.UUID
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC)
	dsn := "file:subscriptions_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return now }})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.Subscription{}, &models.Order{}, &models.OrderItem{}))

	ledger, err := inventory.NewService(conn)
	require.NoError(t, err)
	f := &fixture{
		conn:    conn,
		placer:  &ledgerPlacer{ledger: ledger},
		store:   &models.DarkStore{ID: uuid.New(), Pincode: "560038"},
		milk:    &models.Product{Name: "Milk", Price: decimal.RequireFromString("50.00"), Stock: 3, IsAvailable: true},
		address: types.Address{Line1: "12 CMH Road", City: "Bengaluru", Pincode: "560038"},
		user:    uuid.New(),
		now:     now,
	}
	require.NoError(t, conn.Create(f.milk).Error)

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Stores:   stubStores{store: f.store, serviceable: map[string]bool{"560038": true}},
		Products: dbProducts{conn: conn},
		Orders:   f.placer,
		Tx:       db.FromConn(conn),
		Logger:   logger.New(logger.Options{ServiceName: "subscriptions-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	f.svc = svc.(*service)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) subscribe(t *testing.T, qty int, freq enums.SubscriptionFrequency) *models.Subscription {
	t.Helper()
	sub, err := f.svc.Create(context.Background(), f.user, CreateSubscriptionInput{
		ProductID: f.milk.ID, Quantity: qty, Frequency: freq, ShippingAddress: f.address,
	})
	require.NoError(t, err)
	return sub
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Subscription {
	t.Helper()
	var sub models.Subscription
	require.NoError(t, f.conn.Where("id = ?", id).Take(&sub).Error)
	return sub
}

func TestCreateSchedulesFirstDelivery(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(t, 1, enums.SubscriptionFrequencyWeekly)
	require.Equal(t, f.now.AddDate(0, 0, 7), sub.NextDeliveryDate)
	require.Equal(t, f.store.ID, sub.StoreID)
	require.True(t, sub.IsActive)

	_, err := f.svc.Create(context.Background(), f.user, CreateSubscriptionInput{
		ProductID: f.milk.ID, Quantity: 1, Frequency: "Hourly", ShippingAddress: f.address,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	elsewhere := f.address
	elsewhere.Pincode = "110001"
	_, err = f.svc.Create(context.Background(), f.user, CreateSubscriptionInput{
		ProductID: f.milk.ID, Quantity: 1, Frequency: enums.SubscriptionFrequencyDaily, ShippingAddress: elsewhere,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCancelIsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(t, 1, enums.SubscriptionFrequencyDaily)

	err := f.svc.Cancel(context.Background(), uuid.New(), sub.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	require.NoError(t, f.svc.Cancel(context.Background(), f.user, sub.ID))
	require.False(t, f.reload(t, sub.ID).IsActive)
	require.NoError(t, f.svc.Cancel(context.Background(), f.user, sub.ID))

	subs, err := f.svc.List(context.Background(), f.user)
	require.NoError(t, err)
	require.Len(t, subs, 1)
}

func TestProcessDuePlacesOrdersAndDeactivatesFailures(t *testing.T) {
	f := newFixture(t)
	daily := f.subscribe(t, 2, enums.SubscriptionFrequencyDaily)
	weekly := f.subscribe(t, 2, enums.SubscriptionFrequencyWeekly)
	notYet := f.subscribe(t, 1, enums.SubscriptionFrequencyMonthly)

	f.now = f.now.AddDate(0, 0, 7)
	report, err := f.svc.ProcessDue(context.Background(), f.now)
	require.Error(t, err)
	require.Equal(t, 2, report.Due)
	require.Equal(t, 1, report.Placed)
	require.Equal(t, 1, report.Deactivated)
	require.Equal(t, 1, f.placer.announced)

	var stock models.Product
	require.NoError(t, f.conn.Where("id = ?", f.milk.ID).Take(&stock).Error)
	require.Equal(t, 1, stock.Stock)

	first, second := f.reload(t, daily.ID), f.reload(t, weekly.ID)
	placed, failed := first, second
	if !first.IsActive {
		placed, failed = second, first
	}
	require.True(t, placed.IsActive)
	require.NotNil(t, placed.LastOrderID)
	require.False(t, failed.IsActive)
	require.NotNil(t, failed.LastError)
	require.Contains(t, *failed.LastError, "Not enough stock")

	require.True(t, f.reload(t, notYet.ID).IsActive)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestProcessDueAdvancesSchedule(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(t, 1, enums.SubscriptionFrequencyDaily)
	due := sub.NextDeliveryDate

	report, err := f.svc.ProcessDue(context.Background(), due)
	require.NoError(t, err)
	require.Equal(t, 1, report.Placed)

	updated := f.reload(t, sub.ID)
	require.True(t, updated.NextDeliveryDate.Equal(due.AddDate(0, 0, 1)))

	report, err = f.svc.ProcessDue(context.Background(), due)
	require.NoError(t, err)
	require.Zero(t, report.Due)
}

func TestProcessDueDeactivatesUnservedPincode(t *testing.T) {
	f := newFixture(t)
	sub := f.subscribe(t, 1, enums.SubscriptionFrequencyDaily)
	f.svc.stores = stubStores{store: f.store, serviceable: map[string]bool{}}

	report, err := f.svc.ProcessDue(context.Background(), sub.NextDeliveryDate)
	require.Error(t, err)
	require.Equal(t, 1, report.Deactivated)
	require.Contains(t, *f.reload(t, sub.ID).LastError, "560038")
}
