package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/cart"
	"github.com/quickkart/quickkart-backend/internal/inventory"
	"github.com/quickkart/quickkart-backend/internal/notifications"
	"github.com/quickkart/quickkart-backend/internal/payments"
	"github.com/quickkart/quickkart-backend/internal/pricing"
	"github.com/quickkart/quickkart-backend/pkg/config"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/pagination"
	"github.com/quickkart/quickkart-backend/pkg/razorpay"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

const gatewaySecret = "rzp_test_secret"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type stubStores struct {
	store       *models.DarkStore
	nearest     *models.DarkStore
	serviceable map[string]bool
}

func (s stubStores) Get(_ context.Context, id uuid.UUID) (*models.DarkStore, error) {
	if s.store != nil && s.store.ID == id {
		return s.store, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
}

func (s stubStores) ResolveForPoint(context.Context, types.GeographyPoint) (*models.DarkStore, error) {
	if s.nearest != nil {
		return s.nearest, nil
	}
	return s.store, nil
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

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msgs ...notifications.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msgs...)
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Subject)
	}
	return out
}

func (n *recordingNotifier) sentTo(userID uuid.UUID) []notifications.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifications.Message
	for _, m := range n.msgs {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// reassigningRepo moves the order to another partner right before the conditional update,
// the way a concurrent ManualAssign would.
type reassigningRepo struct {
	Repository
	conn *gorm.DB
	to   uuid.UUID
}

func (r reassigningRepo) UpdateIf(ctx context.Context, id uuid.UUID, condition string, args []any, fields map[string]any) (bool, error) {
	if err := r.conn.Model(&models.Order{}).Where("id = ?", id).Update("delivery_partner_id", r.to).Error; err != nil {
		return false, err
	}
	return r.Repository.UpdateIf(ctx, id, condition, args, fields)
}

type stubAddresses map[uuid.UUID]*models.UserAddress

func (s stubAddresses) FindAddress(_ context.Context, userID, id uuid.UUID) (*models.UserAddress, error) {
	if a, ok := s[id]; ok && a.UserID == userID {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubAssigner struct {
	conn    *gorm.DB
	partner *uuid.UUID
}

func (a stubAssigner) AutoAssign(ctx context.Context, order *models.Order) (*uuid.UUID, error) {
	if a.partner == nil {
		return nil, nil
	}
	err := a.conn.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND delivery_partner_id IS NULL", order.ID).
		Update("delivery_partner_id", *a.partner).Error
	return a.partner, err
}

type fixture struct {
	svc      *service
	conn     *gorm.DB
	cart     *cart.Repository
	notifier *recordingNotifier
	store    *models.DarkStore
	milk     *models.Product
	bread    *models.Product
	shopper  uuid.UUID
	partner  uuid.UUID
	address  types.Address
	saved    *models.UserAddress
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return now }})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.Coupon{}, &models.CartItem{}, &models.Order{}, &models.OrderItem{}))

	f := &fixture{
		conn:     conn,
		cart:     cart.NewRepository(conn),
		notifier: &recordingNotifier{},
		store:    &models.DarkStore{ID: uuid.New(), Name: "Indiranagar", Pincode: "560038"},
		milk:     &models.Product{Name: "Milk", Image: "milk.png", Price: decimal.RequireFromString("50.00"), Stock: 10, IsAvailable: true},
		bread:    &models.Product{Name: "Bread", Image: "bread.png", Price: decimal.RequireFromString("30.00"), Stock: 3, IsAvailable: true},
		shopper:  uuid.New(),
		partner:  uuid.New(),
		address:  types.Address{FullName: "Asha", Line1: "12 CMH Road", City: "Bengaluru", State: "KA", Pincode: "560038", Country: "IN"},
		now:      now,
	}
	f.saved = &models.UserAddress{ID: uuid.New(), UserID: f.shopper, Address: f.address, IsDefault: true}
	require.NoError(t, conn.Create(f.milk).Error)
	require.NoError(t, conn.Create(f.bread).Error)
	limit := 5
	require.NoError(t, conn.Create(&models.Coupon{
		Code: "SAVE10", DiscountType: enums.DiscountTypePercentage, DiscountValue: decimal.NewFromInt(10),
		MinOrderAmount: decimal.Zero, ExpiryDate: now.AddDate(0, 1, 0), IsActive: true, UsageLimit: &limit,
	}).Error)

	ledger, err := inventory.NewService(conn)
	require.NoError(t, err)
	pricer, err := pricing.NewService(pricing.NewCouponStore(conn))
	require.NoError(t, err)

	gateway, err := razorpay.NewClient(
		config.RazorpayConfig{KeyID: "rzp_test_key", KeySecret: gatewaySecret, BaseURL: "https://razorpay.test"},
		razorpay.WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			var params razorpay.CreateOrderParams
			if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
				return nil, err
			}
			body, _ := json.Marshal(razorpay.Order{ID: "order_" + params.Receipt[:8], Amount: params.Amount, Currency: params.Currency, Receipt: params.Receipt, Status: "created"})
			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader(body)), Header: http.Header{}}, nil
		})}),
	)
	require.NoError(t, err)
	verifier, err := payments.NewVerifier(gateway)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Tx:        db.FromConn(conn),
		Cart:      f.cart,
		Stores:    stubStores{store: f.store, serviceable: map[string]bool{"560038": true}},
		Inventory: ledger,
		Pricing:   pricer,
		Payments:  verifier,
		Products:  dbProducts{conn: conn},
		Addresses: stubAddresses{f.saved.ID: f.saved},
		Notifier:  f.notifier,
		Assigner:  stubAssigner{conn: conn, partner: &f.partner},
		Logger:    logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	f.svc = svc.(*service)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addToCart(t *testing.T, product *models.Product, qty int) {
	t.Helper()
	require.NoError(t, f.cart.Upsert(context.Background(), &models.CartItem{
		UserID: f.shopper, ProductID: product.ID, StoreID: f.store.ID,
		Name: product.Name, Image: product.Image, Price: product.Price, Qty: qty,
	}))
}

func (f *fixture) stock(t *testing.T, product *models.Product) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.Where("id = ?", product.ID).Take(&p).Error)
	return p.Stock
}

func (f *fixture) cartSize(t *testing.T) int {
	t.Helper()
	items, err := f.cart.ListByUser(context.Background(), f.shopper)
	require.NoError(t, err)
	return len(items)
}

func (f *fixture) couponUses(t *testing.T) int {
	t.Helper()
	var c models.Coupon
	require.NoError(t, f.conn.Where("code = ?", "SAVE10").Take(&c).Error)
	return c.UsedCount
}

func (f *fixture) placeCOD(t *testing.T) *models.Order {
	t.Helper()
	f.addToCart(t, f.milk, 2)
	f.addToCart(t, f.bread, 1)
	res, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddress: &f.address, PaymentMethod: enums.PaymentMethodCOD})
	require.NoError(t, err)
	return res.Order
}

var (
	staff  = Actor{UserID: uuid.New(), Role: enums.UserRoleStaff}
	admin  = Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	nobody = Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
)

func TestCreateCashOrderReservesStockAndClearsCart(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.milk, 2)
	f.addToCart(t, f.bread, 1)

	res, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{
		ShippingAddress: &f.address, PaymentMethod: enums.PaymentMethodCOD, CouponCode: " save10 ",
	})
	require.NoError(t, err)
	require.Nil(t, res.Payment)

	order := res.Order
	require.Equal(t, enums.OrderStatusPlaced, order.OrderStatus)
	require.Equal(t, "130.00", order.ItemsPrice.StringFixed(2))
	require.Equal(t, "13.00", order.DiscountAmount.StringFixed(2))
	require.Equal(t, "5.85", order.TaxPrice.StringFixed(2))
	require.Equal(t, "20.00", order.ShippingPrice.StringFixed(2))
	require.Equal(t, "142.85", order.TotalPrice.StringFixed(2))
	require.Equal(t, f.store.ID, *order.DarkStoreID)
	require.False(t, order.IsPaid)

	require.Equal(t, 8, f.stock(t, f.milk))
	require.Equal(t, 2, f.stock(t, f.bread))
	require.Zero(t, f.cartSize(t))
	require.Equal(t, 1, f.couponUses(t))
	require.Contains(t, f.notifier.subjects(), "Order confirmed")

	stored, err := f.svc.Get(context.Background(), Actor{UserID: f.shopper, Role: enums.UserRoleCustomer}, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
}

func TestCreateRejectsEmptyCartAndUnservedPincode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddress: &f.address, PaymentMethod: enums.PaymentMethodCOD})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	f.addToCart(t, f.milk, 1)
	far := f.address
	far.Pincode = "110001"
	_, err = f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddress: &far, PaymentMethod: enums.PaymentMethodCOD})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, 10, f.stock(t, f.milk))
}

func TestCreateUsesSavedAddress(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.milk, 1)

	missing := uuid.New()
	_, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddressID: &missing, PaymentMethod: enums.PaymentMethodCOD})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(context.Background(), f.shopper, CreateOrderInput{PaymentMethod: enums.PaymentMethodCOD})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	res, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddressID: &f.saved.ID, PaymentMethod: enums.PaymentMethodCOD})
	require.NoError(t, err)
	require.Equal(t, "560038", res.Order.ShippingAddress.Pincode)
	require.Equal(t, "12 CMH Road", res.Order.ShippingAddress.Line1)
	require.Equal(t, 9, f.stock(t, f.milk))
}

func TestCreateRejectsLocationServedByAnotherStore(t *testing.T) {
	f := newFixture(t)
	f.svc.stores = stubStores{store: f.store, nearest: &models.DarkStore{ID: uuid.New()}, serviceable: map[string]bool{"560038": true}}
	f.addToCart(t, f.milk, 1)

	addr := f.address
	addr.Location = &types.GeographyPoint{Lat: 12.97, Lng: 77.64}
	_, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddress: &addr, PaymentMethod: enums.PaymentMethodCOD})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateFailsAtomicallyWhenStockRunsOut(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.milk, 2)
	f.addToCart(t, f.bread, 5)

	_, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddress: &f.address, PaymentMethod: enums.PaymentMethodCOD, CouponCode: "SAVE10"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.Equal(t, 10, f.stock(t, f.milk))
	require.Equal(t, 3, f.stock(t, f.bread))
	require.Equal(t, 2, f.cartSize(t))
	require.Zero(t, f.couponUses(t))
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestOnlineOrderWaitsForVerifiedPayment(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.milk, 2)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, f.shopper, CreateOrderInput{ShippingAddress: &f.address, PaymentMethod: enums.PaymentMethodOnline})
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	require.Equal(t, enums.OrderStatusPendingPayment, res.Order.OrderStatus)
	require.Equal(t, int64(12500), res.Payment.Amount)
	require.Equal(t, 10, f.stock(t, f.milk))
	require.Equal(t, 1, f.cartSize(t))

	gatewayID := res.Payment.GatewayOrderID
	_, err = f.svc.VerifyPayment(ctx, f.shopper, payments.Confirmation{
		GatewayOrderID: gatewayID, PaymentID: "pay_1", Signature: razorpay.Sign(gatewaySecret, gatewayID, "pay_other"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	pending, err := f.svc.Get(ctx, admin, res.Order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPendingPayment, pending.OrderStatus)
	require.Equal(t, enums.PaymentStatusFailed, *pending.PaymentResult.Status)
	require.Equal(t, 10, f.stock(t, f.milk))

	confirmation := payments.Confirmation{GatewayOrderID: gatewayID, PaymentID: "pay_1", Signature: razorpay.Sign(gatewaySecret, gatewayID, "pay_1")}
	placed, err := f.svc.VerifyPayment(ctx, f.shopper, confirmation)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPlaced, placed.OrderStatus)
	require.True(t, placed.IsPaid)
	require.Equal(t, enums.PaymentStatusPaid, *placed.PaymentResult.Status)
	require.Equal(t, "pay_1", *placed.PaymentResult.GatewayPaymentID)
	require.Equal(t, 8, f.stock(t, f.milk))
	require.Zero(t, f.cartSize(t))

	again, err := f.svc.VerifyPayment(ctx, f.shopper, confirmation)
	require.NoError(t, err)
	require.Equal(t, placed.ID, again.ID)
	require.Equal(t, 8, f.stock(t, f.milk))

	forged := confirmation
	forged.Signature = razorpay.Sign("not-the-secret", gatewayID, "pay_1")
	_, err = f.svc.VerifyPayment(ctx, f.shopper, forged)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	still, err := f.svc.Get(ctx, admin, res.Order.ID)
	require.NoError(t, err)
	require.True(t, still.IsPaid)
	require.Equal(t, enums.OrderStatusPlaced, still.OrderStatus)
	require.Equal(t, enums.PaymentStatusPaid, *still.PaymentResult.Status)
}

func TestVerifyPaymentRejectsOtherCustomers(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.milk, 1)
	res, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddress: &f.address, PaymentMethod: enums.PaymentMethodOnline})
	require.NoError(t, err)

	gatewayID := res.Payment.GatewayOrderID
	_, err = f.svc.VerifyPayment(context.Background(), uuid.New(), payments.Confirmation{
		GatewayOrderID: gatewayID, PaymentID: "pay_1", Signature: razorpay.Sign(gatewaySecret, gatewayID, "pay_1"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestFullLifecycleAssignsPartnerAndSettlesCash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeCOD(t)

	_, err := f.svc.Pack(ctx, Actor{UserID: f.shopper, Role: enums.UserRoleCustomer}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	packed, err := f.svc.Pack(ctx, staff, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPacked, packed.OrderStatus)
	require.Equal(t, f.partner, *packed.DeliveryPartnerID)

	_, err = f.svc.OutForDelivery(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleDeliveryPartner}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	rider := Actor{UserID: f.partner, Role: enums.UserRoleDeliveryPartner}
	out, err := f.svc.OutForDelivery(ctx, rider, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusOutForDelivery, out.OrderStatus)

	_, err = f.svc.Cancel(ctx, Actor{UserID: f.shopper, Role: enums.UserRoleCustomer}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	delivered, err := f.svc.Deliver(ctx, rider, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, delivered.OrderStatus)
	require.True(t, delivered.IsDelivered)
	require.True(t, delivered.IsPaid)
	require.NotNil(t, delivered.DeliveredAt)

	_, err = f.svc.Pack(ctx, staff, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestPackNotifiesAssignedPartner(t *testing.T) {
	f := newFixture(t)
	order := f.placeCOD(t)

	_, err := f.svc.Pack(context.Background(), staff, order.ID)
	require.NoError(t, err)

	msgs := f.notifier.sentTo(f.partner)
	require.Len(t, msgs, 1)
	require.Equal(t, "New delivery assigned", msgs[0].Subject)
	require.Equal(t, order.ID.String(), msgs[0].Data["order_id"])
	require.Contains(t, f.notifier.subjects(), "Order Packed")
}

func TestPackWithoutPartnerNotifiesOnlyCustomer(t *testing.T) {
	f := newFixture(t)
	f.svc.assigner = stubAssigner{conn: f.conn}
	order := f.placeCOD(t)

	_, err := f.svc.Pack(context.Background(), staff, order.ID)
	require.NoError(t, err)
	require.Empty(t, f.notifier.sentTo(f.partner))
	require.NotEmpty(t, f.notifier.sentTo(f.shopper))
}

func TestDeliveryStepsFailWhenPartnerReassignedMidway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeCOD(t)
	_, err := f.svc.Pack(ctx, staff, order.ID)
	require.NoError(t, err)

	rider := Actor{UserID: f.partner, Role: enums.UserRoleDeliveryPartner}
	base := f.svc.repo
	other := uuid.New()
	f.svc.repo = reassigningRepo{Repository: base, conn: f.conn, to: other}

	_, err = f.svc.OutForDelivery(ctx, rider, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	stored, err := f.svc.Get(ctx, admin, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPacked, stored.OrderStatus)
	require.Equal(t, other, *stored.DeliveryPartnerID)

	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("delivery_partner_id", f.partner).Error)
	f.svc.repo = base
	_, err = f.svc.OutForDelivery(ctx, rider, order.ID)
	require.NoError(t, err)

	f.svc.repo = reassigningRepo{Repository: base, conn: f.conn, to: other}
	_, err = f.svc.Deliver(ctx, rider, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	stored, err = f.svc.Get(ctx, admin, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusOutForDelivery, stored.OrderStatus)
	require.False(t, stored.IsDelivered)
	require.False(t, stored.IsPaid)
}

func TestPartnerClaimsUnassignedOrder(t *testing.T) {
	f := newFixture(t)
	f.svc.assigner = stubAssigner{conn: f.conn}
	ctx := context.Background()
	order := f.placeCOD(t)

	packed, err := f.svc.Pack(ctx, staff, order.ID)
	require.NoError(t, err)
	require.Nil(t, packed.DeliveryPartnerID)

	_, err = f.svc.OutForDelivery(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	claimer := uuid.New()
	out, err := f.svc.OutForDelivery(ctx, Actor{UserID: claimer, Role: enums.UserRoleDeliveryPartner}, order.ID)
	require.NoError(t, err)
	require.Equal(t, claimer, *out.DeliveryPartnerID)
}

func TestCancelRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeCOD(t)
	require.Equal(t, 8, f.stock(t, f.milk))

	_, err := f.svc.Cancel(ctx, nobody, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	cancelled, err := f.svc.Cancel(ctx, Actor{UserID: f.shopper, Role: enums.UserRoleCustomer}, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.OrderStatus)
	require.Equal(t, 10, f.stock(t, f.milk))
	require.Equal(t, 3, f.stock(t, f.bread))

	_, err = f.svc.Cancel(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 10, f.stock(t, f.milk))
}

func TestConcurrentTransitionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	order := f.placeCOD(t)

	const callers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.svc.Pack(context.Background(), staff, order.ID)
			} else {
				_, err = f.svc.Cancel(context.Background(), admin, order.ID)
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	require.GreaterOrEqual(t, succeeded, 1)
	require.Equal(t, callers, succeeded+conflicts)

	final, err := f.svc.Get(context.Background(), admin, order.ID)
	require.NoError(t, err)
	if final.OrderStatus == enums.OrderStatusCancelled {
		require.Equal(t, 10, f.stock(t, f.milk))
	} else {
		require.Equal(t, enums.OrderStatusPacked, final.OrderStatus)
		require.Equal(t, 8, f.stock(t, f.milk))
	}
}

func TestFeedbackAndIssueOnlyOncePerDeliveredOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.placeCOD(t)

	_, err := f.svc.Feedback(ctx, f.shopper, order.ID, FeedbackInput{Rating: 5})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	rider := Actor{UserID: f.partner, Role: enums.UserRoleDeliveryPartner}
	_, err = f.svc.Pack(ctx, staff, order.ID)
	require.NoError(t, err)
	_, err = f.svc.OutForDelivery(ctx, rider, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Deliver(ctx, rider, order.ID)
	require.NoError(t, err)

	rated, err := f.svc.Feedback(ctx, f.shopper, order.ID, FeedbackInput{Rating: 4, Comment: "quick"})
	require.NoError(t, err)
	require.Equal(t, 4, *rated.DeliveryRating)
	_, err = f.svc.Feedback(ctx, f.shopper, order.ID, FeedbackInput{Rating: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	reported, err := f.svc.ReportIssue(ctx, f.shopper, order.ID, ReportIssueInput{Type: enums.IssueTypeDamagedItem, Description: "bottle leaked", RequestRefund: true})
	require.NoError(t, err)
	require.Equal(t, enums.IssueStatusPending, *reported.Issue.Status)
	require.Equal(t, enums.RefundStatusPending, *reported.Issue.RefundStatus)
	_, err = f.svc.ReportIssue(ctx, f.shopper, order.ID, ReportIssueInput{Type: enums.IssueTypeOther, Description: "again"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	tooMuch := order.TotalPrice.Add(decimal.NewFromInt(1))
	approved := enums.RefundStatusApproved
	_, err = f.svc.ResolveIssue(ctx, order.ID, ResolveIssueInput{Status: enums.IssueStatusResolved, RefundStatus: &approved, RefundAmount: &tooMuch})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	amount := decimal.RequireFromString("50.00")
	resolved, err := f.svc.ResolveIssue(ctx, order.ID, ResolveIssueInput{Status: enums.IssueStatusResolved, Resolution: "refunded milk", RefundStatus: &approved, RefundAmount: &amount})
	require.NoError(t, err)
	require.Equal(t, enums.IssueStatusResolved, *resolved.Issue.Status)
	require.Equal(t, enums.RefundStatusApproved, *resolved.Issue.RefundStatus)
	require.Equal(t, "50.00", resolved.Issue.RefundAmount.StringFixed(2))
	require.NotNil(t, resolved.Issue.ResolvedAt)

	_, err = f.svc.ResolveIssue(ctx, order.ID, ResolveIssueInput{Status: enums.IssueStatusRejected})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestPlaceRecurringUsesCallerTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var placed *models.Order
	err := f.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		placed, err = f.svc.PlaceRecurring(ctx, tx, RecurringOrder{UserID: f.shopper, StoreID: f.store.ID, ProductID: f.bread.ID, Qty: 2, Address: f.address})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPlaced, placed.OrderStatus)
	require.Equal(t, enums.PaymentMethodCOD, placed.PaymentMethod)
	require.Equal(t, "83.00", placed.TotalPrice.StringFixed(2))
	require.Equal(t, 1, f.stock(t, f.bread))

	err = f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.PlaceRecurring(ctx, tx, RecurringOrder{UserID: f.shopper, StoreID: f.store.ID, ProductID: f.bread.ID, Qty: 2, Address: f.address})
		return err
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 1, f.stock(t, f.bread))
}

func TestListMinePaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.placeCOD(t)
	}

	first, err := f.svc.ListMine(ctx, f.shopper, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.svc.ListMine(ctx, f.shopper, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	_, err = f.svc.ListAll(ctx, ListFilter{Status: "Shipped"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestOwnerCancelsPackedOrder(t *testing.T) {
	f := newFixture(t)
	f.svc.assigner = nil
	ctx := context.Background()
	order := f.placeCOD(t)

	_, err := f.svc.Pack(ctx, staff, order.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, Actor{UserID: f.shopper, Role: enums.UserRoleCustomer}, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.OrderStatus)
	require.Equal(t, 10, f.stock(t, f.milk))
	require.Equal(t, 3, f.stock(t, f.bread))
	require.Contains(t, f.notifier.subjects(), "Order Cancelled")
}

func TestExhaustedCouponRejectedBeforeStockMoves(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.conn.Model(&models.Coupon{}).Where("code = ?", "SAVE10").
		Updates(map[string]any{"usage_limit": 1, "used_count": 1}).Error)
	f.addToCart(t, f.milk, 1)

	_, err := f.svc.Create(context.Background(), f.shopper, CreateOrderInput{ShippingAddress: &f.address, PaymentMethod: enums.PaymentMethodCOD, CouponCode: "SAVE10"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, 10, f.stock(t, f.milk))
	require.Equal(t, 1, f.cartSize(t))
}
