package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/inventory"
	"github.com/quickkart/quickkart-backend/internal/payments"
	"github.com/quickkart/quickkart-backend/internal/pricing"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/pagination"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// Service drives checkout and the order lifecycle.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateResult, error)
	VerifyPayment(ctx context.Context, userID uuid.UUID, confirmation payments.Confirmation) (*models.Order, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	ListAll(ctx context.Context, filter ListFilter) (pagination.Page[models.Order], error)
	Pack(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	OutForDelivery(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	Deliver(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	Feedback(ctx context.Context, userID, id uuid.UUID, input FeedbackInput) (*models.Order, error)
	ReportIssue(ctx context.Context, userID, id uuid.UUID, input ReportIssueInput) (*models.Order, error)
	ResolveIssue(ctx context.Context, id uuid.UUID, input ResolveIssueInput) (*models.Order, error)
	PlaceRecurring(ctx context.Context, tx *gorm.DB, input RecurringOrder) (*models.Order, error)
	AnnouncePlaced(ctx context.Context, order *models.Order)
}

// ServiceParams bundles the collaborators of the order service. Addresses, Assigner and Metrics
// are optional.
type ServiceParams struct {
	Repo      Repository
	Tx        db.TxRunner
	Cart      cartSource
	Stores    storeDirectory
	Inventory stockLedger
	Pricing   pricer
	Payments  paymentVerifier
	Products  productLoader
	Addresses addressBook
	Notifier  notifier
	Assigner  PartnerAssigner
	Metrics   transitionObserver
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        db.TxRunner
	cart      cartSource
	stores    storeDirectory
	inventory stockLedger
	pricing   pricer
	payments  paymentVerifier
	products  productLoader
	addresses addressBook
	notifier  notifier
	assigner  PartnerAssigner
	metrics   transitionObserver
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Cart == nil:
		return nil, fmt.Errorf("cart source required")
	case p.Stores == nil:
		return nil, fmt.Errorf("store directory required")
	case p.Inventory == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case p.Pricing == nil:
		return nil, fmt.Errorf("pricing engine required")
	case p.Payments == nil:
		return nil, fmt.Errorf("payment verifier required")
	case p.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case p.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      p.Repo,
		tx:        p.Tx,
		cart:      p.Cart,
		stores:    p.Stores,
		inventory: p.Inventory,
		pricing:   p.Pricing,
		payments:  p.Payments,
		products:  p.Products,
		addresses: p.Addresses,
		notifier:  p.Notifier,
		assigner:  p.Assigner,
		metrics:   p.Metrics,
		logg:      p.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create checks out the caller's cart. Cash orders are placed immediately: stock is reserved,
// the coupon redeemed and the cart cleared in one transaction. Online orders wait in Pending
// Payment with a gateway order and touch nothing else until the payment is verified.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateResult, error) {
	result, err := s.create(ctx, userID, input)
	if err != nil {
		s.observeRejection(err)
		return nil, err
	}
	s.observe("", result.Order.OrderStatus)
	if result.Order.OrderStatus == enums.OrderStatusPlaced {
		s.AnnouncePlaced(ctx, result.Order)
	}
	return result, nil
}

func (s *service) create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateResult, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	address, err := s.shippingAddress(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	items, err := s.cart.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	}
	storeID := items[0].StoreID
	for _, item := range items[1:] {
		if item.StoreID != storeID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Cart contains items from multiple stores")
		}
	}

	serviceable, err := s.stores.IsServiceable(ctx, address.Pincode)
	if err != nil {
		return nil, err
	}
	if !serviceable {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Delivery is not available for pincode %s", address.Pincode)
	}
	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if address.Location != nil {
		nearest, err := s.stores.ResolveForPoint(ctx, *address.Location)
		if err != nil {
			return nil, err
		}
		if nearest.ID != store.ID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Cart items belong to a different store than the delivery location")
		}
	}

	now := s.now()
	priceLines := make([]pricing.Line, 0, len(items))
	stockLines := make([]inventory.Line, 0, len(items))
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		priceLines = append(priceLines, pricing.Line{Price: item.Price, Qty: item.Qty})
		stockLines = append(stockLines, inventory.Line{ProductID: item.ProductID, Name: item.Name, Qty: item.Qty})
		orderItems = append(orderItems, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Qty:       item.Qty,
			Price:     item.Price,
			Image:     item.Image,
		})
	}

	totals, coupon, err := s.pricing.Quote(ctx, priceLines, input.CouponCode, now)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           orderItems,
		ShippingAddress: address,
		PaymentMethod:   input.PaymentMethod,
		ItemsPrice:      totals.ItemsPrice,
		DiscountAmount:  totals.DiscountAmount,
		TaxPrice:        totals.TaxPrice,
		ShippingPrice:   totals.ShippingPrice,
		TotalPrice:      totals.TotalPrice,
		OrderStatus:     enums.OrderStatusPlaced,
		DarkStoreID:     &store.ID,
	}
	if coupon != nil {
		code := coupon.Code
		order.CouponCode = &code
	}

	var checkout *payments.Checkout
	if input.PaymentMethod == enums.PaymentMethodOnline {
		for _, line := range stockLines {
			ok, err := s.inventory.CheckAvailability(ctx, line.ProductID, line.Qty)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "Not enough stock for %s", line.Name)
			}
		}
		checkout, err = s.payments.Initiate(ctx, order.ID, order.TotalPrice)
		if err != nil {
			return nil, err
		}
		status := enums.PaymentStatusCreated
		order.OrderStatus = enums.OrderStatusPendingPayment
		order.PaymentResult = models.PaymentResult{
			GatewayOrderID: &checkout.GatewayOrderID,
			Status:         &status,
			UpdateTime:     &now,
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if order.OrderStatus != enums.OrderStatusPlaced {
			return nil
		}
		return s.commitPlacement(ctx, tx, order, now)
	})
	if err != nil {
		return nil, err
	}
	return &CreateResult{Order: order, Payment: checkout}, nil
}

// commitPlacement applies the side effects of an order becoming Placed.
// shippingAddress resolves the checkout address from a saved address or the inline payload.
func (s *service) shippingAddress(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (types.Address, error) {
	var address types.Address
	switch {
	case input.ShippingAddressID != nil:
		if s.addresses == nil {
			return address, pkgerrors.New(pkgerrors.CodeValidation, "saved addresses are not supported")
		}
		saved, err := s.addresses.FindAddress(ctx, userID, *input.ShippingAddressID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return address, pkgerrors.New(pkgerrors.CodeNotFound, "Shipping address not found")
			}
			return address, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipping address")
		}
		address = saved.Address
	case input.ShippingAddress != nil:
		address = *input.ShippingAddress
	default:
		return address, pkgerrors.New(pkgerrors.CodeValidation, "Shipping address is required")
	}
	if input.Location != nil {
		loc := *input.Location
		address.Location = &loc
	}
	if err := address.Validate(); err != nil {
		return address, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	address.Pincode = strings.TrimSpace(address.Pincode)
	return address, nil
}

func (s *service) commitPlacement(ctx context.Context, tx *gorm.DB, order *models.Order, now time.Time) error {
	if err := s.inventory.Reserve(ctx, tx, stockLinesOf(order)); err != nil {
		return err
	}
	if order.CouponCode != nil {
		if err := s.pricing.RedeemCoupon(ctx, tx, *order.CouponCode, now); err != nil {
			return err
		}
	}
	if err := s.cart.ClearWithTx(ctx, tx, order.UserID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// VerifyPayment checks the gateway signature and moves the order from Pending Payment to
// Placed. A bad signature marks the payment failed and leaves the order waiting.
func (s *service) VerifyPayment(ctx context.Context, userID uuid.UUID, confirmation payments.Confirmation) (*models.Order, error) {
	gatewayOrderID := strings.TrimSpace(confirmation.GatewayOrderID)
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay_order_id is required")
	}
	order, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, mapOrderLookup(err)
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized to pay for this order")
	}
	if order.IsPaid && order.PaymentResult.GatewayPaymentID != nil && *order.PaymentResult.GatewayPaymentID == confirmation.PaymentID {
		// replays still need a valid signature; the paid order is left untouched either way
		if err := s.payments.Check(confirmation); err != nil {
			return nil, err
		}
		return order, nil
	}
	if order.OrderStatus != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Order is not awaiting payment")
	}

	now := s.now()
	if err := s.payments.Check(confirmation); err != nil {
		s.recordPayment(ctx, order.ID, confirmation.PaymentID, enums.PaymentStatusFailed, now)
		return nil, err
	}

	fields := map[string]any{
		"is_paid":                    true,
		"paid_at":                    now,
		"payment_gateway_payment_id": confirmation.PaymentID,
		"payment_status":             enums.PaymentStatusPaid,
		"payment_update_time":        now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Transition(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPlaced, fields)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "Order is not awaiting payment")
		}
		return s.commitPlacement(ctx, tx, order, now)
	})
	if err != nil {
		// The money has moved even though placement failed. Keep the evidence for a refund.
		s.recordPayment(ctx, order.ID, confirmation.PaymentID, enums.PaymentStatusPaid, now)
		s.observeRejection(err)
		return nil, err
	}

	s.observe(enums.OrderStatusPendingPayment, enums.OrderStatusPlaced)
	placed, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	s.AnnouncePlaced(ctx, placed)
	return placed, nil
}

func (s *service) recordPayment(ctx context.Context, orderID uuid.UUID, paymentID string, status enums.PaymentStatus, at time.Time) {
	_, err := s.repo.UpdateIf(ctx, orderID, "order_status = ?", []any{enums.OrderStatusPendingPayment}, map[string]any{
		"payment_gateway_payment_id": paymentID,
		"payment_status":             status,
		"payment_update_time":        at,
	})
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "record payment result", err)
	}
}

// PlaceRecurring creates a Placed cash-on-delivery order for one subscription delivery inside
// the caller's transaction.
func (s *service) PlaceRecurring(ctx context.Context, tx *gorm.DB, input RecurringOrder) (*models.Order, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	price := product.EffectivePrice(now)
	totals, err := pricing.ComputeTotals([]pricing.Line{{Price: price, Qty: input.Qty}}, nil, now)
	if err != nil {
		return nil, err
	}

	storeID := input.StoreID
	order := &models.Order{
		UserID: input.UserID,
		Items: []models.OrderItem{{
			ProductID: product.ID,
			Name:      product.Name,
			Qty:       input.Qty,
			Price:     price,
			Image:     product.Image,
		}},
		ShippingAddress: input.Address,
		PaymentMethod:   enums.PaymentMethodCOD,
		ItemsPrice:      totals.ItemsPrice,
		DiscountAmount:  totals.DiscountAmount,
		TaxPrice:        totals.TaxPrice,
		ShippingPrice:   totals.ShippingPrice,
		TotalPrice:      totals.TotalPrice,
		OrderStatus:     enums.OrderStatusPlaced,
		DarkStoreID:     &storeID,
	}

	if err := s.inventory.Reserve(ctx, tx, stockLinesOf(order)); err != nil {
		return nil, err
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription order")
	}
	s.observe("", enums.OrderStatusPlaced)
	return order, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized to view this order")
	}
	return order, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return pagination.Build(rows, params, orderCursor), nil
}

func (s *service) ListAll(ctx context.Context, filter ListFilter) (pagination.Page[models.Order], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return pagination.Page[models.Order]{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", filter.Status)
	}
	params := pagination.Params{Limit: filter.Limit, Cursor: filter.Cursor}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter.Status, params)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return pagination.Build(rows, params, orderCursor), nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapOrderLookup(err)
	}
	return order, nil
}

func (s *service) observe(from, to enums.OrderStatus) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(from), string(to))
	}
}

func (s *service) observeRejection(err error) {
	if s.metrics == nil {
		return
	}
	if typed := pkgerrors.As(err); typed != nil {
		s.metrics.ObserveRejection(string(typed.Code()))
		return
	}
	s.metrics.ObserveRejection(string(pkgerrors.CodeInternal))
}

func canView(actor Actor, order *models.Order) bool {
	switch {
	case actor.is(enums.UserRoleAdmin, enums.UserRoleStaff):
		return true
	case order.UserID == actor.UserID:
		return true
	case actor.is(enums.UserRoleDeliveryPartner):
		return order.DeliveryPartnerID != nil && *order.DeliveryPartnerID == actor.UserID
	}
	return false
}

func stockLinesOf(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Name: item.Name, Qty: item.Qty})
	}
	return lines
}

func orderCursor(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

func mapOrderLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
