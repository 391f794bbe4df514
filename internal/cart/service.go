package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

type repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Upsert(ctx context.Context, item *models.CartItem) error
	Touch(ctx context.Context, userID uuid.UUID, now time.Time) error
	DeleteItem(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type storeResolver interface {
	ResolveForPincode(ctx context.Context, pincode string) (*models.DarkStore, error)
}

type productLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type stockChecker interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
}

// Service manages a customer's single-store cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	CleanupIdle(ctx context.Context, idle time.Duration) (int64, error)
}

// AddItemInput sets the quantity of a product line. The pincode pins the cart to a dark store.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1,max=50"`
	Pincode   string    `json:"pincode" validate:"required,numeric,len=6"`
}

// View is the cart as shown to the customer.
type View struct {
	StoreID    *uuid.UUID        `json:"store_id,omitempty"`
	Items      []models.CartItem `json:"items"`
	ItemsPrice decimal.Decimal   `json:"items_price"`
}

type service struct {
	repo     repository
	stores   storeResolver
	products productLoader
	stock    stockChecker
	now      func() time.Time
}

func NewService(repo repository, stores storeResolver, products productLoader, stock stockChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store resolver required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock checker required")
	}
	return &service{repo: repo, stores: stores, products: products, stock: stock, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return buildView(items), nil
}

// AddItem snapshots the product's current effective price. A cart holds lines from one dark
// store only; adding from a different store is rejected rather than silently splitting.
func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error) {
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	store, err := s.stores.ResolveForPincode(ctx, input.Pincode)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsAvailable {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "%s is currently unavailable", product.Name)
	}

	existing, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	for _, line := range existing {
		if line.StoreID != store.ID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "Cart contains items from another store. Clear the cart to shop from this store.")
		}
	}

	ok, err := s.stock.CheckAvailability(ctx, product.ID, input.Qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "Not enough stock for %s", product.Name)
	}

	now := s.now()
	item := &models.CartItem{
		UserID:    userID,
		ProductID: product.ID,
		StoreID:   store.ID,
		Name:      product.Name,
		Image:     product.Image,
		Price:     product.EffectivePrice(now),
		Qty:       input.Qty,
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save cart item")
	}
	if err := s.repo.Touch(ctx, userID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	removed, err := s.repo.DeleteItem(ctx, userID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	if err := s.repo.Touch(ctx, userID, s.now()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch cart")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// CleanupIdle deletes carts untouched for at least idle.
func (s *service) CleanupIdle(ctx context.Context, idle time.Duration) (int64, error) {
	if idle <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "idle duration must be positive")
	}
	removed, err := s.repo.DeleteIdleBefore(ctx, s.now().Add(-idle))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete idle carts")
	}
	return removed, nil
}

func buildView(items []models.CartItem) *View {
	view := &View{Items: items, ItemsPrice: decimal.Zero}
	if view.Items == nil {
		view.Items = []models.CartItem{}
	}
	for _, item := range items {
		view.ItemsPrice = view.ItemsPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Qty))))
		if view.StoreID == nil {
			storeID := item.StoreID
			view.StoreID = &storeID
		}
	}
	return view
}
