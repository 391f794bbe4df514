package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/orders"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/logger"
)

// Service manages recurring orders and places the ones that fall due.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	Cancel(ctx context.Context, userID, id uuid.UUID) error
	ProcessDue(ctx context.Context, now time.Time) (RunReport, error)
}

type storeResolver interface {
	ResolveForPincode(ctx context.Context, pincode string) (*models.DarkStore, error)
	IsServiceable(ctx context.Context, pincode string) (bool, error)
}

type productLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type orderPlacer interface {
	PlaceRecurring(ctx context.Context, tx *gorm.DB, input orders.RecurringOrder) (*models.Order, error)
	AnnouncePlaced(ctx context.Context, order *models.Order)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo     *Repository
	Stores   storeResolver
	Products productLoader
	Orders   orderPlacer
	Tx       db.TxRunner
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	stores   storeResolver
	products productLoader
	orders   orderPlacer
	tx       db.TxRunner
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("subscription repo required")
	case params.Stores == nil:
		return nil, fmt.Errorf("store resolver required")
	case params.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case params.Orders == nil:
		return nil, fmt.Errorf("order placer required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		stores:   params.Stores,
		products: params.Products,
		orders:   params.Orders,
		tx:       params.Tx,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateSubscriptionInput) (*models.Subscription, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if !input.Frequency.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid frequency %q", input.Frequency)
	}
	address := input.ShippingAddress
	if err := address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	address.Pincode = strings.TrimSpace(address.Pincode)

	store, err := s.stores.ResolveForPincode(ctx, address.Pincode)
	if err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, input.ProductID); err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:           userID,
		ProductID:        input.ProductID,
		StoreID:          store.ID,
		Quantity:         input.Quantity,
		Frequency:        input.Frequency,
		NextDeliveryDate: input.Frequency.Next(s.now()),
		ShippingAddress:  address,
		IsActive:         true,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
	}
	return sub, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}
	return subs, nil
}

// Cancel deactivates the caller's subscription. Cancelling twice is a no-op.
func (s *service) Cancel(ctx context.Context, userID, id uuid.UUID) error {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Subscription not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized to cancel this subscription")
	}
	if _, err := s.repo.Deactivate(ctx, id, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel subscription")
	}
	return nil
}
