package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/orders"
	"github.com/quickkart/quickkart-backend/internal/users"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/maps"
	"github.com/quickkart/quickkart-backend/pkg/pagination"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

const (
	defaultSearchRadiusM = 5000
	candidateLimit       = 10
)

// Service assigns riders to orders and exposes their position to customers.
type Service interface {
	FindNearestPartners(ctx context.Context, orderID uuid.UUID) ([]Candidate, error)
	AutoAssign(ctx context.Context, order *models.Order) (*uuid.UUID, error)
	ManualAssign(ctx context.Context, orderID, partnerID uuid.UUID) (*models.Order, error)
	SetStatus(ctx context.Context, partnerID uuid.UUID, online bool) error
	UpdateLocation(ctx context.Context, partnerID uuid.UUID, point types.GeographyPoint) error
	MyOrders(ctx context.Context, partnerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error)
	Track(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*Tracking, error)
	ETA(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*ETA, error)
}

type partnerDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
	UpdateLocation(ctx context.Context, id uuid.UUID, point types.GeographyPoint, at time.Time) error
	FindNearestPartners(ctx context.Context, point types.GeographyPoint, radiusMeters float64, limit int) ([]users.PartnerDistance, error)
}

type settingsReader interface {
	Get(ctx context.Context) (*models.Settings, error)
}

type storeDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.DarkStore, error)
}

type router interface {
	EstimateRoute(ctx context.Context, origin, destination maps.LatLng) (*maps.RouteEstimate, error)
}

type service struct {
	orders   orders.Repository
	partners partnerDirectory
	settings settingsReader
	stores   storeDirectory
	router   router
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires delivery assignment. router may be nil when no routing key is configured;
// ETA then reports an upstream error.
func NewService(orderRepo orders.Repository, partners partnerDirectory, settings settingsReader, stores storeDirectory, router router, logg *logger.Logger) (Service, error) {
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if partners == nil {
		return nil, fmt.Errorf("partner directory required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store directory required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:   orderRepo,
		partners: partners,
		settings: settings,
		stores:   stores,
		router:   router,
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// FindNearestPartners lists online partners around the order's drop point, nearest first.
func (s *service) FindNearestPartners(ctx context.Context, orderID uuid.UUID) ([]Candidate, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	found, err := s.nearest(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No delivery partners available nearby")
	}
	out := make([]Candidate, 0, len(found))
	for _, p := range found {
		out = append(out, candidateFrom(p))
	}
	return out, nil
}

// AutoAssign gives the order to the nearest online partner unless someone already holds it.
func (s *service) AutoAssign(ctx context.Context, order *models.Order) (*uuid.UUID, error) {
	if order == nil {
		return nil, fmt.Errorf("order required")
	}
	if order.DeliveryPartnerID != nil {
		return order.DeliveryPartnerID, nil
	}
	found, err := s.nearest(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	candidate := found[0]
	ok, err := s.orders.UpdateIf(ctx, order.ID,
		"order_status IN ? AND delivery_partner_id IS NULL",
		[]any{[]enums.OrderStatus{enums.OrderStatusPlaced, enums.OrderStatusPacked}},
		map[string]any{"delivery_partner_id": candidate.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign delivery partner")
	}
	if !ok {
		// claimed in the meantime or no longer assignable
		return nil, nil
	}
	id := candidate.ID
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":        order.ID.String(),
		"partner_id":      id.String(),
		"distance_meters": candidate.DistanceMeters,
	}), "delivery partner assigned")
	return &id, nil
}

// ManualAssign hands an order that is not yet on the road to a specific partner.
func (s *service) ManualAssign(ctx context.Context, orderID, partnerID uuid.UUID) (*models.Order, error) {
	partner, err := s.partners.FindByID(ctx, partnerID)
	if err != nil {
		return nil, mapLookup(err, "Delivery partner not found")
	}
	if partner.Role != enums.UserRoleDeliveryPartner {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "User is not a delivery partner")
	}
	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}

	ok, err := s.orders.UpdateIf(ctx, orderID, "order_status IN ?",
		[]any{[]enums.OrderStatus{enums.OrderStatusPlaced, enums.OrderStatusPacked}},
		map[string]any{"delivery_partner_id": partner.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign delivery partner")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Order can no longer be reassigned")
	}
	return s.loadOrder(ctx, orderID)
}

func (s *service) SetStatus(ctx context.Context, partnerID uuid.UUID, online bool) error {
	if err := s.partners.SetOnline(ctx, partnerID, online); err != nil {
		return mapLookup(err, "Delivery partner not found")
	}
	return nil
}

func (s *service) UpdateLocation(ctx context.Context, partnerID uuid.UUID, point types.GeographyPoint) error {
	if err := point.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location")
	}
	if err := s.partners.UpdateLocation(ctx, partnerID, point, s.now()); err != nil {
		return mapLookup(err, "Delivery partner not found")
	}
	return nil
}

// MyOrders lists the partner's open assignments.
func (s *service) MyOrders(ctx context.Context, partnerID uuid.UUID, params pagination.Params) (pagination.Page[models.Order], error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	active := []enums.OrderStatus{enums.OrderStatusPlaced, enums.OrderStatusPacked, enums.OrderStatusOutForDelivery}
	rows, err := s.orders.ListByPartner(ctx, partnerID, active, params)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list partner orders")
	}
	return pagination.Build(rows, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

// nearest searches around the drop point, falling back to the fulfilling store when the
// address carries no coordinates.
func (s *service) nearest(ctx context.Context, order *models.Order) ([]users.PartnerDistance, error) {
	origin, err := s.originFor(ctx, order)
	if err != nil {
		return nil, err
	}
	radius := defaultSearchRadiusM
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "settings unavailable, using default search radius")
	} else if cfg.DeliverySearchRadiusM > 0 {
		radius = cfg.DeliverySearchRadiusM
	}

	found, err := s.partners.FindNearestPartners(ctx, origin, float64(radius), candidateLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search delivery partners")
	}
	return found, nil
}

func (s *service) originFor(ctx context.Context, order *models.Order) (types.GeographyPoint, error) {
	if loc := order.ShippingAddress.Location; loc != nil {
		return *loc, nil
	}
	if order.DarkStoreID == nil {
		return types.GeographyPoint{}, pkgerrors.New(pkgerrors.CodeValidation, "Order has no delivery coordinates")
	}
	store, err := s.stores.Get(ctx, *order.DarkStoreID)
	if err != nil {
		return types.GeographyPoint{}, err
	}
	return store.Location, nil
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookup(err, "Order not found")
	}
	return order, nil
}

func mapLookup(err error, notFound string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delivery lookup")
}
