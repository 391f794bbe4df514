package delivery

import (
	"context"

	"github.com/google/uuid"

	"github.com/quickkart/quickkart-backend/internal/orders"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/maps"
)

// Track shows the customer where their rider is.
func (s *service) Track(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*Tracking, error) {
	order, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	view := &Tracking{
		OrderID:     order.ID,
		Status:      order.OrderStatus,
		Destination: order.ShippingAddress,
		PartnerID:   order.DeliveryPartnerID,
	}
	if order.DeliveryPartnerID == nil {
		return view, nil
	}
	partner, err := s.partners.FindByID(ctx, *order.DeliveryPartnerID)
	if err != nil {
		return nil, mapLookup(err, "Delivery partner not found")
	}
	view.PartnerName = partner.Name
	view.PartnerPhone = partner.Phone
	view.PartnerLocation = partner.CurrentLocation
	view.LocationAt = partner.LastLocationAt
	return view, nil
}

// ETA asks the routing provider for the rider's driving time to the customer. Missing
// coordinates and provider failures are returned, never replaced with a guess.
func (s *service) ETA(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*ETA, error) {
	order, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus != enums.OrderStatusOutForDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Order is not out for delivery")
	}
	if order.DeliveryPartnerID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Order has no delivery partner assigned")
	}
	destination := order.ShippingAddress.Location
	if destination == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Delivery address has no coordinates")
	}
	partner, err := s.partners.FindByID(ctx, *order.DeliveryPartnerID)
	if err != nil {
		return nil, mapLookup(err, "Delivery partner not found")
	}
	if partner.CurrentLocation == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Delivery partner location is unknown")
	}
	if s.router == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "routing provider not configured")
	}

	estimate, err := s.router.EstimateRoute(ctx,
		maps.LatLng{Latitude: partner.CurrentLocation.Lat, Longitude: partner.CurrentLocation.Lng},
		maps.LatLng{Latitude: destination.Lat, Longitude: destination.Lng},
	)
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "error": err.Error()}), "eta lookup failed")
		return nil, err
	}
	return &ETA{
		OrderID:         order.ID,
		DistanceMeters:  estimate.DistanceMeters,
		DistanceText:    estimate.DistanceText,
		DurationSeconds: estimate.DurationSeconds,
		DurationText:    estimate.DurationText,
	}, nil
}

func (s *service) visibleOrder(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == enums.UserRoleAdmin || actor.Role == enums.UserRoleStaff:
	case order.UserID == actor.UserID:
	case order.DeliveryPartnerID != nil && *order.DeliveryPartnerID == actor.UserID:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized to track this order")
	}
	return order, nil
}
