package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/quickkart/quickkart-backend/internal/users"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// Candidate is an online delivery partner within the search radius of an order.
type Candidate struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Phone          *string               `json:"phone,omitempty"`
	Location       *types.GeographyPoint `json:"current_location,omitempty"`
	DistanceMeters float64               `json:"distance_meters"`
}

func candidateFrom(p users.PartnerDistance) Candidate {
	return Candidate{
		ID:             p.ID,
		Name:           p.Name,
		Phone:          p.Phone,
		Location:       p.CurrentLocation,
		DistanceMeters: p.DistanceMeters,
	}
}

// StatusInput toggles a partner's availability.
type StatusInput struct {
	IsOnline *bool `json:"is_online" validate:"required"`
}

// LocationInput is a partner position ping.
type LocationInput struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// AssignInput names the partner an admin hands an order to.
type AssignInput struct {
	PartnerID uuid.UUID `json:"partner_id" validate:"required"`
}

// Tracking is the customer-facing view of an order on the road.
type Tracking struct {
	OrderID         uuid.UUID             `json:"order_id"`
	Status          enums.OrderStatus     `json:"order_status"`
	Destination     types.Address         `json:"shipping_address"`
	PartnerID       *uuid.UUID            `json:"delivery_partner_id,omitempty"`
	PartnerName     string                `json:"delivery_partner_name,omitempty"`
	PartnerPhone    *string               `json:"delivery_partner_phone,omitempty"`
	PartnerLocation *types.GeographyPoint `json:"delivery_partner_location,omitempty"`
	LocationAt      *time.Time            `json:"location_updated_at,omitempty"`
}

// ETA is the routing provider's driving estimate from partner to customer.
type ETA struct {
	OrderID         uuid.UUID `json:"order_id"`
	DistanceMeters  int64     `json:"distance_meters"`
	DistanceText    string    `json:"distance"`
	DurationSeconds int64     `json:"duration_seconds"`
	DurationText    string    `json:"duration"`
}
