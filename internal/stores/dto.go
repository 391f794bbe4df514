package stores

import (
	"strings"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// CreateStoreInput is the admin payload for registering a dark store.
type CreateStoreInput struct {
	Name    string  `json:"name" validate:"required,min=2,max=120"`
	Pincode string  `json:"pincode" validate:"required,numeric,len=6"`
	Address string  `json:"address" validate:"required"`
	Lat     float64 `json:"lat" validate:"latitude"`
	Lng     float64 `json:"lng" validate:"longitude"`
}

func (in CreateStoreInput) toModel() *models.DarkStore {
	return &models.DarkStore{
		Name:     strings.TrimSpace(in.Name),
		Pincode:  strings.TrimSpace(in.Pincode),
		Address:  strings.TrimSpace(in.Address),
		Location: types.GeographyPoint{Lat: in.Lat, Lng: in.Lng},
	}
}
