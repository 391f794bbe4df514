package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

type repository interface {
	Load(ctx context.Context) (*models.Settings, error)
	Save(ctx context.Context, row *models.Settings) error
}

// Service exposes the operational settings singleton.
type Service interface {
	Get(ctx context.Context) (*models.Settings, error)
	Update(ctx context.Context, input UpdateInput) (*models.Settings, error)
	IsServiceable(ctx context.Context, pincode string) (bool, error)
}

// UpdateInput carries the admin-editable fields. Nil pointers leave values untouched.
type UpdateInput struct {
	DeliverySearchRadiusM *int      `json:"delivery_search_radius" validate:"omitempty,min=100,max=50000"`
	DeliveryStartHour     *int      `json:"delivery_start_hour" validate:"omitempty,min=0,max=23"`
	DeliveryEndHour       *int      `json:"delivery_end_hour" validate:"omitempty,min=1,max=24"`
	AllowedPincodes       *[]string `json:"allowed_pincodes"`
	LowStockThreshold     *int      `json:"low_stock_threshold" validate:"omitempty,min=0"`
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context) (*models.Settings, error) {
	row, err := s.repo.Load(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settings")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.Settings, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if input.DeliverySearchRadiusM != nil {
		row.DeliverySearchRadiusM = *input.DeliverySearchRadiusM
	}
	if input.DeliveryStartHour != nil {
		row.DeliveryStartHour = *input.DeliveryStartHour
	}
	if input.DeliveryEndHour != nil {
		row.DeliveryEndHour = *input.DeliveryEndHour
	}
	if input.LowStockThreshold != nil {
		row.LowStockThreshold = *input.LowStockThreshold
	}
	if input.AllowedPincodes != nil {
		pincodes := pq.StringArray{}
		for _, p := range *input.AllowedPincodes {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				pincodes = append(pincodes, trimmed)
			}
		}
		row.AllowedPincodes = pincodes
	}
	if row.DeliveryStartHour >= row.DeliveryEndHour {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery start hour must be before end hour")
	}

	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save settings")
	}
	return row, nil
}

// IsServiceable applies the pincode allow-list. An empty list serves every pincode.
func (s *service) IsServiceable(ctx context.Context, pincode string) (bool, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	return row.Serviceable(strings.TrimSpace(pincode)), nil
}
