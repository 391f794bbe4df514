package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

type storeRepository interface {
	Create(ctx context.Context, store *models.DarkStore) error
	List(ctx context.Context) ([]models.DarkStore, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DarkStore, error)
	FindByPincode(ctx context.Context, pincode string) (*models.DarkStore, error)
	FindNearest(ctx context.Context, point types.GeographyPoint) (*models.DarkStore, error)
	DeleteCascade(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type serviceabilityChecker interface {
	IsServiceable(ctx context.Context, pincode string) (bool, error)
}

// Service resolves which dark store fulfils an address and administers stores.
type Service interface {
	Create(ctx context.Context, input CreateStoreInput) (*models.DarkStore, error)
	List(ctx context.Context) ([]models.DarkStore, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DarkStore, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ResolveForPoint(ctx context.Context, point types.GeographyPoint) (*models.DarkStore, error)
	ResolveForPincode(ctx context.Context, pincode string) (*models.DarkStore, error)
	IsServiceable(ctx context.Context, pincode string) (bool, error)
}

type service struct {
	repo     storeRepository
	settings serviceabilityChecker
	tx       db.TxRunner
}

// NewService builds a store service.
func NewService(repo storeRepository, settings serviceabilityChecker, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, settings: settings, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateStoreInput) (*models.DarkStore, error) {
	store := input.toModel()
	if err := store.Location.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store location")
	}
	if err := s.repo.Create(ctx, store); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create store")
	}
	return store, nil
}

func (s *service) List(ctx context.Context) ([]models.DarkStore, error) {
	stores, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stores")
	}
	return stores, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.DarkStore, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupErr(err, "store not found", "load store")
	}
	return store, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.DeleteCascade(ctx, tx, id)
	})
	return mapLookupErr(err, "store not found", "delete store")
}

// ResolveForPoint picks the nearest store to point.
func (s *service) ResolveForPoint(ctx context.Context, point types.GeographyPoint) (*models.DarkStore, error) {
	if err := point.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery coordinates")
	}
	store, err := s.repo.FindNearest(ctx, point)
	if err != nil {
		return nil, mapLookupErr(err, "no dark store serves this location", "resolve store by location")
	}
	return store, nil
}

// ResolveForPincode matches a store by exact pincode.
func (s *service) ResolveForPincode(ctx context.Context, pincode string) (*models.DarkStore, error) {
	trimmed := strings.TrimSpace(pincode)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pincode is required")
	}
	store, err := s.repo.FindByPincode(ctx, trimmed)
	if err != nil {
		return nil, mapLookupErr(err, "no dark store serves pincode "+trimmed, "resolve store by pincode")
	}
	return store, nil
}

func (s *service) IsServiceable(ctx context.Context, pincode string) (bool, error) {
	return s.settings.IsServiceable(ctx, pincode)
}

func mapLookupErr(err error, notFoundMsg, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFoundMsg)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
