package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error)
	CountAddresses(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	ClearDefaultAddress(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	CreateAddress(ctx context.Context, tx *gorm.DB, address *models.UserAddress) error
}

// Service covers the signed-in user's profile and address book.
type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error)
	AddAddress(ctx context.Context, userID uuid.UUID, input AddressInput) (*models.UserAddress, error)
}

type service struct {
	repo repository
	tx   db.TxRunner
}

func NewService(repo repository, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error) {
	addresses, err := s.repo.ListAddresses(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list addresses")
	}
	if addresses == nil {
		addresses = []models.UserAddress{}
	}
	return addresses, nil
}

// AddAddress saves an address. The first address is always the default and a new default
// demotes the previous one in the same transaction.
func (s *service) AddAddress(ctx context.Context, userID uuid.UUID, input AddressInput) (*models.UserAddress, error) {
	if err := input.Address.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
	}

	address := &models.UserAddress{UserID: userID, Address: input.Address, IsDefault: input.IsDefault}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := s.repo.CountAddresses(ctx, tx, userID)
		if err != nil {
			return err
		}
		if count == 0 {
			address.IsDefault = true
		}
		if address.IsDefault && count > 0 {
			if err := s.repo.ClearDefaultAddress(ctx, tx, userID); err != nil {
				return err
			}
		}
		return s.repo.CreateAddress(ctx, tx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save address")
	}
	return address, nil
}
