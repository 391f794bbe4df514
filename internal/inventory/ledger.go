package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

// Line is one product quantity to reserve or release.
type Line struct {
	ProductID uuid.UUID
	Name      string
	Qty       int
}

// Service is the stock ledger. Every mutation is a single conditional UPDATE so concurrent
// orders can never drive stock below zero.
type Service interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error
	Release(ctx context.Context, tx *gorm.DB, lines []Line) error
	Adjust(ctx context.Context, productID uuid.UUID, delta int) (*models.Product, error)
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db}, nil
}

func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND is_available = ? AND stock >= ?", productID, true, qty).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check availability")
	}
	return count > 0, nil
}

// Reserve decrements stock for every line inside tx. Lines for the same product are merged
// and applied in product id order so two orders touching the same rows lock them in the same
// sequence. The first line that cannot be satisfied aborts with a Conflict; the caller's
// transaction rollback discards any decrement already applied.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	for _, line := range merged {
		res := tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ? AND is_available = ? AND stock >= ?", line.ProductID, true, line.Qty).
			Update("stock", gorm.Expr("stock - ?", line.Qty))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "Not enough stock for %s", line.Name).
				WithDetails(map[string]any{"product_id": line.ProductID, "requested": line.Qty})
		}
	}
	return nil
}

// Release returns reserved quantities to stock. Callers guard it with a status transition so
// it runs at most once per order.
func (s *service) Release(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	for _, line := range merged {
		err := tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", line.ProductID).
			Update("stock", gorm.Expr("stock + ?", line.Qty)).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release stock")
		}
	}
	return nil
}

// Adjust applies an admin restock or write-off. Negative deltas may not take stock below zero.
func (s *service) Adjust(ctx context.Context, productID uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock delta must be non-zero")
	}

	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND stock + ? >= 0", productID, delta).
			Update("stock", gorm.Expr("stock + ?", delta))
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "adjust stock")
		}
		if err := tx.Where("id = ?", productID).Take(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.Newf(pkgerrors.CodeConflict, "Not enough stock for %s", product.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// LowStock lists products at or below threshold, lowest stock first.
func (s *service) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("stock <= ?", threshold).
		Order("stock ASC").Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock products")
	}
	return products, nil
}

func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no items to reserve")
	}

	byProduct := make(map[uuid.UUID]*Line, len(lines))
	merged := make([]Line, 0, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid quantity for %s", line.Name)
		}
		if existing, ok := byProduct[line.ProductID]; ok {
			existing.Qty += line.Qty
			continue
		}
		merged = append(merged, line)
		byProduct[line.ProductID] = &merged[len(merged)-1]
	}

	sort.Slice(merged, func(i, j int) bool {
		return bytes.Compare(merged[i].ProductID[:], merged[j].ProductID[:]) < 0
	})
	return merged, nil
}
