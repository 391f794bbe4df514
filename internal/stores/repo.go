package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

const storeRemovedReason = "dark store removed"

// Repository handles dark store persistence and PostGIS lookups.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new store row.
func (r *Repository) Create(ctx context.Context, store *models.DarkStore) error {
	if store == nil {
		return fmt.Errorf("store is required")
	}
	return r.db.WithContext(ctx).Create(store).Error
}

// List returns every store ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.DarkStore, error) {
	var stores []models.DarkStore
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// FindByID loads a store by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DarkStore, error) {
	var store models.DarkStore
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// FindByPincode returns the oldest store registered for the pincode.
func (r *Repository) FindByPincode(ctx context.Context, pincode string) (*models.DarkStore, error) {
	var store models.DarkStore
	if err := r.db.WithContext(ctx).
		Where("pincode = ?", pincode).
		Order("created_at ASC").
		Take(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// FindNearest orders stores by KNN distance to point. Distance is unbounded.
func (r *Repository) FindNearest(ctx context.Context, point types.GeographyPoint) (*models.DarkStore, error) {
	var store models.DarkStore
	err := r.db.WithContext(ctx).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "location <-> ST_GeogFromText(?)",
			Vars: []any{point.EWKT()},
		}}).
		Take(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}

// DeleteCascade removes a store with its cart lines and deactivates its subscriptions.
// Orders keep their history; the foreign key nulls dark_store_id.
func (r *Repository) DeleteCascade(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	tx = tx.WithContext(ctx)

	if err := tx.Where("store_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("delete cart items: %w", err)
	}
	if err := tx.Model(&models.Subscription{}).
		Where("store_id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "last_error": storeRemovedReason}).Error; err != nil {
		return fmt.Errorf("deactivate subscriptions: %w", err)
	}

	res := tx.Where("id = ?", id).Delete(&models.DarkStore{})
	if res.Error != nil {
		return fmt.Errorf("delete store: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
