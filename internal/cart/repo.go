package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
)

// Repository persists cart lines.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListByUser returns the user's lines oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Upsert inserts the line or replaces quantity and snapshots of an existing one.
func (r *Repository) Upsert(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"store_id", "name", "image", "price", "qty", "updated_at"}),
		}).
		Create(item).Error
}

// Touch marks every line of the cart as recently used so idle cleanup treats the cart as one unit.
func (r *Repository) Touch(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("user_id = ?", userID).
		UpdateColumn("updated_at", now).Error
}

func (r *Repository) DeleteItem(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.ClearWithTx(ctx, r.db, userID)
}

// ClearWithTx empties the cart inside a checkout transaction.
func (r *Repository) ClearWithTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if tx == nil {
		return gorm.ErrInvalidTransaction
	}
	return tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

// DeleteIdleBefore removes whole carts whose most recent change is older than cutoff.
func (r *Repository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	idleUsers := r.db.Model(&models.CartItem{}).
		Select("user_id").
		Group("user_id").
		Having("MAX(updated_at) < ?", cutoff)

	res := r.db.WithContext(ctx).
		Where("user_id IN (?)", idleUsers).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
