package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
)

// Repository persists subscriptions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// ListDue returns active subscriptions whose next delivery is at or before now, oldest first.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND next_delivery_date <= ?", true, now).
		Order("next_delivery_date ASC").
		Find(&subs).Error
	return subs, err
}

// Deactivate switches a subscription off. It reports false when it was already inactive.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID, reason *string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "last_error": reason})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Advance moves the schedule forward if it still reads due. The guard keeps two runners from
// placing the same delivery twice.
func (r *Repository) Advance(ctx context.Context, tx *gorm.DB, id uuid.UUID, due, next time.Time, orderID uuid.UUID) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND is_active = ? AND next_delivery_date = ?", id, true, due).
		Updates(map[string]any{
			"next_delivery_date": next,
			"last_order_id":      orderID,
			"last_error":         nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
