package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their item snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error)
	List(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, error)
	ListByPartner(ctx context.Context, partnerID uuid.UUID, statuses []enums.OrderStatus, params pagination.Params) ([]models.Order, error)
	Transition(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error)
	UpdateIf(ctx context.Context, id uuid.UUID, condition string, args []any, fields map[string]any) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order together with its item snapshots.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_gateway_order_id = ?", gatewayOrderID).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	query, err := pagination.Apply(r.db.WithContext(ctx).Preload("Items").Where("user_id = ?", userID), "orders", params)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) List(ctx context.Context, status enums.OrderStatus, params pagination.Params) ([]models.Order, error) {
	base := r.db.WithContext(ctx).Preload("Items")
	if status != "" {
		base = base.Where("order_status = ?", status)
	}
	query, err := pagination.Apply(base, "orders", params)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByPartner pages through orders assigned to a delivery partner, optionally narrowed to
// statuses.
func (r *repository) ListByPartner(ctx context.Context, partnerID uuid.UUID, statuses []enums.OrderStatus, params pagination.Params) ([]models.Order, error) {
	base := r.db.WithContext(ctx).Preload("Items").Where("delivery_partner_id = ?", partnerID)
	if len(statuses) > 0 {
		base = base.Where("order_status IN ?", statuses)
	}
	query, err := pagination.Apply(base, "orders", params)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Transition moves an order from -> to only if it is still in from. It reports whether the
// row was updated, so concurrent transitions cannot both apply.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["order_status"] = to

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND order_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateIf applies fields when condition still holds for the order.
func (r *repository) UpdateIf(ctx context.Context, id uuid.UUID, condition string, args []any, fields map[string]any) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id)
	if condition != "" {
		query = query.Where(condition, args...)
	}
	res := query.Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
