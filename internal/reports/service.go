package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

// Summary is the admin dashboard snapshot.
type Summary struct {
	TotalOrders    int64                       `json:"total_orders"`
	Revenue        decimal.Decimal             `json:"revenue"`
	OrdersByStatus map[enums.OrderStatus]int64 `json:"orders_by_status"`
	Customers      int64                       `json:"customers"`
	LowStock       int64                       `json:"low_stock_products"`
}

// Service aggregates operational figures for admins.
type Service interface {
	Summary(ctx context.Context) (*Summary, error)
}

type settingsReader interface {
	Get(ctx context.Context) (*models.Settings, error)
}

type service struct {
	db       *gorm.DB
	settings settingsReader
}

func NewService(db *gorm.DB, settings settingsReader) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	return &service{db: db, settings: settings}, nil
}

type statusCount struct {
	Status enums.OrderStatus `gorm:"column:order_status"`
	Count  int64             `gorm:"column:count"`
}

func (s *service) Summary(ctx context.Context) (*Summary, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	conn := s.db.WithContext(ctx)
	out := &Summary{OrdersByStatus: make(map[enums.OrderStatus]int64)}

	var counts []statusCount
	if err := conn.Model(&models.Order{}).
		Select("order_status, COUNT(*) AS count").
		Group("order_status").
		Scan(&counts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count orders")
	}
	for _, c := range counts {
		out.OrdersByStatus[c.Status] = c.Count
		out.TotalOrders += c.Count
	}

	var revenue decimal.NullDecimal
	if err := conn.Model(&models.Order{}).
		Select("SUM(total_price)").
		Where("is_paid = ?", true).
		Scan(&revenue).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum revenue")
	}
	out.Revenue = decimal.Zero
	if revenue.Valid {
		out.Revenue = revenue.Decimal.Round(2)
	}

	if err := conn.Model(&models.User{}).Where("role = ?", enums.UserRoleCustomer).Count(&out.Customers).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count customers")
	}
	if err := conn.Model(&models.Product{}).Where("stock <= ?", cfg.LowStockThreshold).Count(&out.LowStock).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count low stock")
	}
	return out, nil
}
