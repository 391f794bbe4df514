package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/inventory"
	"github.com/quickkart/quickkart-backend/internal/notifications"
	"github.com/quickkart/quickkart-backend/internal/payments"
	"github.com/quickkart/quickkart-backend/internal/pricing"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

type cartSource interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	ClearWithTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type addressBook interface {
	FindAddress(ctx context.Context, userID, id uuid.UUID) (*models.UserAddress, error)
}

type storeDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*models.DarkStore, error)
	ResolveForPoint(ctx context.Context, point types.GeographyPoint) (*models.DarkStore, error)
	IsServiceable(ctx context.Context, pincode string) (bool, error)
}

type stockLedger interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Release(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

type pricer interface {
	Quote(ctx context.Context, lines []pricing.Line, couponCode string, now time.Time) (pricing.Totals, *models.Coupon, error)
	RedeemCoupon(ctx context.Context, tx *gorm.DB, code string, now time.Time) error
}

type paymentVerifier interface {
	Initiate(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) (*payments.Checkout, error)
	Check(c payments.Confirmation) error
}

type productLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// PartnerAssigner picks a delivery partner for a packed order and persists the choice. A nil
// id with a nil error means nobody was available.
type PartnerAssigner interface {
	AutoAssign(ctx context.Context, order *models.Order) (*uuid.UUID, error)
}

type notifier interface {
	Notify(ctx context.Context, msgs ...notifications.Message)
}

type transitionObserver interface {
	ObserveTransition(from, to string)
	ObserveRejection(code string)
}
