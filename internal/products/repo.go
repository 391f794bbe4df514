package products

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/pagination"
)

// ListFilter narrows the public catalog listing.
type ListFilter struct {
	Category string
	Keyword  string
	InStock  bool
}

// Repository persists products and their reviews.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if category := strings.TrimSpace(filter.Category); category != "" {
		query = query.Where("category = ?", category)
	}
	if keyword := strings.ToLower(strings.TrimSpace(filter.Keyword)); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(brand) LIKE ?", like, like)
	}
	if filter.InStock {
		query = query.Where("is_available = ? AND stock > 0", true)
	}

	query, err := pagination.Apply(query, "products", params)
	if err != nil {
		return nil, err
	}

	var rows []models.Product
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateFields patches catalog columns. Stock is owned by the inventory ledger and never
// passes through here.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error) {
	var reviews []models.ProductReview
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *Repository) CreateReview(ctx context.Context, tx *gorm.DB, review *models.ProductReview) error {
	return tx.WithContext(ctx).Create(review).Error
}

type ratingAggregate struct {
	Total int64
	Count int64
}

// RecomputeRating refreshes rating and num_reviews from product_reviews inside tx.
func (r *Repository) RecomputeRating(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (decimal.Decimal, int, error) {
	var agg ratingAggregate
	err := tx.WithContext(ctx).Model(&models.ProductReview{}).
		Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).Error
	if err != nil {
		return decimal.Zero, 0, err
	}

	rating := averageRating(agg.Total, agg.Count)
	err = tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{"rating": rating, "num_reviews": agg.Count}).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	return rating, int(agg.Count), nil
}

func averageRating(total, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(total).Div(decimal.NewFromInt(count)).Round(1)
}
