package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/pagination"
)

type repository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Product, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error)
	CreateReview(ctx context.Context, tx *gorm.DB, review *models.ProductReview) error
	RecomputeRating(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (decimal.Decimal, int, error)
}

type stockAdjuster interface {
	Adjust(ctx context.Context, productID uuid.UUID, delta int) (*models.Product, error)
}

// Service exposes the catalog: public reads, admin updates and customer reviews.
type Service interface {
	Create(ctx context.Context, input CreateProductInput) (*models.Product, error)
	List(ctx context.Context, input ListInput) (pagination.Page[models.Product], error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Detail(ctx context.Context, id uuid.UUID) (*Detail, error)
	UpdateStock(ctx context.Context, id uuid.UUID, input UpdateStockInput) (*models.Product, error)
	AddReview(ctx context.Context, reviewer Reviewer, productID uuid.UUID, input ReviewInput) (*models.ProductReview, error)
}

// CreateProductInput is the admin payload for a new listing.
type CreateProductInput struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=4000"`
	Brand       string           `json:"brand" validate:"max=120"`
	Category    string           `json:"category" validate:"required,max=120"`
	Image       string           `json:"image" validate:"omitempty,url"`
	Price       decimal.Decimal  `json:"price" validate:"required"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	SaleEndDate *time.Time       `json:"sale_end_date"`
	Stock       int              `json:"stock" validate:"min=0"`
	IsAvailable *bool            `json:"is_available"`
}

// ListInput carries catalog filters and keyset pagination.
type ListInput struct {
	Category string
	Keyword  string
	InStock  bool
	Limit    int
	Cursor   string
}

// UpdateStockInput adjusts stock by a signed delta and optionally patches price fields.
type UpdateStockInput struct {
	Delta       int              `json:"delta"`
	Price       *decimal.Decimal `json:"price"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	SaleEndDate *time.Time       `json:"sale_end_date"`
	ClearSale   bool             `json:"clear_sale"`
	IsAvailable *bool            `json:"is_available"`
}

// ReviewInput is a customer's rating of a product.
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=1000"`
}

// Reviewer identifies the author of a review.
type Reviewer struct {
	ID   uuid.UUID
	Name string
}

// Detail is the product page payload.
type Detail struct {
	models.Product
	Reviews []models.ProductReview `json:"reviews"`
}

type service struct {
	repo  repository
	stock stockAdjuster
	tx    db.TxRunner
}

func NewService(repo repository, stock stockAdjuster, tx db.TxRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, stock: stock, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and category are required")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if err := validatePrices(input.Price, input.SalePrice); err != nil {
		return nil, err
	}

	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}
	product := &models.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Brand:       strings.TrimSpace(input.Brand),
		Category:    strings.TrimSpace(input.Category),
		Image:       input.Image,
		Price:       input.Price,
		SalePrice:   input.SalePrice,
		SaleEndDate: input.SaleEndDate,
		Stock:       input.Stock,
		IsAvailable: available,
		Rating:      decimal.Zero,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, input ListInput) (pagination.Page[models.Product], error) {
	if _, err := pagination.ParseCursor(input.Cursor); err != nil {
		return pagination.Page[models.Product]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	params := pagination.Params{Limit: input.Limit, Cursor: input.Cursor}
	rows, err := s.repo.List(ctx, ListFilter{Category: input.Category, Keyword: input.Keyword, InStock: input.InStock}, params)
	if err != nil {
		return pagination.Page[models.Product]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	return pagination.Build(rows, params, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	product, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, err := s.repo.ListReviews(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	if reviews == nil {
		reviews = []models.ProductReview{}
	}
	return &Detail{Product: *product, Reviews: reviews}, nil
}

func (s *service) UpdateStock(ctx context.Context, id uuid.UUID, input UpdateStockInput) (*models.Product, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	price := current.Price
	if input.Price != nil {
		price = *input.Price
		fields["price"] = price
	}
	salePrice := current.SalePrice
	switch {
	case input.ClearSale:
		salePrice = nil
		fields["sale_price"] = nil
		fields["sale_end_date"] = nil
	case input.SalePrice != nil:
		salePrice = input.SalePrice
		fields["sale_price"] = *input.SalePrice
		if input.SaleEndDate == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale_end_date is required with sale_price")
		}
		fields["sale_end_date"] = *input.SaleEndDate
	}
	if err := validatePrices(price, salePrice); err != nil {
		return nil, err
	}
	if input.IsAvailable != nil {
		fields["is_available"] = *input.IsAvailable
	}

	if input.Delta != 0 {
		if _, err := s.stock.Adjust(ctx, id, input.Delta); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return s.GetByID(ctx, id)
}

// AddReview stores one review per customer and refreshes the derived rating in the same
// transaction.
func (s *service) AddReview(ctx context.Context, reviewer Reviewer, productID uuid.UUID, input ReviewInput) (*models.ProductReview, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if strings.TrimSpace(input.Comment) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment is required")
	}
	if _, err := s.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	review := &models.ProductReview{
		ProductID: productID,
		UserID:    reviewer.ID,
		UserName:  reviewer.Name,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateReview(ctx, tx, review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "Product already reviewed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review")
		}
		if _, _, err := s.repo.RecomputeRating(ctx, tx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recompute rating")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

func validatePrices(price decimal.Decimal, sale *decimal.Decimal) error {
	if !price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if sale != nil && (!sale.IsPositive() || sale.GreaterThanOrEqual(price)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale_price must be positive and below price")
	}
	return nil
}
