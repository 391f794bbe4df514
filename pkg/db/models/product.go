package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing. Stock is the single source of truth for sellable quantity.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string           `gorm:"column:name;not null" json:"name"`
	Description string           `gorm:"column:description;not null" json:"description"`
	Brand       string           `gorm:"column:brand;not null" json:"brand"`
	Category    string           `gorm:"column:category;not null;index" json:"category"`
	Image       string           `gorm:"column:image;not null" json:"image"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	SalePrice   *decimal.Decimal `gorm:"column:sale_price;type:numeric(12,2)" json:"sale_price,omitempty"`
	SaleEndDate *time.Time       `gorm:"column:sale_end_date" json:"sale_end_date,omitempty"`
	Stock       int              `gorm:"column:stock;not null" json:"stock"`
	IsAvailable bool             `gorm:"column:is_available;not null" json:"is_available"`
	Rating      decimal.Decimal  `gorm:"column:rating;type:numeric(2,1);not null" json:"rating"`
	NumReviews  int              `gorm:"column:num_reviews;not null" json:"num_reviews"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// SaleActive reports whether the sale price applies at now.
func (p Product) SaleActive(now time.Time) bool {
	return p.SalePrice != nil && p.SaleEndDate != nil && p.SaleEndDate.After(now)
}

// EffectivePrice is the price a cart line snapshots at add time.
func (p Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.SaleActive(now) {
		return *p.SalePrice
	}
	return p.Price
}

// ProductReview is one customer's rating of a product.
type ProductReview struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_reviews_product_user" json:"product_id"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_product_reviews_product_user" json:"user_id"`
	UserName  string    `gorm:"column:user_name;not null" json:"user_name"`
	Rating    int       `gorm:"column:rating;not null" json:"rating"`
	Comment   string    `gorm:"column:comment;not null" json:"comment"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (r *ProductReview) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
