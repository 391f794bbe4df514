package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/types"
)

// DarkStore is a micro-fulfillment location.
type DarkStore struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string               `gorm:"column:name;not null" json:"name"`
	Pincode   string               `gorm:"column:pincode;not null;index" json:"pincode"`
	Address   string               `gorm:"column:address;not null" json:"address"`
	Location  types.GeographyPoint `gorm:"column:location;type:geography(Point,4326);not null" json:"location"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (DarkStore) TableName() string { return "dark_stores" }

func (s *DarkStore) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
