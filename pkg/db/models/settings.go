package models

import (
	"time"

	"github.com/lib/pq"
)

// SettingsKey identifies the singleton settings row.
const SettingsKey = "global"

// Settings holds admin-configurable operational knobs.
type Settings struct {
	Key                   string         `gorm:"column:key;primaryKey" json:"-"`
	DeliverySearchRadiusM int            `gorm:"column:delivery_search_radius_m;not null" json:"delivery_search_radius"`
	DeliveryStartHour     int            `gorm:"column:delivery_start_hour;not null" json:"delivery_start_hour"`
	DeliveryEndHour       int            `gorm:"column:delivery_end_hour;not null" json:"delivery_end_hour"`
	AllowedPincodes       pq.StringArray `gorm:"column:allowed_pincodes;type:text[];not null" json:"allowed_pincodes"`
	LowStockThreshold     int            `gorm:"column:low_stock_threshold;not null" json:"low_stock_threshold"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Settings) TableName() string { return "settings" }

// DefaultSettings is what the first read upserts.
func DefaultSettings() Settings {
	return Settings{
		Key:                   SettingsKey,
		DeliverySearchRadiusM: 5000,
		DeliveryStartHour:     6,
		DeliveryEndHour:       23,
		AllowedPincodes:       pq.StringArray{},
		LowStockThreshold:     10,
	}
}

// Serviceable reports whether pincode passes the allow-list. An empty list allows everything.
func (s Settings) Serviceable(pincode string) bool {
	if len(s.AllowedPincodes) == 0 {
		return true
	}
	for _, allowed := range s.AllowedPincodes {
		if allowed == pincode {
			return true
		}
	}
	return false
}
