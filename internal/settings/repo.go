package settings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
)

// Repository persists the singleton settings row.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Load returns the settings row, inserting defaults on first access. Concurrent first reads
// race on the primary key and the loser's insert is a no-op.
func (r *Repository) Load(ctx context.Context) (*models.Settings, error) {
	defaults := models.DefaultSettings()
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&defaults).Error; err != nil {
		return nil, err
	}

	var row models.Settings
	if err := r.db.WithContext(ctx).Where(&models.Settings{Key: models.SettingsKey}).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Save overwrites the singleton row.
func (r *Repository) Save(ctx context.Context, row *models.Settings) error {
	row.Key = models.SettingsKey
	return r.db.WithContext(ctx).Save(row).Error
}
