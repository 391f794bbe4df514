package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

// Repository exposes user, address and partner persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Omit("current_location").Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// ListByRole returns users holding role, oldest first.
func (r *Repository) ListByRole(ctx context.Context, role enums.UserRole) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("role = ?", role).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// CountByRole counts users holding role.
func (r *Repository) CountByRole(ctx context.Context, role enums.UserRole) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

// SetOnline toggles a delivery partner's availability.
func (r *Repository) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND role = ?", id, enums.UserRoleDeliveryPartner).
		UpdateColumn("is_online", online)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateLocation stores a delivery partner's latest position.
func (r *Repository) UpdateLocation(ctx context.Context, id uuid.UUID, point types.GeographyPoint, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND role = ?", id, enums.UserRoleDeliveryPartner).
		UpdateColumns(map[string]any{
			"current_location": gorm.Expr("ST_GeogFromText(?)", point.EWKT()),
			"last_location_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindNearestPartners lists online delivery partners within radiusMeters of point,
// nearest first.
func (r *Repository) FindNearestPartners(ctx context.Context, point types.GeographyPoint, radiusMeters float64, limit int) ([]PartnerDistance, error) {
	origin := point.EWKT()
	var partners []PartnerDistance
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("users.*, ST_Distance(current_location, ST_GeogFromText(?)) AS distance_meters", origin).
		Where("role = ? AND is_online = ? AND current_location IS NOT NULL", enums.UserRoleDeliveryPartner, true).
		Where("ST_DWithin(current_location, ST_GeogFromText(?), ?)", origin, radiusMeters).
		Order("distance_meters ASC").
		Limit(limit).
		Scan(&partners).Error
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// ListAddresses returns saved addresses with the default first.
func (r *Repository) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.UserAddress, error) {
	var addresses []models.UserAddress
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}

// FindAddress loads one saved address owned by userID.
func (r *Repository) FindAddress(ctx context.Context, userID, id uuid.UUID) (*models.UserAddress, error) {
	var address models.UserAddress
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&address).Error; err != nil {
		return nil, err
	}
	return &address, nil
}

// CountAddresses counts a user's saved addresses inside tx.
func (r *Repository) CountAddresses(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.UserAddress{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// ClearDefaultAddress unsets the default flag on every address of userID inside tx.
func (r *Repository) ClearDefaultAddress(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return tx.WithContext(ctx).
		Model(&models.UserAddress{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		UpdateColumn("is_default", false).Error
}

// CreateAddress inserts a saved address inside tx.
func (r *Repository) CreateAddress(ctx context.Context, tx *gorm.DB, address *models.UserAddress) error {
	return tx.WithContext(ctx).Create(address).Error
}
