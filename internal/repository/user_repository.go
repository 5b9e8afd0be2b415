package repository

import (
	"context"

	"github.com/yukikurage/task-assignment-api/internal/models"
	"gorm.io/gorm"
)

// GormUserRepository is a GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new user
func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID finds a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail finds a user by email
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// List lists users, newest first, or by username when filtered by role
func (r *GormUserRepository) List(ctx context.Context, role *models.Role) ([]models.User, error) {
	users := []models.User{}
	query := r.db.WithContext(ctx)

	if role != nil {
		query = query.Where("role = ?", string(*role)).Order("username ASC")
	} else {
		query = query.Order("created_at DESC").Order("id DESC")
	}

	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Update writes the given columns
func (r *GormUserRepository) Update(ctx context.Context, id uint64, fields map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

// UpdatePassword replaces the stored password hash
func (r *GormUserRepository) UpdatePassword(ctx context.Context, id uint64, passwordHash string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", passwordHash)
	return result.RowsAffected, result.Error
}

// Delete hard deletes a user
func (r *GormUserRepository) Delete(ctx context.Context, id uint64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.User{}, id)
	return result.RowsAffected, result.Error
}

// Stats counts users per role in one read
func (r *GormUserRepository) Stats(ctx context.Context) (UserStats, error) {
	var stats UserStats
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total_users,
			COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS admin_count,
			COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0) AS user_count
		FROM users
	`, string(models.RoleAdmin), string(models.RoleUser)).Scan(&stats).Error
	return stats, err
}
