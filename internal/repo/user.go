package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/hospital_portal/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	tx := r.DB.WithContext(ctx).Where("email = ?", u.Email).FirstOrCreate(u)
	if tx.Error != nil {
		if isUniqueViolation(tx.Error) {
			return ErrEmailTaken
		}
		return fmt.Errorf("creating user: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrEmailTaken
	}
	return nil
}

func (r *GormRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *GormRepo) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// AssignUserID gives a user stored without an identifier a fresh one.
func (r *GormRepo) AssignUserID(ctx context.Context, u *models.User) error {
	id := uuid.New()
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND id = ?", u.Email, uuid.Nil).
		Update("id", id)
	if res.Error != nil {
		return fmt.Errorf("assigning user id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	u.ID = id
	return nil
}

func (r *GormRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}
