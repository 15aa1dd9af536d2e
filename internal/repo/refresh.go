package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/hospital_portal/internal/hash"
	"github.com/Skotchmaster/hospital_portal/internal/models"
)

type NewRefreshToken struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

func (r *GormRepo) CreateRefreshToken(ctx context.Context, in NewRefreshToken) (*models.RefreshToken, error) {
	rec := models.RefreshToken{
		TokenHash:   hash.Sha256Hex(in.Token),
		UserID:      in.UserID,
		ExpiresAt:   in.ExpiresAt.UTC(),
		CreatedByIP: in.IP,
		UserAgent:   truncate(in.UserAgent, 255),
	}
	if err := r.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	return &rec, nil
}

func (r *GormRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("token_hash = ?", hash.Sha256Hex(token)).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// FindRotatedFrom returns the record whose previous value was token.
func (r *GormRepo) FindRotatedFrom(ctx context.Context, token string) (*models.RefreshToken, error) {
	var rec models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("rotated_from = ?", hash.Sha256Hex(token)).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// RotateRefreshToken swaps the stored token in place. The swap only happens
// if the row still holds the hash rec was read with, so of two concurrent
// rotations of the same token exactly one succeeds.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, rec *models.RefreshToken, newToken string, expiresAt time.Time) error {
	newHash := hash.Sha256Hex(newToken)
	expiresAt = expiresAt.UTC()

	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND token_hash = ?", rec.ID, rec.TokenHash).
		Updates(map[string]any{
			"token_hash":    newHash,
			"expires_at":    expiresAt,
			"revoked":       false,
			"revoked_at":    nil,
			"revoked_by_ip": "",
			"rotated_from":  rec.TokenHash,
		})
	if res.Error != nil {
		return fmt.Errorf("rotating refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRotationConflict
	}

	rec.RotatedFrom = rec.TokenHash
	rec.TokenHash = newHash
	rec.ExpiresAt = expiresAt
	rec.Revoked = false
	rec.RevokedAt = nil
	rec.RevokedByIP = ""
	return nil
}

func (r *GormRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	err := r.DB.WithContext(ctx).
		Where("token_hash = ?", hash.Sha256Hex(token)).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

func (r *GormRepo) RevokeUserRefreshTokens(ctx context.Context, userID uuid.UUID, ip string) (int64, error) {
	now := time.Now().UTC()
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{
			"revoked":       true,
			"revoked_at":    now,
			"revoked_by_ip": ip,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("revoking refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormRepo) ListUserRefreshTokens(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	var recs []models.RefreshToken
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND revoked = ?", userID, false).
		Order("created_at desc").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing refresh tokens: %w", err)
	}
	return recs, nil
}

func (r *GormRepo) PruneRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ? OR revoked = ?", before.UTC(), true).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
