package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/hospital_portal/internal/google"
	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/repo"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AssignUserID(ctx context.Context, u *models.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, in repo.NewRefreshToken) (*models.RefreshToken, error)
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	FindRotatedFrom(ctx context.Context, token string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, rec *models.RefreshToken, newToken string, expiresAt time.Time) error
	DeleteRefreshToken(ctx context.Context, token string) error
	RevokeUserRefreshTokens(ctx context.Context, userID uuid.UUID, ip string) (int64, error)
	ListUserRefreshTokens(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error)
	PruneRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (*google.Profile, error)
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

type UserIndexer interface {
	IndexUser(ctx context.Context, u *models.User) error
}

const (
	EventUserRegistered = "user_registered"
	EventUserLoggedIn   = "user_logged_in"
)

type UserEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	Provider   string    `json:"provider"`
	IP         string    `json:"ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
