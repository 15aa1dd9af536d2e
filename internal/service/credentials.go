package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Skotchmaster/hospital_portal/internal/hash"
	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/repo"
)

var (
	errUnknownEmail  = errors.New("no account for email")
	errWrongPassword = errors.New("password does not match")
)

// verifyCredentials keeps the two failure reasons apart for logging. Callers
// must not let the difference reach the client.
func (s *AuthService) verifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			hash.BurnCompare(password)
			return nil, errUnknownEmail
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, errWrongPassword
	}

	if err := s.ensureUserID(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ensureUserID(ctx context.Context, u *models.User) error {
	if u.ID != uuid.Nil {
		return nil
	}
	if err := s.users.AssignUserID(ctx, u); err != nil {
		return fmt.Errorf("assigning missing user id: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", u.ID.String()).Msg("assigned id to legacy account")
	return nil
}
