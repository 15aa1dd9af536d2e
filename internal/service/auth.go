package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skotchmaster/hospital_portal/internal/google"
	"github.com/Skotchmaster/hospital_portal/internal/hash"
	"github.com/Skotchmaster/hospital_portal/internal/metrics"
	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/repo"
	"github.com/Skotchmaster/hospital_portal/internal/tokens"
)

type Deps struct {
	Users     UserRepository
	Tokens    RefreshTokenStore
	Issuer    *tokens.Issuer
	Google    GoogleVerifier
	Events    EventPublisher
	Index     UserIndexer
	Metrics   *metrics.Collector
	UserTopic string
}

type AuthService struct {
	users   UserRepository
	tokens  RefreshTokenStore
	issuer  *tokens.Issuer
	google  GoogleVerifier
	events  EventPublisher
	index   UserIndexer
	metrics *metrics.Collector
	topic   string
	tracer  trace.Tracer
	now     func() time.Time
}

func NewAuthService(d Deps) *AuthService {
	topic := d.UserTopic
	if topic == "" {
		topic = "user_events"
	}
	return &AuthService{
		users:   d.Users,
		tokens:  d.Tokens,
		issuer:  d.Issuer,
		google:  d.Google,
		events:  d.Events,
		index:   d.Index,
		metrics: d.Metrics,
		topic:   topic,
		tracer:  otel.Tracer("github.com/Skotchmaster/hospital_portal/internal/service"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type Session struct {
	User   *models.User
	Tokens *tokens.Pair
}

type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

type RefreshInput struct {
	Token string
	IP    string
}

type GoogleLoginInput struct {
	Credential string
	IP         string
	UserAgent  string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Register")
	defer span.End()
	l := zerolog.Ctx(ctx).With().Str("svc", "auth.register").Logger()

	in.Email = normalizeEmail(in.Email)
	if err := validateRegistration(in); err != nil {
		l.Warn().Err(err).Msg("register rejected")
		return nil, err
	}

	_, err := s.users.FindUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, ErrEmailInUse
	case !errors.Is(err, repo.ErrNotFound):
		return nil, s.fail(span, l, "register failed", err)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, s.fail(span, l, "hashing password", err)
	}

	user := &models.User{
		Email:        in.Email,
		PasswordHash: pwHash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Gender:       models.Gender(strings.ToLower(in.Gender)),
		Location:     strings.TrimSpace(in.Location),
		Role:         models.RolePatient,
		IsActive:     true,
		AuthProvider: models.ProviderLocal,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return nil, ErrEmailInUse
		}
		return nil, s.fail(span, l, "register failed", err)
	}

	s.indexUser(ctx, user)
	s.publish(ctx, EventUserRegistered, user, in.IP)
	s.metrics.Registration(models.ProviderLocal)
	l.Info().Str("user_id", user.ID.String()).Msg("user registered")

	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()
	l := zerolog.Ctx(ctx).With().Str("svc", "auth.login").Logger()

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, Validation("Email and password are required", "email", "password")
	}

	user, err := s.verifyCredentials(ctx, email, in.Password)
	if err != nil {
		if errors.Is(err, errUnknownEmail) || errors.Is(err, errWrongPassword) {
			l.Warn().Str("reason", err.Error()).Msg("login failed")
			s.metrics.Login(models.ProviderLocal, "invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, s.fail(span, l, "login failed", err)
	}

	if !user.IsActive {
		l.Warn().Str("user_id", user.ID.String()).Msg("login for inactive account")
		s.metrics.Login(models.ProviderLocal, "inactive")
		return nil, ErrAccountInactive
	}

	sess, err := s.startSession(ctx, user, in.IP, in.UserAgent)
	if err != nil {
		return nil, s.fail(span, l, "login failed", err)
	}

	s.publish(ctx, EventUserLoggedIn, user, in.IP)
	s.metrics.Login(models.ProviderLocal, "success")
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	l.Info().Str("user_id", user.ID.String()).Msg("user logged in")

	return sess, nil
}

func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (*tokens.Pair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()
	l := zerolog.Ctx(ctx).With().Str("svc", "auth.refresh").Logger()

	if in.Token == "" {
		return nil, ErrRefreshTokenRequired
	}

	rec, err := s.tokens.FindRefreshToken(ctx, in.Token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.detectReuse(ctx, l, in.Token, in.IP)
			s.metrics.Refresh("not_found")
			return nil, ErrInvalidRefreshToken
		}
		return nil, s.fail(span, l, "refresh failed", err)
	}

	if rec.IsExpired(s.now()) {
		if err := s.tokens.DeleteRefreshToken(ctx, in.Token); err != nil {
			l.Error().Err(err).Uint("token_id", rec.ID).Msg("deleting expired refresh token")
		}
		s.metrics.Refresh("expired")
		return nil, ErrInvalidRefreshToken
	}
	if rec.Revoked {
		s.metrics.Refresh("revoked")
		return nil, ErrInvalidRefreshToken
	}

	claims, err := s.issuer.ParseRefresh(in.Token)
	if err != nil || claims.Subject != rec.UserID.String() {
		l.Warn().Uint("token_id", rec.ID).Msg("stored refresh token failed verification")
		s.metrics.Refresh("invalid")
		return nil, ErrInvalidRefreshToken
	}

	user := &rec.User
	if !user.IsActive {
		s.metrics.Refresh("inactive")
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.issuer.Issue(user)
	if err != nil {
		return nil, s.fail(span, l, "refresh failed", err)
	}

	if err := s.tokens.RotateRefreshToken(ctx, rec, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		if errors.Is(err, repo.ErrRotationConflict) {
			l.Warn().Uint("token_id", rec.ID).Msg("refresh lost rotation race")
			s.metrics.Refresh("conflict")
			return nil, ErrInvalidRefreshToken
		}
		return nil, s.fail(span, l, "refresh failed", err)
	}

	s.metrics.Refresh("success")
	return pair, nil
}

// Logout never fails from the caller's point of view.
func (s *AuthService) Logout(ctx context.Context, token string) {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	s.metrics.Logout()
	if token == "" {
		return
	}
	if err := s.tokens.DeleteRefreshToken(ctx, token); err != nil {
		span.RecordError(err)
		zerolog.Ctx(ctx).Error().Err(err).Str("svc", "auth.logout").Msg("deleting refresh token")
	}
}

func (s *AuthService) GoogleLogin(ctx context.Context, in GoogleLoginInput) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.GoogleLogin")
	defer span.End()
	l := zerolog.Ctx(ctx).With().Str("svc", "auth.google_login").Logger()

	if in.Credential == "" {
		return nil, Validation("Google credential is required", "credential")
	}
	if s.google == nil {
		return nil, s.fail(span, l, "google login", errors.New("google verifier is not configured"))
	}

	profile, err := s.google.Verify(ctx, in.Credential)
	if err != nil {
		span.RecordError(err)
		l.Error().Err(err).Msg("google verification failed")
		s.metrics.Login(models.ProviderGoogle, "verification_failed")
		return nil, &Error{Kind: KindInternal, Message: "Google authentication failed", Err: err}
	}

	email := normalizeEmail(profile.Email)
	user, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		user, err = s.createGoogleUser(ctx, profile, email, in.IP)
		if err != nil {
			return nil, s.fail(span, l, "google login", err)
		}
	case err != nil:
		return nil, s.fail(span, l, "google login", err)
	}

	if err := s.ensureUserID(ctx, user); err != nil {
		return nil, s.fail(span, l, "google login", err)
	}
	if !user.IsActive {
		s.metrics.Login(models.ProviderGoogle, "inactive")
		return nil, ErrAccountInactive
	}

	sess, err := s.startSession(ctx, user, in.IP, in.UserAgent)
	if err != nil {
		return nil, s.fail(span, l, "google login", err)
	}

	s.publish(ctx, EventUserLoggedIn, user, in.IP)
	s.metrics.Login(models.ProviderGoogle, "success")
	l.Info().Str("user_id", user.ID.String()).Msg("user logged in with google")

	return sess, nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, Internal(err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, ip string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "auth.LogoutAll")
	defer span.End()
	l := zerolog.Ctx(ctx).With().Str("svc", "auth.logout_all").Logger()

	n, err := s.tokens.RevokeUserRefreshTokens(ctx, userID, ip)
	if err != nil {
		return 0, s.fail(span, l, "logout all failed", err)
	}
	s.metrics.Revoked(n)
	l.Info().Str("user_id", userID.String()).Int64("revoked", n).Msg("sessions revoked")
	return n, nil
}

func (s *AuthService) Sessions(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	recs, err := s.tokens.ListUserRefreshTokens(ctx, userID)
	if err != nil {
		return nil, Internal(err)
	}
	now := s.now()
	active := recs[:0]
	for _, r := range recs {
		if r.IsActive(now) {
			active = append(active, r)
		}
	}
	return active, nil
}

func (s *AuthService) PruneExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.PruneRefreshTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("pruning refresh tokens: %w", err)
	}
	return n, nil
}

func (s *AuthService) startSession(ctx context.Context, user *models.User, ip, userAgent string) (*Session, error) {
	pair, err := s.issuer.Issue(user)
	if err != nil {
		return nil, err
	}

	if _, err := s.tokens.CreateRefreshToken(ctx, repo.NewRefreshToken{
		Token:     pair.RefreshToken,
		UserID:    user.ID,
		ExpiresAt: pair.RefreshExpiresAt,
		IP:        ip,
		UserAgent: userAgent,
	}); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID.String()).Msg("updating last login")
	} else {
		user.LastLoginAt = &now
	}

	return &Session{User: user, Tokens: pair}, nil
}

func (s *AuthService) createGoogleUser(ctx context.Context, p *google.Profile, email, ip string) (*models.User, error) {
	placeholder, err := hash.RandomPassword()
	if err != nil {
		return nil, err
	}
	pwHash, err := hash.HashPassword(placeholder)
	if err != nil {
		return nil, err
	}

	first, last := p.GivenName, p.FamilyName
	if first == "" {
		first, _, _ = strings.Cut(email, "@")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: pwHash,
		FirstName:    first,
		LastName:     last,
		Role:         models.RolePatient,
		IsActive:     true,
		AuthProvider: models.ProviderGoogle,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return s.users.FindUserByEmail(ctx, email)
		}
		return nil, err
	}

	s.indexUser(ctx, user)
	s.publish(ctx, EventUserRegistered, user, ip)
	s.metrics.Registration(models.ProviderGoogle)
	return user, nil
}

// detectReuse flags a token that was valid once and has since been rotated.
func (s *AuthService) detectReuse(ctx context.Context, l zerolog.Logger, token, ip string) {
	rec, err := s.tokens.FindRotatedFrom(ctx, token)
	if err != nil {
		return
	}
	s.metrics.RefreshReuse()
	l.Warn().
		Uint("token_id", rec.ID).
		Str("user_id", rec.UserID.String()).
		Str("remote_ip", ip).
		Msg("rotated refresh token presented again")
}

func (s *AuthService) publish(ctx context.Context, typ string, u *models.User, ip string) {
	if s.events == nil {
		return
	}
	ev := UserEvent{
		Type:       typ,
		UserID:     u.ID.String(),
		Role:       string(u.Role),
		Provider:   u.AuthProvider,
		IP:         ip,
		OccurredAt: s.now(),
	}
	if err := s.events.PublishEvent(ctx, s.topic, u.ID.String(), ev); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("event", typ).Msg("publishing user event")
	}
}

func (s *AuthService) indexUser(ctx context.Context, u *models.User) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexUser(ctx, u); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", u.ID.String()).Msg("indexing user")
	}
}

func (s *AuthService) fail(span trace.Span, l zerolog.Logger, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	l.Error().Err(err).Msg(msg)
	return Internal(err)
}
