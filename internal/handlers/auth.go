package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	authmw "github.com/Skotchmaster/hospital_portal/internal/middleware/auth"
	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/service"
)

type AuthHandler struct {
	Svc     *service.AuthService
	Cookies CookieConfig
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Gender          string `json:"gender"`
	Location        string `json:"location"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type googleLoginRequest struct {
	Credential string `json:"credential"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type sessionResponse struct {
	User *models.User `json:"user"`
	tokenResponse
}

var errInvalidBody = service.Validation("Invalid request body")

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	user, err := h.Svc.Register(c.Request().Context(), service.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Gender:          req.Gender,
		Location:        req.Location,
		IP:              c.RealIP(),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, echo.Map{"user": user})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	sess, err := h.Svc.Login(c.Request().Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return err
	}

	return h.respondSession(c, sess)
}

func (h *AuthHandler) GoogleLogin(c echo.Context) error {
	var req googleLoginRequest
	if err := c.Bind(&req); err != nil {
		return errInvalidBody
	}

	sess, err := h.Svc.GoogleLogin(c.Request().Context(), service.GoogleLoginInput{
		Credential: req.Credential,
		IP:         c.RealIP(),
		UserAgent:  c.Request().UserAgent(),
	})
	if err != nil {
		return err
	}

	return h.respondSession(c, sess)
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		return err
	}

	pair, err := h.Svc.Refresh(c.Request().Context(), service.RefreshInput{Token: token, IP: c.RealIP()})
	if err != nil {
		return err
	}

	c.SetCookie(h.Cookies.refresh(pair.RefreshToken))
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	token, err := refreshTokenFrom(c)
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg("logout with unreadable body")
	}

	h.Svc.Logout(c.Request().Context(), token)

	c.SetCookie(h.Cookies.clearRefresh())
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) LogoutAll(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	n, err := h.Svc.LogoutAll(c.Request().Context(), userID, c.RealIP())
	if err != nil {
		return err
	}

	c.SetCookie(h.Cookies.clearRefresh())
	return c.JSON(http.StatusOK, echo.Map{"message": "All sessions revoked", "revoked": n})
}

func (h *AuthHandler) respondSession(c echo.Context, sess *service.Session) error {
	c.SetCookie(h.Cookies.refresh(sess.Tokens.RefreshToken))
	return c.JSON(http.StatusOK, sessionResponse{
		User: sess.User,
		tokenResponse: tokenResponse{
			AccessToken:  sess.Tokens.AccessToken,
			RefreshToken: sess.Tokens.RefreshToken,
			ExpiresIn:    sess.Tokens.ExpiresIn,
		},
	})
}

// refreshTokenFrom prefers the cookie and falls back to the JSON body.
func refreshTokenFrom(c echo.Context) (string, error) {
	if ck, err := c.Cookie(RefreshCookieName); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return "", errInvalidBody
	}
	return req.RefreshToken, nil
}
