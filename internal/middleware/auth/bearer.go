package auth

import (
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/service"
	"github.com/Skotchmaster/hospital_portal/internal/tokens"
)

const ContextKey = "user"

var errUnauthenticated = &service.Error{Kind: service.KindAuthentication, Message: "Invalid or missing access token"}

// Bearer accepts only access tokens from the Authorization header.
func Bearer(issuer *tokens.Issuer) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return issuer.ParseAccess(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errUnauthenticated
		},
	})
}

func Claims(c echo.Context) (*tokens.Claims, bool) {
	claims, ok := c.Get(ContextKey).(*tokens.Claims)
	return claims, ok
}

func UserID(c echo.Context) (uuid.UUID, error) {
	claims, ok := Claims(c)
	if !ok {
		return uuid.Nil, errUnauthenticated
	}
	id, err := claims.UserID()
	if err != nil {
		return uuid.Nil, errUnauthenticated
	}
	return id, nil
}

func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := Claims(c)
			if !ok {
				return errUnauthenticated
			}
			if !allowed[claims.Role] {
				return service.ErrForbidden
			}
			return next(c)
		}
	}
}
