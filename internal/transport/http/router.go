package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Skotchmaster/hospital_portal/internal/config"
	"github.com/Skotchmaster/hospital_portal/internal/db"
	"github.com/Skotchmaster/hospital_portal/internal/handlers"
	"github.com/Skotchmaster/hospital_portal/internal/metrics"
	authmw "github.com/Skotchmaster/hospital_portal/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/hospital_portal/internal/middleware/logging"
	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/tokens"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	UsersHandler  *handlers.UsersHandler
	SearchHandler *handlers.SearchHandler
	Issuer        *tokens.Issuer
	Metrics       *metrics.Collector
	Logger        zerolog.Logger
	RateLimit     config.RateLimitConfig
	AllowOrigins  []string
	Dev           bool
}

func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler(d.Dev)

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	e.Use(loggingmw.RequestLogger(d.Logger))
	if len(d.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     d.AllowOrigins,
			AllowCredentials: true,
		}))
	}

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context(), d.DB); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	bearer := authmw.Bearer(d.Issuer)

	auth := e.Group("/auth", authRateLimiter(d.RateLimit)...)

	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh-token", d.AuthHandler.RefreshToken)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.POST("/google-login", d.AuthHandler.GoogleLogin)
	auth.POST("/logout-all", d.AuthHandler.LogoutAll, bearer)

	users := e.Group("/users", bearer)

	users.GET("/me", d.UsersHandler.Me)
	users.GET("/me/sessions", d.UsersHandler.Sessions)
	if d.SearchHandler != nil {
		users.GET("/search", d.SearchHandler.Search,
			authmw.RequireRole(models.RoleAdmin, models.RoleDoctor, models.RoleNurse, models.RoleReceptionist))
	}
}

func authRateLimiter(cfg config.RateLimitConfig) []echo.MiddlewareFunc {
	if cfg.AuthRPS <= 0 {
		return nil
	}
	return []echo.MiddlewareFunc{
		middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.AuthRPS),
				Burst:     cfg.AuthBurst,
				ExpiresIn: 3 * time.Minute,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			},
		}),
	}
}
