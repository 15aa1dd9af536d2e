package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/Skotchmaster/hospital_portal/internal/middleware/auth"
	"github.com/Skotchmaster/hospital_portal/internal/service"
)

type UsersHandler struct {
	Svc *service.AuthService
}

type sessionView struct {
	ID        uint      `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"lastUsedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *UsersHandler) Me(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	user, err := h.Svc.Me(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UsersHandler) Sessions(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return err
	}

	recs, err := h.Svc.Sessions(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	out := make([]sessionView, len(recs))
	for i, r := range recs {
		out[i] = sessionView{
			ID:        r.ID,
			IP:        r.CreatedByIP,
			UserAgent: r.UserAgent,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			ExpiresAt: r.ExpiresAt,
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}
