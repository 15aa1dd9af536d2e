package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/hospital_portal/internal/models"
	"github.com/Skotchmaster/hospital_portal/internal/service"
	"github.com/Skotchmaster/hospital_portal/internal/service/search"
	"github.com/Skotchmaster/hospital_portal/internal/util"
)

type SearchHandler struct {
	Directory *search.Directory
}

func NewSearchHandler(d *search.Directory) *SearchHandler {
	return &SearchHandler{Directory: d}
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return service.Validation("Query parameter q is required", "q")
	}
	role := c.QueryParam("role")
	if role != "" && !models.Role(role).Valid() {
		return service.Validation("Unknown role", "role")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Calculate(page, size)

	total, users, err := h.Directory.Search(c.Request().Context(), q, role, from, size)
	if err != nil {
		return service.Internal(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "users": users})
}
