package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Skotchmaster/hospital_portal/internal/service"
)

type errorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func statusFor(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error, dev bool) (int, errorBody) {
	var se *service.Error
	if errors.As(err, &se) {
		body := errorBody{Message: se.Message, Errors: se.Fields}
		if dev && se.Kind == service.KindInternal && se.Err != nil {
			body.Error = se.Err.Error()
		}
		return statusFor(se.Kind), body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		body := errorBody{Message: fmt.Sprint(he.Message)}
		if dev && he.Internal != nil {
			body.Error = he.Internal.Error()
		}
		return he.Code, body
	}

	body := errorBody{Message: "Internal server error"}
	if dev {
		body.Error = err.Error()
	}
	return http.StatusInternalServerError, body
}

// ErrorHandler renders every error as {"message": ...}. Internal details are
// only attached when dev is set.
func ErrorHandler(dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorResponse(err, dev)
		if status >= http.StatusInternalServerError {
			zerolog.Ctx(c.Request().Context()).Error().Err(err).Int("status", status).Msg("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			zerolog.Ctx(c.Request().Context()).Error().Err(werr).Msg("writing error response")
		}
	}
}
