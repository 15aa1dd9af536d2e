package loggingmw

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			l := base.With().
				Str("method", req.Method).
				Str("path", c.Path()).
				Str("url", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Str("request_id", rid).
				Logger()

			c.SetRequest(req.WithContext(l.WithContext(req.Context())))

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			dur := time.Since(start)

			switch {
			case err != nil || status >= 500:
				l.Error().Err(err).Int("status", status).Dur("duration", dur).Msg("request completed")
			case status >= 400:
				l.Warn().Int("status", status).Dur("duration", dur).Msg("request completed")
			default:
				l.Info().Int("status", status).Dur("duration", dur).Int64("bytes", c.Response().Size).Msg("request completed")
			}
			return nil
		}
	}
}
