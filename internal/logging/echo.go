package logging

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestLogger is an echo middleware that assigns a request id (reusing
// X-Request-ID when the client sent one), stores it in the request
// context and writes one access log line per request.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.SetRequest(req.WithContext(ContextWithRequestID(req.Context(), id)))

			start := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the error response so the status is final.
				c.Error(err)
			}

			status := c.Response().Status
			ev := Info()
			switch {
			case status >= 500:
				ev = Error().Err(err)
			case status >= 400:
				ev = Warn()
			}
			ev.Str("request_id", id).
				Str("method", req.Method).
				Str("path", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("http request")
			return nil
		}
	}
}
