package middleware

import (
    "crypto/subtle"
    "net/http"

    "github.com/labstack/echo/v4"
)

// HeaderInternalToken carries the shared secret of service-to-service
// calls such as the payment confirmation callback.
const HeaderInternalToken = "X-Internal-Token"

// RequireInternalToken admits requests whose X-Internal-Token equals
// token.  An empty token disables the route entirely.
func RequireInternalToken(token string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            got := c.Request().Header.Get(HeaderInternalToken)
            if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
            }
            return next(c)
        }
    }
}
