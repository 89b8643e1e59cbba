package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatd/internal/utils"
)

// Context keys set by JWTAuth.
const (
    ContextUserID = "user_id"
    ContextRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// read the identity via UserID(c) and Role(c).
func JWTAuth(secret string) echo.MiddlewareFunc {
    return jwtAuth(secret, false)
}

// JWTAuthQuery is JWTAuth that also accepts the token in the "token"
// query parameter.  Browsers cannot set headers on WebSocket upgrades.
func JWTAuthQuery(secret string) echo.MiddlewareFunc {
    return jwtAuth(secret, true)
}

func jwtAuth(secret string, allowQuery bool) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := ""
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if strings.HasPrefix(auth, "Bearer ") {
                raw = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
            } else if allowQuery {
                raw = c.QueryParam("token")
            }
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }

            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ContextUserID, claims.UserID)
            c.Set(ContextRole, claims.Role)
            return next(c)
        }
    }
}
