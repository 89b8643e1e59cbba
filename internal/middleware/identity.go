package middleware

// identity.go holds the accessors for the caller identity stored by
// JWTAuth.  Rate limiting keys and handlers both go through them.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user's id, or "" for anonymous
// requests.
func UserID(c echo.Context) string {
    if s, ok := c.Get(ContextUserID).(string); ok {
        return s
    }
    return ""
}

// Role returns the authenticated user's role, or "".
func Role(c echo.Context) string {
    if s, ok := c.Get(ContextRole).(string); ok {
        return s
    }
    return ""
}

// currentUserID is UserID with "anon" for unauthenticated callers, used
// in rate limit keys.
func currentUserID(c echo.Context) string {
    if id := UserID(c); id != "" {
        return id
    }
    return "anon"
}
