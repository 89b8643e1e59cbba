package handler // declare the package name; contains HTTP handlers

import (
    "context"           // context bounds the storage ping
    "net/http"          // net/http provides status codes and response helpers
    "time"              // time sets the ping deadline

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger checks that a backing store is reachable, e.g. (*sql.DB).PingContext.
type Pinger func(ctx context.Context) error

// Health returns the health‑check endpoint used by load balancers and
// monitoring systems.  It answers plain text "ok" with 200, or
// "unavailable" with 503 when ping fails.  A nil ping always reports ok.
func Health(ping Pinger) echo.HandlerFunc {
    return func(c echo.Context) error { // handler closes over the storage ping
        if ping != nil {
            ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second) // never hang a probe
            defer cancel()
            if err := ping(ctx); err != nil {
                return c.String(http.StatusServiceUnavailable, "unavailable") // storage down
            }
        }
        return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status; String writes plain text
    }
}
