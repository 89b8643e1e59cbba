package handler

import (
    "net/http"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatd/internal/logging"
    "github.com/iliyamo/seatd/internal/middleware"
    "github.com/iliyamo/seatd/internal/notify"
)

// WSHandler upgrades GET /ws to a seat update subscription.
type WSHandler struct {
    Hub      *notify.Hub
    upgrader websocket.Upgrader
}

// NewWSHandler accepts connections from the listed origins; an empty
// list accepts any origin.
func NewWSHandler(hub *notify.Hub, allowedOrigins []string) *WSHandler {
    allowed := make(map[string]bool, len(allowedOrigins))
    for _, o := range allowedOrigins {
        allowed[o] = true
    }
    return &WSHandler{
        Hub: hub,
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
            CheckOrigin: func(r *http.Request) bool {
                origin := r.Header.Get("Origin")
                return len(allowed) == 0 || origin == "" || allowed[origin]
            },
        },
    }
}

// Serve blocks for the lifetime of the connection.
func (h *WSHandler) Serve(c echo.Context) error {
    conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        // Upgrade has already written the HTTP error.
        logging.Debug().Err(err).Msg("websocket upgrade failed")
        return nil
    }
    notify.NewClient(h.Hub, conn, middleware.UserID(c)).Run()
    return nil
}
