package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatd/internal/handler"
	"github.com/iliyamo/seatd/internal/middleware"
	"github.com/iliyamo/seatd/internal/model"
)

// RegisterCustomer registers the endpoints of signed-in users.  All routes
// require a valid JWT; both roles may book.  holdLimit throttles hold
// attempts per user and runs after authentication so it can key on the
// user id.
func RegisterCustomer(e *echo.Echo, h *handler.ShowtimeHandler, t *handler.TicketHandler, jwtSecret string, holdLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/api",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.POST("/showtimes/:id/hold", h.Hold, holdLimit)
	g.POST("/showtimes/bookings/confirm", h.Confirm)
	g.DELETE("/showtimes/bookings/cancel", h.Cancel)

	g.GET("/me/tickets", t.MyTickets)
	g.GET("/me/tickets/:id/qr", t.QR)
	g.GET("/me/bookings", t.Lookup)
}

// RegisterWS registers the live seat update socket.  Browsers pass the
// access token as ?token= because they cannot set headers on upgrades.
func RegisterWS(e *echo.Echo, ws *handler.WSHandler, jwtSecret string) {
	e.GET("/ws", ws.Serve, middleware.JWTAuthQuery(jwtSecret))
}
