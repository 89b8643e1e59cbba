package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatd/internal/handler"    // admin and payment handlers
	"github.com/iliyamo/seatd/internal/middleware" // JWT, role and internal token middlewares
	"github.com/iliyamo/seatd/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /api/admin.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	// Attach middlewares at group construction time for clarity.
	g := e.Group(
		"/api/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Showtimes ----
	g.GET("/showtimes/:id/summary", a.Summary)
	g.GET("/showtimes/:id/tickets", a.Tickets)

	// ---- Door ----
	g.POST("/scan", a.Scan)
}

// RegisterInternal registers service-to-service endpoints guarded by the
// shared X-Internal-Token.  With no token configured they always answer
// 401.
func RegisterInternal(e *echo.Echo, p *handler.PaymentHandler, token string) {
	g := e.Group("/internal", middleware.RequireInternalToken(token))
	g.POST("/payments/confirm", p.Confirm)
}
