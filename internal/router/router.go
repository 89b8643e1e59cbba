package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                             // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware"           // recover middleware from echo itself
	"github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus exposition handler

	"github.com/iliyamo/seatd/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/seatd/internal/logging"    // request logging middleware
	"github.com/iliyamo/seatd/internal/middleware" // request validator
)

// New returns an Echo instance with the shared middleware stack: panic
// recovery, request logging and the request body validator.
func New() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewValidator()
	e.Use(echomw.Recover())
	e.Use(logging.RequestLogger())
	return e
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the Prometheus metrics.
func RegisterRoutes(e *echo.Echo, ping handler.Pinger) {
	// Load balancers probe /api/health; a failing storage ping turns it 503.
	e.GET("/api/health", handler.Health(ping))
	// Prometheus scrapes every collector registered through promauto.
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers unauthenticated browse endpoints.  Movie
// listings go through the Redis response cache; the seat map never does
// because it changes with every hold.
func RegisterPublic(e *echo.Echo, catalog *handler.CatalogHandler, showtimes *handler.ShowtimeHandler, cache echo.MiddlewareFunc) {
	e.GET("/api/movies", catalog.ListMovies, cache)
	e.GET("/api/movies/:id/showtimes", catalog.MovieShowtimes, cache)
	e.GET("/api/showtimes/:id/seats", showtimes.SeatMap)
}
