package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatd/internal/model"
)

// Catalog is the read side of movies and showtimes.  Both the MySQL and
// the in-memory store implement it.
type Catalog interface {
    ListMovies(ctx context.Context) ([]model.Movie, error)
    GetMovie(ctx context.Context, id string) (*model.Movie, error)
    ListShowtimesByMovie(ctx context.Context, movieID string) ([]model.Showtime, error)
}

// CatalogHandler serves the public movie listing.  Responses are
// cacheable and are wrapped by the Redis cache middleware.
type CatalogHandler struct {
    Catalog Catalog
}

// NewCatalogHandler returns a CatalogHandler.
func NewCatalogHandler(catalog Catalog) *CatalogHandler {
    return &CatalogHandler{Catalog: catalog}
}

type movieView struct {
    ID              string `json:"id"`
    Title           string `json:"title"`
    Rating          string `json:"rating"`
    DurationMinutes int    `json:"durationMinutes"`
}

type showtimeView struct {
    ID           string    `json:"id"`
    AuditoriumID string    `json:"auditoriumId"`
    StartsAt     time.Time `json:"startsAt"`
    PriceCents   int       `json:"priceCents"`
}

func toMovieView(m model.Movie) movieView {
    return movieView{ID: m.ID, Title: m.Title, Rating: m.Rating, DurationMinutes: m.DurationMinutes}
}

// ListMovies handles GET /api/movies.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
    movies, err := h.Catalog.ListMovies(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    out := make([]movieView, 0, len(movies))
    for _, m := range movies {
        out = append(out, toMovieView(m))
    }
    return c.JSON(http.StatusOK, echo.Map{"movies": out})
}

// MovieShowtimes handles GET /api/movies/:id/showtimes.
func (h *CatalogHandler) MovieShowtimes(c echo.Context) error {
    ctx := c.Request().Context()
    movie, err := h.Catalog.GetMovie(ctx, c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    showtimes, err := h.Catalog.ListShowtimesByMovie(ctx, movie.ID)
    if err != nil {
        return respondError(c, err)
    }
    out := make([]showtimeView, 0, len(showtimes))
    for _, st := range showtimes {
        out = append(out, showtimeView{ID: st.ID, AuditoriumID: st.AuditoriumID, StartsAt: st.StartsAt, PriceCents: st.PriceCents})
    }
    return c.JSON(http.StatusOK, echo.Map{"movie": toMovieView(*movie), "showtimes": out})
}
