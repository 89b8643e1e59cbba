package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/seatd/internal/logging"
	"github.com/iliyamo/seatd/internal/model"
)

// SeedStore is the storage needed to provision auditoriums, seats and
// the demo screening.  repository.Store and memstore.Store satisfy it.
type SeedStore interface {
	CountAuditoriums(ctx context.Context) (int, error)
	CreateAuditorium(ctx context.Context, a *model.Auditorium) error
	ListAuditoriums(ctx context.Context) ([]model.Auditorium, error)
	EnsureSeatsForAuditorium(ctx context.Context, a model.Auditorium) (int, error)
	EnsureMovie(ctx context.Context, m *model.Movie) error
	EnsureShowtime(ctx context.Context, st *model.Showtime) error
}

// DefaultAuditoriums are created on first start when no auditorium
// exists.
var DefaultAuditoriums = []model.Auditorium{
	{Name: "Hall 1", Rows: 10, Cols: 12},
	{Name: "Hall 2", Rows: 10, Cols: 12},
	{Name: "Hall 3", Rows: 12, Cols: 14},
	{Name: "Hall 4", Rows: 12, Cols: 14},
	{Name: "Hall 5", Rows: 14, Cols: 16},
}

// SeedDefaultAuditoriums creates DefaultAuditoriums when the store has
// none, then makes sure every auditorium has its seat grid.  Running it
// again is a no-op.
func SeedDefaultAuditoriums(ctx context.Context, store SeedStore) error {
	n, err := store.CountAuditoriums(ctx)
	if err != nil {
		return fmt.Errorf("count auditoriums: %w", err)
	}
	if n == 0 {
		for _, a := range DefaultAuditoriums {
			if err := store.CreateAuditorium(ctx, &a); err != nil {
				return fmt.Errorf("create %s: %w", a.Name, err)
			}
		}
	}

	halls, err := store.ListAuditoriums(ctx)
	if err != nil {
		return fmt.Errorf("list auditoriums: %w", err)
	}
	for _, a := range halls {
		created, err := store.EnsureSeatsForAuditorium(ctx, a)
		if err != nil {
			return fmt.Errorf("seats for %s: %w", a.Name, err)
		}
		if created > 0 {
			logging.Info().Str("auditorium", a.Name).Int("seats", created).Msg("seats created")
		}
	}
	return nil
}

// SeedDemoShowtime ensures a sample movie with one screening in the
// first auditorium an hour after now, for local development.
func SeedDemoShowtime(ctx context.Context, store SeedStore, now time.Time) (*model.Showtime, error) {
	halls, err := store.ListAuditoriums(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auditoriums: %w", err)
	}
	if len(halls) == 0 {
		return nil, fmt.Errorf("no auditorium to schedule the demo showtime in")
	}
	movie := &model.Movie{Title: "The Sample Movie", Rating: "PG", DurationMinutes: 120}
	if err := store.EnsureMovie(ctx, movie); err != nil {
		return nil, fmt.Errorf("ensure movie: %w", err)
	}
	st := &model.Showtime{
		MovieID:      movie.ID,
		AuditoriumID: halls[0].ID,
		StartsAt:     model.NormalizeStartsAt(now.Add(time.Hour)),
		PriceCents:   1299,
	}
	if err := store.EnsureShowtime(ctx, st); err != nil {
		return nil, fmt.Errorf("ensure showtime: %w", err)
	}
	return st, nil
}
