package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/seatd/internal/model"
)

// ShowtimeRepo provides access to the showtimes table.
type ShowtimeRepo struct {
	db *sql.DB
}

func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

const showtimeColumns = `id, movie_id, auditorium_id, starts_at, price_cents`

// GetShowtime returns ErrShowtimeNotFound when id does not exist.
func (r *ShowtimeRepo) GetShowtime(ctx context.Context, id string) (*model.Showtime, error) {
	var st model.Showtime
	err := r.db.QueryRowContext(ctx, `SELECT `+showtimeColumns+` FROM showtimes WHERE id = ?`, id).
		Scan(&st.ID, &st.MovieID, &st.AuditoriumID, &st.StartsAt, &st.PriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	st.StartsAt = st.StartsAt.UTC()
	return &st, nil
}

// ListShowtimesByMovie returns the movie's showtimes ordered by start
// time, or ErrMovieNotFound when the movie does not exist.
func (r *ShowtimeRepo) ListShowtimesByMovie(ctx context.Context, movieID string) ([]model.Showtime, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM movies WHERE id = ?`, movieID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+showtimeColumns+` FROM showtimes WHERE movie_id = ? ORDER BY starts_at`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Showtime{}
	for rows.Next() {
		var st model.Showtime
		if err := rows.Scan(&st.ID, &st.MovieID, &st.AuditoriumID, &st.StartsAt, &st.PriceCents); err != nil {
			return nil, err
		}
		st.StartsAt = st.StartsAt.UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

// EnsureShowtime loads the showtime of st.AuditoriumID starting at
// st.StartsAt into st, inserting it when missing.  StartsAt is
// normalized to UTC minutes first so retries hit the unique key.
func (r *ShowtimeRepo) EnsureShowtime(ctx context.Context, st *model.Showtime) error {
	st.StartsAt = model.NormalizeStartsAt(st.StartsAt)
	if st.PriceCents <= 0 {
		st.PriceCents = model.DefaultPriceCents
	}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+showtimeColumns+` FROM showtimes WHERE auditorium_id = ? AND starts_at = ?`,
		st.AuditoriumID, st.StartsAt,
	).Scan(&st.ID, &st.MovieID, &st.AuditoriumID, &st.StartsAt, &st.PriceCents)
	if err == nil {
		st.StartsAt = st.StartsAt.UTC()
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO showtimes (id, movie_id, auditorium_id, starts_at, price_cents) VALUES (?, ?, ?, ?, ?)`,
		st.ID, st.MovieID, st.AuditoriumID, st.StartsAt, st.PriceCents)
	return mapWriteErr(err)
}
