package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/seatd/internal/model"
)

// MovieRepo provides read access to movies plus the find-or-create used
// by seeding.
type MovieRepo struct {
	db *sql.DB
}

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// ListMovies returns all movies ordered by title.
func (r *MovieRepo) ListMovies(ctx context.Context) ([]model.Movie, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, rating, duration_minutes FROM movies ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Movie{}
	for rows.Next() {
		var m model.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Rating, &m.DurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMovie returns ErrMovieNotFound when id does not exist.
func (r *MovieRepo) GetMovie(ctx context.Context, id string) (*model.Movie, error) {
	var m model.Movie
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, rating, duration_minutes FROM movies WHERE id = ?`, id,
	).Scan(&m.ID, &m.Title, &m.Rating, &m.DurationMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EnsureMovie loads the movie with m.Title into m, inserting it first
// when missing.
func (r *MovieRepo) EnsureMovie(ctx context.Context, m *model.Movie) error {
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, rating, duration_minutes FROM movies WHERE title = ? LIMIT 1`, m.Title,
	).Scan(&m.ID, &m.Title, &m.Rating, &m.DurationMinutes)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO movies (id, title, rating, duration_minutes) VALUES (?, ?, ?, ?)`,
		m.ID, m.Title, m.Rating, m.DurationMinutes)
	return err
}
