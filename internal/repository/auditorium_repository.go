package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/seatd/internal/model"
)

// ErrAuditoriumNotFound is returned when an auditorium lookup yields no rows.
var ErrAuditoriumNotFound = errors.New("auditorium not found")

// AuditoriumRepo provides access to the auditoriums table.
type AuditoriumRepo struct {
	db *sql.DB
}

// NewAuditoriumRepo constructs an AuditoriumRepo with the given DB handle.
func NewAuditoriumRepo(db *sql.DB) *AuditoriumRepo { return &AuditoriumRepo{db: db} }

// CountAuditoriums returns the number of auditoriums.
func (r *AuditoriumRepo) CountAuditoriums(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auditoriums`).Scan(&n)
	return n, err
}

// CreateAuditorium inserts a and fills in its id.  A duplicate name maps
// to ErrConflict.
func (r *AuditoriumRepo) CreateAuditorium(ctx context.Context, a *model.Auditorium) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auditoriums (id, name, seat_rows, seat_cols) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.Rows, a.Cols)
	return mapWriteErr(err)
}

// ListAuditoriums returns all auditoriums ordered by name.
func (r *AuditoriumRepo) ListAuditoriums(ctx context.Context) ([]model.Auditorium, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, seat_rows, seat_cols FROM auditoriums ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Auditorium
	for rows.Next() {
		var a model.Auditorium
		if err := rows.Scan(&a.ID, &a.Name, &a.Rows, &a.Cols); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAuditorium fetches one auditorium by id.
func (r *AuditoriumRepo) GetAuditorium(ctx context.Context, id string) (*model.Auditorium, error) {
	var a model.Auditorium
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, seat_rows, seat_cols FROM auditoriums WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Rows, &a.Cols)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAuditoriumNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
