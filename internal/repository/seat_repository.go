package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives

	"github.com/google/uuid"

	"github.com/iliyamo/seatd/internal/model"
)

// SeatRepo provides methods to work with seats in the database.  Seats
// never change once an auditorium has been provisioned.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// SeatsForAuditorium lists the seats of an auditorium ordered by row,
// then number.
func (r *SeatRepo) SeatsForAuditorium(ctx context.Context, auditoriumID string) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, auditorium_id, seat_row, seat_number FROM seats
		 WHERE auditorium_id = ? ORDER BY seat_row, seat_number`, auditoriumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.AuditoriumID, &s.Row, &s.Number); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EnsureSeatsForAuditorium creates the Rows x Cols grid of an
// auditorium unless it already has at least one seat.  It returns the
// number of seats created.  Two concurrent callers cannot both insert:
// the second hits the (auditorium_id, seat_row, seat_number) unique key
// and rolls back.
func (r *SeatRepo) EnsureSeatsForAuditorium(ctx context.Context, a model.Auditorium) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE auditorium_id = ?`, a.ID).Scan(&existing); err != nil {
		return 0, err
	}
	if existing > 0 || a.SeatCount() == 0 {
		return 0, nil
	}

	query := `INSERT INTO seats (id, auditorium_id, seat_row, seat_number) VALUES `
	args := make([]interface{}, 0, a.SeatCount()*4)
	for row := 1; row <= a.Rows; row++ {
		for num := 1; num <= a.Cols; num++ {
			if len(args) > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, uuid.NewString(), a.ID, row, num)
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, mapWriteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return a.SeatCount(), nil
}
