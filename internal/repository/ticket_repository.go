package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/seatd/internal/model"
)

// TicketRepo reads confirmed bookings joined with their showtime, movie,
// auditorium, seat and owner.
type TicketRepo struct {
	db *sql.DB
}

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketSelect = `
SELECT b.id, b.showtime_id, b.user_id, COALESCE(u.email, ''),
       m.title, m.rating, m.duration_minutes, a.name,
       s.seat_row, s.seat_number, st.starts_at, b.scanned_at, b.created_at
FROM bookings b
JOIN showtimes st ON st.id = b.showtime_id
JOIN movies m ON m.id = st.movie_id
JOIN auditoriums a ON a.id = st.auditorium_id
JOIN seats s ON s.id = b.seat_id
LEFT JOIN users u ON u.id = b.user_id
WHERE b.status = 'CONFIRMED'`

const ticketOrder = ` ORDER BY st.starts_at, s.seat_row, s.seat_number`

func scanTicket(rs rowScanner) (model.Ticket, error) {
	var (
		t         model.Ticket
		scannedAt sql.NullTime
	)
	err := rs.Scan(&t.BookingID, &t.ShowtimeID, &t.UserID, &t.UserEmail,
		&t.MovieTitle, &t.Rating, &t.DurationMinutes, &t.Auditorium,
		&t.Row, &t.Number, &t.StartsAt, &scannedAt, &t.CreatedAt)
	if err != nil {
		return model.Ticket{}, err
	}
	t.StartsAt = t.StartsAt.UTC()
	if scannedAt.Valid {
		at := scannedAt.Time.UTC()
		t.ScannedAt = &at
	}
	return t, nil
}

func (r *TicketRepo) list(ctx context.Context, filter string, arg string) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, ticketSelect+filter+ticketOrder, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TicketsForUser lists the user's confirmed tickets.
func (r *TicketRepo) TicketsForUser(ctx context.Context, userID string) ([]model.Ticket, error) {
	return r.list(ctx, ` AND b.user_id = ?`, userID)
}

// TicketsForShowtime lists the confirmed tickets of a showtime, or
// ErrShowtimeNotFound.
func (r *TicketRepo) TicketsForShowtime(ctx context.Context, showtimeID string) ([]model.Ticket, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM showtimes WHERE id = ?`, showtimeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.list(ctx, ` AND b.showtime_id = ?`, showtimeID)
}

// GetTicket returns the ticket of a confirmed booking, or
// ErrBookingNotFound.
func (r *TicketRepo) GetTicket(ctx context.Context, bookingID string) (*model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, ticketSelect+` AND b.id = ?`, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
