package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/repository"
)

// TicketsForUser lists the user's CONFIRMED bookings as tickets ordered
// by showtime start.
func (s *Store) TicketsForUser(_ context.Context, userID string) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticketsLocked(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

// TicketsForShowtime lists the CONFIRMED bookings of a showtime.
func (s *Store) TicketsForShowtime(_ context.Context, showtimeID string) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.showtimes[showtimeID]; !ok {
		return nil, repository.ErrShowtimeNotFound
	}
	return s.ticketsLocked(func(b *model.Booking) bool { return b.ShowtimeID == showtimeID }), nil
}

// GetTicket returns the ticket of a CONFIRMED booking.
func (s *Store) GetTicket(_ context.Context, bookingID string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != model.BookingConfirmed {
		return nil, repository.ErrBookingNotFound
	}
	t := s.ticketLocked(b)
	return &t, nil
}

func (s *Store) ticketsLocked(match func(*model.Booking) bool) []model.Ticket {
	out := []model.Ticket{}
	for _, b := range s.bookings {
		if b.Status == model.BookingConfirmed && match(b) {
			out = append(out, s.ticketLocked(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func (s *Store) ticketLocked(b *model.Booking) model.Ticket {
	st := s.showtimes[b.ShowtimeID]
	mv := s.movies[st.MovieID]
	seat := s.seatByID[b.SeatID]
	t := model.Ticket{
		BookingID:       b.ID,
		ShowtimeID:      b.ShowtimeID,
		UserID:          b.UserID,
		UserEmail:       s.users[b.UserID].Email,
		MovieTitle:      mv.Title,
		Rating:          mv.Rating,
		DurationMinutes: mv.DurationMinutes,
		Auditorium:      s.auditoriums[st.AuditoriumID].Name,
		Row:             seat.Row,
		Number:          seat.Number,
		StartsAt:        st.StartsAt,
		CreatedAt:       b.CreatedAt,
	}
	if b.ScannedAt != nil {
		at := *b.ScannedAt
		t.ScannedAt = &at
	}
	return t
}
