package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/repository"
)

// SweepExpired cancels HELD bookings with an expiry before now.  An
// empty showtimeID sweeps everything.
func (s *Store) SweepExpired(_ context.Context, showtimeID string, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]struct{})
	for key, id := range s.active {
		if showtimeID != "" && key.showtimeID != showtimeID {
			continue
		}
		b := s.bookings[id]
		if isStale(b, now) {
			s.cancelLocked(b)
			touched[b.ShowtimeID] = struct{}{}
		}
	}
	out := make([]string, 0, len(touched))
	for id := range touched {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// CreateHolds inserts one HELD booking per seat, or none when any seat
// is unknown or taken.  Stale holds on the requested seats are
// cancelled as part of the same step.
func (s *Store) CreateHolds(_ context.Context, p repository.HoldParams) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.showtimes[p.ShowtimeID]; !ok {
		return nil, repository.ErrShowtimeNotFound
	}

	var stale []*model.Booking
	for _, seatID := range p.SeatIDs {
		seat, ok := s.seatByID[seatID]
		if !ok || seat.AuditoriumID != p.AuditoriumID {
			return nil, repository.ErrUnknownSeat
		}
		if id, taken := s.active[slotKey{p.ShowtimeID, seatID}]; taken {
			b := s.bookings[id]
			if !isStale(b, p.Now) {
				return nil, repository.ErrConflict
			}
			stale = append(stale, b)
		}
	}

	for _, b := range stale {
		s.cancelLocked(b)
	}
	out := make([]model.Booking, 0, len(p.SeatIDs))
	for _, seatID := range p.SeatIDs {
		exp := p.ExpiresAt.UTC()
		b := &model.Booking{
			ID:         uuid.NewString(),
			ShowtimeID: p.ShowtimeID,
			SeatID:     seatID,
			UserID:     p.UserID,
			Status:     model.BookingHeld,
			ExpiresAt:  &exp,
			CreatedAt:  p.Now.UTC(),
		}
		s.bookings[b.ID] = b
		s.active[slotKey{b.ShowtimeID, b.SeatID}] = b.ID
		out = append(out, clone(b))
	}
	return out, nil
}

// ConfirmHeld confirms the matching HELD, unexpired bookings.  An empty
// ownerID matches any owner.
func (s *Store) ConfirmHeld(_ context.Context, ids []string, ownerID string, now time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, id := range ids {
		b, ok := s.bookings[id]
		if !ok || b.Status != model.BookingHeld || isStale(b, now) {
			continue
		}
		if ownerID != "" && b.UserID != ownerID {
			continue
		}
		b.Status = model.BookingConfirmed
		b.ExpiresAt = nil
		out = append(out, clone(b))
	}
	return out, nil
}

// CancelHeld cancels the owner's matching HELD bookings.
func (s *Store) CancelHeld(_ context.Context, ids []string, ownerID string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, id := range ids {
		b, ok := s.bookings[id]
		if !ok || b.Status != model.BookingHeld || b.UserID != ownerID {
			continue
		}
		s.cancelLocked(b)
		out = append(out, clone(b))
	}
	return out, nil
}

// ActiveByShowtime lists the HELD and CONFIRMED bookings of a showtime.
func (s *Store) ActiveByShowtime(_ context.Context, showtimeID string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for key, id := range s.active {
		if key.showtimeID == showtimeID {
			out = append(out, clone(s.bookings[id]))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// FindBookings returns the known bookings among ids in request order.
func (s *Store) FindBookings(_ context.Context, ids []string) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, id := range ids {
		if b, ok := s.bookings[id]; ok {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

// MarkScanned sets ScannedAt on a CONFIRMED booking that has none.
func (s *Store) MarkScanned(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return false, repository.ErrBookingNotFound
	}
	if b.Status != model.BookingConfirmed || b.ScannedAt != nil {
		return false, nil
	}
	t := at.UTC()
	b.ScannedAt = &t
	return true, nil
}

// cancelLocked must be called with mu held.
func (s *Store) cancelLocked(b *model.Booking) {
	b.Status = model.BookingCancelled
	b.ExpiresAt = nil
	key := slotKey{b.ShowtimeID, b.SeatID}
	if s.active[key] == b.ID {
		delete(s.active, key)
	}
}

func isStale(b *model.Booking, now time.Time) bool {
	return b.Status == model.BookingHeld && b.ExpiresAt != nil && b.ExpiresAt.Before(now)
}

func clone(b *model.Booking) model.Booking {
	out := *b
	if b.ExpiresAt != nil {
		t := *b.ExpiresAt
		out.ExpiresAt = &t
	}
	if b.ScannedAt != nil {
		t := *b.ScannedAt
		out.ScannedAt = &t
	}
	return out
}
