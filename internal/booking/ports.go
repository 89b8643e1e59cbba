package booking

import (
	"context"
	"time"

	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/repository"
)

// Ledger is the persistent record of bookings.  Implementations must
// keep at most one HELD or CONFIRMED booking per (showtime, seat) and
// run every method as one atomic unit.  repository.BookingRepo and
// memstore.Store satisfy it.
type Ledger interface {
	// SweepExpired cancels HELD bookings whose expiry is before now.
	// An empty showtimeID sweeps every showtime.  It returns the ids of
	// the showtimes that had at least one booking cancelled.
	SweepExpired(ctx context.Context, showtimeID string, now time.Time) ([]string, error)

	// CreateHolds inserts one HELD booking per seat or none at all.  It
	// fails with repository.ErrConflict when any seat is taken and with
	// repository.ErrUnknownSeat when a seat is outside the auditorium.
	CreateHolds(ctx context.Context, p repository.HoldParams) ([]model.Booking, error)

	// ConfirmHeld moves the matching HELD, unexpired bookings to
	// CONFIRMED and returns them.  An empty ownerID matches any owner.
	ConfirmHeld(ctx context.Context, ids []string, ownerID string, now time.Time) ([]model.Booking, error)

	// CancelHeld moves the caller's matching HELD bookings to CANCELLED
	// and returns them.
	CancelHeld(ctx context.Context, ids []string, ownerID string) ([]model.Booking, error)

	// ActiveByShowtime lists HELD and CONFIRMED bookings of a showtime.
	ActiveByShowtime(ctx context.Context, showtimeID string) ([]model.Booking, error)

	// FindBookings returns the bookings with the given ids; unknown ids
	// are skipped.
	FindBookings(ctx context.Context, ids []string) ([]model.Booking, error)

	// MarkScanned stamps scanned_at on a booking once.  It reports
	// whether this call set the timestamp.
	MarkScanned(ctx context.Context, id string, at time.Time) (bool, error)
}

// Showtimes resolves showtimes by id.  Unknown ids fail with
// repository.ErrShowtimeNotFound.
type Showtimes interface {
	GetShowtime(ctx context.Context, id string) (*model.Showtime, error)
}

// Inventory lists the physical seats of an auditorium ordered by row,
// then number.
type Inventory interface {
	SeatsForAuditorium(ctx context.Context, auditoriumID string) ([]model.Seat, error)
}

// Notifier is told whenever the seat map of a showtime changed.
// Implementations must not block the caller on slow subscribers.
type Notifier interface {
	SeatsChanged(ctx context.Context, showtimeID string) error
}

// EventPublisher receives bookings that have just been confirmed.
type EventPublisher interface {
	BookingsConfirmed(ctx context.Context, bookings []model.Booking) error
}

type nopNotifier struct{}

func (nopNotifier) SeatsChanged(context.Context, string) error { return nil }
