package booking

import (
	"time"

	"github.com/iliyamo/seatd/internal/model"
)

// DefaultHoldDuration is how long a HELD booking blocks its seat.
const DefaultHoldDuration = 5 * time.Minute

// ExpiryPolicy decides when a hold expires and whether a booking is
// stale.  It holds no state besides the configured duration.
type ExpiryPolicy struct {
	HoldDuration time.Duration
}

// NewExpiryPolicy returns a policy using d, or DefaultHoldDuration when
// d is not positive.
func NewExpiryPolicy(d time.Duration) ExpiryPolicy {
	if d <= 0 {
		d = DefaultHoldDuration
	}
	return ExpiryPolicy{HoldDuration: d}
}

// ExpiresAt is the expiry stamped on holds created at now.
func (p ExpiryPolicy) ExpiresAt(now time.Time) time.Time {
	d := p.HoldDuration
	if d <= 0 {
		d = DefaultHoldDuration
	}
	return now.UTC().Add(d)
}

// IsStale reports whether b is a HELD booking whose expiry is strictly
// before now.  Confirmed and cancelled bookings are never stale.
func (p ExpiryPolicy) IsStale(b model.Booking, now time.Time) bool {
	if b.Status != model.BookingHeld || b.ExpiresAt == nil {
		return false
	}
	return b.ExpiresAt.Before(now)
}

// StatusAt projects the seat status contributed by b at instant now.
// Stale holds project as AVAILABLE even before a sweep has cancelled
// them.
func (p ExpiryPolicy) StatusAt(b model.Booking, now time.Time) model.SeatStatus {
	switch {
	case b.Status == model.BookingConfirmed:
		return model.SeatConfirmed
	case b.Status == model.BookingHeld && !p.IsStale(b, now):
		return model.SeatHeld
	default:
		return model.SeatAvailable
	}
}
