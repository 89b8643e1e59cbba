package model

import "time"

// BookingStatus is the lifecycle state of a Booking.  HELD is the only
// non-terminal state; CONFIRMED and CANCELLED are never left.
type BookingStatus string

const (
    BookingHeld      BookingStatus = "HELD"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
)

// Active reports whether the status blocks the seat for other users.
func (s BookingStatus) Active() bool {
    return s == BookingHeld || s == BookingConfirmed
}

// Booking is one seat of one showtime claimed by one user.  For a given
// (ShowtimeID, SeatID) pair at most one booking may be active at any
// instant.  Cancelled rows are kept for audit.
//
// Fields:
//  ID         – primary key identifier (uuid).
//  ShowtimeID – showtime being booked.
//  SeatID     – seat being booked.
//  UserID     – owner of the booking.
//  Status     – HELD, CONFIRMED or CANCELLED.
//  ExpiresAt  – hold expiry, set only while HELD.
//  ScannedAt  – check-in time, set once on a CONFIRMED booking.
//  CreatedAt  – creation timestamp.
type Booking struct {
    ID         string        // bookings.id
    ShowtimeID string        // bookings.showtime_id
    SeatID     string        // bookings.seat_id
    UserID     string        // bookings.user_id
    Status     BookingStatus // bookings.status
    ExpiresAt  *time.Time    // bookings.expires_at (nullable)
    ScannedAt  *time.Time    // bookings.scanned_at (nullable)
    CreatedAt  time.Time     // bookings.created_at
}

// SeatStatus is the derived availability of a seat for one showtime.
// It is never stored.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "AVAILABLE"
    SeatHeld      SeatStatus = "HELD"
    SeatConfirmed SeatStatus = "CONFIRMED"
)
