package model

// Seat describes a physical seat in an auditorium.  Seats are
// uniquely identified by their auditorium, row and number and are
// immutable once created.  Bookings reference seats but never own them.
//
// Fields:
//  ID           – primary key identifier (uuid).
//  AuditoriumID – auditorium to which this seat belongs.
//  Row          – 1-based row index.
//  Number       – 1-based position within the row.
type Seat struct {
    ID           string // seats.id
    AuditoriumID string // seats.auditorium_id
    Row          int    // seats.seat_row
    Number       int    // seats.seat_number
}
