package model

import "time"

// Ticket is a confirmed booking joined with the showtime, movie, seat
// and auditorium details a customer or usher needs to see.
type Ticket struct {
    BookingID       string     `json:"bookingId"`
    ShowtimeID      string     `json:"showtimeId"`
    UserID          string     `json:"userId,omitempty"`
    UserEmail       string     `json:"userEmail,omitempty"`
    MovieTitle      string     `json:"movie"`
    Rating          string     `json:"rating,omitempty"`
    DurationMinutes int        `json:"durationMinutes,omitempty"`
    Auditorium      string     `json:"auditorium"`
    Row             int        `json:"row"`
    Number          int        `json:"number"`
    StartsAt        time.Time  `json:"startsAt"`
    ScannedAt       *time.Time `json:"scannedAt"`
    CreatedAt       time.Time  `json:"createdAt"`
}
