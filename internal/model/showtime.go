package model

import "time"

// Showtime represents a scheduled screening of a movie in a particular
// auditorium.  StartsAt is stored in UTC with seconds truncated.
//
// Fields:
//  ID           – primary key identifier (uuid).
//  MovieID      – movie being screened.
//  AuditoriumID – auditorium where the showtime takes place.
//  StartsAt     – when the screening begins (UTC, minute precision).
//  PriceCents   – ticket price in cents.
type Showtime struct {
    ID           string    // showtimes.id
    MovieID      string    // showtimes.movie_id
    AuditoriumID string    // showtimes.auditorium_id
    StartsAt     time.Time // showtimes.starts_at
    PriceCents   int       // showtimes.price_cents
}

// DefaultPriceCents is used when a showtime is created without a price.
const DefaultPriceCents = 1200

// NormalizeStartsAt converts t to UTC and drops seconds and below.
func NormalizeStartsAt(t time.Time) time.Time {
    return t.UTC().Truncate(time.Minute)
}
