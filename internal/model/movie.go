package model

// Movie is the film a showtime screens.  Only the fields needed for
// tickets and listings are modelled here.
type Movie struct {
    ID              string // movies.id
    Title           string // movies.title
    Rating          string // movies.rating
    DurationMinutes int    // movies.duration_minutes
}
