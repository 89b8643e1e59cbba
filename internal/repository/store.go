package repository

import "database/sql"

// Store bundles the MySQL repositories behind one value so the server
// can hand the same object to every consumer, mirroring memstore.Store.
type Store struct {
	*AuditoriumRepo
	*SeatRepo
	*MovieRepo
	*ShowtimeRepo
	*BookingRepo
	*TicketRepo
	*UserRepo
}

// NewStore builds every repository on db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		AuditoriumRepo: NewAuditoriumRepo(db),
		SeatRepo:       NewSeatRepo(db),
		MovieRepo:      NewMovieRepo(db),
		ShowtimeRepo:   NewShowtimeRepo(db),
		BookingRepo:    NewBookingRepo(db),
		TicketRepo:     NewTicketRepo(db),
		UserRepo:       NewUserRepo(db),
	}
}
