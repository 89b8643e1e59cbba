// Package memstore is an in-process implementation of the booking
// ports.  One mutex serializes every operation, which gives the same
// one-active-booking-per-seat guarantee the MySQL unique index gives.
// It backs STORAGE_DRIVER=memory and the package tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/repository"
)

type slotKey struct {
	showtimeID string
	seatID     string
}

// Store holds every entity in maps guarded by mu.
type Store struct {
	mu sync.Mutex

	auditoriums map[string]model.Auditorium
	hallOrder   []string
	seats       map[string][]model.Seat // auditorium id -> seats ordered by row, number
	seatByID    map[string]model.Seat
	movies      map[string]model.Movie
	movieOrder  []string
	showtimes   map[string]model.Showtime
	bookings    map[string]*model.Booking
	active      map[slotKey]string // -> booking id of the HELD/CONFIRMED booking
	users       map[string]model.User
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		auditoriums: make(map[string]model.Auditorium),
		seats:       make(map[string][]model.Seat),
		seatByID:    make(map[string]model.Seat),
		movies:      make(map[string]model.Movie),
		showtimes:   make(map[string]model.Showtime),
		bookings:    make(map[string]*model.Booking),
		active:      make(map[slotKey]string),
		users:       make(map[string]model.User),
	}
}

// ---- seat inventory ----

// CountAuditoriums returns the number of auditoriums.
func (s *Store) CountAuditoriums(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.auditoriums), nil
}

// CreateAuditorium stores a, assigning an id when empty.
func (s *Store) CreateAuditorium(_ context.Context, a *model.Auditorium) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.auditoriums {
		if strings.EqualFold(existing.Name, a.Name) {
			return repository.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.auditoriums[a.ID] = *a
	s.hallOrder = append(s.hallOrder, a.ID)
	return nil
}

// ListAuditoriums returns auditoriums in creation order.
func (s *Store) ListAuditoriums(_ context.Context) ([]model.Auditorium, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Auditorium, 0, len(s.hallOrder))
	for _, id := range s.hallOrder {
		out = append(out, s.auditoriums[id])
	}
	return out, nil
}

// EnsureSeatsForAuditorium creates the rows x cols grid unless the
// auditorium already has seats.
func (s *Store) EnsureSeatsForAuditorium(_ context.Context, a model.Auditorium) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seats[a.ID]) > 0 {
		return 0, nil
	}
	grid := make([]model.Seat, 0, a.SeatCount())
	for r := 1; r <= a.Rows; r++ {
		for n := 1; n <= a.Cols; n++ {
			seat := model.Seat{ID: uuid.NewString(), AuditoriumID: a.ID, Row: r, Number: n}
			grid = append(grid, seat)
			s.seatByID[seat.ID] = seat
		}
	}
	s.seats[a.ID] = grid
	return len(grid), nil
}

// SeatsForAuditorium returns the seats ordered by row, then number.
func (s *Store) SeatsForAuditorium(_ context.Context, auditoriumID string) ([]model.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Seat(nil), s.seats[auditoriumID]...), nil
}

// ---- catalogue ----

// EnsureMovie finds a movie by title or creates it; m.ID is filled in.
func (s *Store) EnsureMovie(_ context.Context, m *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.movies {
		if existing.Title == m.Title {
			*m = existing
			return nil
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.movies[m.ID] = *m
	s.movieOrder = append(s.movieOrder, m.ID)
	return nil
}

// ListMovies returns movies ordered by title.
func (s *Store) ListMovies(_ context.Context) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Movie, 0, len(s.movies))
	for _, id := range s.movieOrder {
		out = append(out, s.movies[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// GetMovie returns repository.ErrMovieNotFound for unknown ids.
func (s *Store) GetMovie(_ context.Context, id string) (*model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return &m, nil
}

// EnsureShowtime finds the showtime of the same auditorium and start
// time or creates it.  StartsAt is normalized first.
func (s *Store) EnsureShowtime(_ context.Context, st *model.Showtime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.StartsAt = model.NormalizeStartsAt(st.StartsAt)
	if st.PriceCents <= 0 {
		st.PriceCents = model.DefaultPriceCents
	}
	for _, existing := range s.showtimes {
		if existing.AuditoriumID == st.AuditoriumID && existing.StartsAt.Equal(st.StartsAt) {
			*st = existing
			return nil
		}
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	s.showtimes[st.ID] = *st
	return nil
}

// GetShowtime returns repository.ErrShowtimeNotFound for unknown ids.
func (s *Store) GetShowtime(_ context.Context, id string) (*model.Showtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.showtimes[id]
	if !ok {
		return nil, repository.ErrShowtimeNotFound
	}
	return &st, nil
}

// ListShowtimesByMovie returns the movie's showtimes ordered by start.
func (s *Store) ListShowtimesByMovie(_ context.Context, movieID string) ([]model.Showtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[movieID]; !ok {
		return nil, repository.ErrMovieNotFound
	}
	var out []model.Showtime
	for _, st := range s.showtimes {
		if st.MovieID == movieID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// ---- users ----

// EnsureAdmin creates an ADMIN user with the given email unless one
// exists.  It reports whether a user was created.
func (s *Store) EnsureAdmin(_ context.Context, email, name, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return false, nil
		}
	}
	u := model.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         model.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	return true, nil
}

// PutUser stores u as is.  Tests use it to attach emails to tickets.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}
