//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/seatd/internal/booking"
	"github.com/iliyamo/seatd/internal/database"
	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/repository"
)

const mysqlImage = "mysql:8.0.36"

type fixture struct {
	store    *repository.Store
	showtime *model.Showtime
	seats    []model.Seat
}

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// newFixture starts MySQL, applies the schema and seeds the default
// halls plus one showtime.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	skipIfNoDocker(t)
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, mysqlImage,
		tcmysql.WithDatabase("seatd"),
		tcmysql.WithUsername("seatd"),
		tcmysql.WithPassword("seatd"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "parseTime=true", "loc=UTC", "charset=utf8mb4")
	require.NoError(t, err)
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(20)

	require.NoError(t, database.Migrate(ctx, db))
	store := repository.NewStore(db)
	require.NoError(t, booking.SeedDefaultAuditoriums(ctx, store))
	st, err := booking.SeedDemoShowtime(ctx, store, time.Now())
	require.NoError(t, err)
	seats, err := store.SeatsForAuditorium(ctx, st.AuditoriumID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(seats), 4)

	return &fixture{store: store, showtime: st, seats: seats}
}

func (f *fixture) params(user string, now time.Time, seats ...model.Seat) repository.HoldParams {
	ids := make([]string, 0, len(seats))
	for _, s := range seats {
		ids = append(ids, s.ID)
	}
	return repository.HoldParams{
		ShowtimeID:   f.showtime.ID,
		AuditoriumID: f.showtime.AuditoriumID,
		UserID:       user,
		SeatIDs:      ids,
		Now:          now,
		ExpiresAt:    now.Add(5 * time.Minute),
	}
}

func TestBookingRepo_MySQL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.BookingRepo

	t.Run("concurrent holds on overlapping seats", func(t *testing.T) {
		now := time.Now().UTC()
		seats := f.seats[0:3]
		const workers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			won       [][]model.Booking
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				// each worker wants two of the three seats, so every pair overlaps
				pick := []model.Seat{seats[i%3], seats[(i+1)%3]}
				got, err := repo.CreateHolds(ctx, f.params("racer", now, pick...))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					won = append(won, got)
				case errors.Is(err, repository.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		require.Len(t, won, 1)
		assert.Equal(t, workers-1, conflicts)

		active, err := repo.ActiveByShowtime(ctx, f.showtime.ID)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		t.Run("concurrent confirms move each hold once", func(t *testing.T) {
			ids := []string{won[0][0].ID, won[0][1].ID}
			results := make([][]model.Booking, 2)
			var cwg sync.WaitGroup
			for i := range results {
				cwg.Add(1)
				go func(i int) {
					defer cwg.Done()
					got, err := repo.ConfirmHeld(ctx, ids, "", time.Now().UTC())
					assert.NoError(t, err)
					results[i] = got
				}(i)
			}
			cwg.Wait()

			assert.Equal(t, 2, len(results[0])+len(results[1]))
			assert.True(t, len(results[0]) == 0 || len(results[1]) == 0)

			found, err := repo.FindBookings(ctx, ids)
			require.NoError(t, err)
			for _, b := range found {
				assert.Equal(t, model.BookingConfirmed, b.Status)
				assert.Nil(t, b.ExpiresAt)
			}
		})
	})

	t.Run("conflict rolls back the whole request", func(t *testing.T) {
		now := time.Now().UTC()
		free := f.seats[3]
		_, err := repo.CreateHolds(ctx, f.params("bob", now, free, f.seats[0]))
		require.ErrorIs(t, err, repository.ErrConflict)

		active, err := repo.ActiveByShowtime(ctx, f.showtime.ID)
		require.NoError(t, err)
		for _, b := range active {
			assert.NotEqual(t, free.ID, b.SeatID)
		}
	})

	t.Run("stale hold is released inside the hold transaction", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Hour)
		seat := f.seats[3]
		stale, err := repo.CreateHolds(ctx, f.params("carol", past, seat))
		require.NoError(t, err)

		fresh, err := repo.CreateHolds(ctx, f.params("dave", time.Now().UTC(), seat))
		require.NoError(t, err)
		require.Len(t, fresh, 1)

		found, err := repo.FindBookings(ctx, []string{stale[0].ID})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, model.BookingCancelled, found[0].Status)
	})

	t.Run("sweep cancels expired holds and reports the showtime", func(t *testing.T) {
		seat := f.seats[4]
		past := time.Now().UTC().Add(-time.Hour)
		held, err := repo.CreateHolds(ctx, f.params("erin", past, seat))
		require.NoError(t, err)

		swept, err := repo.SweepExpired(ctx, f.showtime.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, []string{f.showtime.ID}, swept)

		confirmed, err := repo.ConfirmHeld(ctx, []string{held[0].ID}, "erin", time.Now().UTC())
		require.NoError(t, err)
		assert.Empty(t, confirmed)
	})

	t.Run("unknown seat", func(t *testing.T) {
		p := f.params("frank", time.Now().UTC(), f.seats[5])
		p.SeatIDs = append(p.SeatIDs, "not-a-seat")
		_, err := repo.CreateHolds(ctx, p)
		assert.ErrorIs(t, err, repository.ErrUnknownSeat)
	})
}
