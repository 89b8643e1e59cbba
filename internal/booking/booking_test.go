package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatd/internal/booking"
	"github.com/iliyamo/seatd/internal/booking/memstore"
	"github.com/iliyamo/seatd/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) SeatsChanged(_ context.Context, showtimeID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, showtimeID)
	return nil
}

func (n *recordingNotifier) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []model.Booking
}

func (p *recordingPublisher) BookingsConfirmed(_ context.Context, bookings []model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, bookings...)
	return nil
}

type fixture struct {
	store     *memstore.Store
	clock     *fakeClock
	notifier  *recordingNotifier
	coord     *booking.Coordinator
	projector *booking.Projector
	showtime  *model.Showtime
	hall      model.Auditorium
	seats     map[[2]int]string // (row, number) -> seat id
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, booking.SeedDefaultAuditoriums(ctx, store))

	clock := newFakeClock()
	st, err := booking.SeedDemoShowtime(ctx, store, clock.Now())
	require.NoError(t, err)

	halls, err := store.ListAuditoriums(ctx)
	require.NoError(t, err)
	hall := halls[0]
	require.Equal(t, "Hall 1", hall.Name)

	seats, err := store.SeatsForAuditorium(ctx, hall.ID)
	require.NoError(t, err)
	byPos := make(map[[2]int]string, len(seats))
	for _, s := range seats {
		byPos[[2]int{s.Row, s.Number}] = s.ID
	}

	notifier := &recordingNotifier{}
	policy := booking.NewExpiryPolicy(5 * time.Minute)
	return &fixture{
		store:     store,
		clock:     clock,
		notifier:  notifier,
		coord:     booking.NewCoordinator(store, store, notifier, policy, clock),
		projector: booking.NewProjector(store, store, store, policy, clock),
		showtime:  st,
		hall:      hall,
		seats:     byPos,
	}
}

func (f *fixture) seat(row, number int) string { return f.seats[[2]int{row, number}] }

func (f *fixture) statusOf(t *testing.T, seatID string) model.SeatStatus {
	t.Helper()
	m, err := f.projector.SeatMap(context.Background(), f.showtime.ID)
	require.NoError(t, err)
	for _, s := range m.Seats {
		if s.ID == seatID {
			return s.Status
		}
	}
	t.Fatalf("seat %s not in seat map", seatID)
	return ""
}

func TestHold_PlacesHeldBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(1, 1), f.seat(1, 2), f.seat(1, 1)}, "user-a")
	require.NoError(t, err)
	assert.Len(t, res.BookingIDs, 2, "duplicate seat ids are collapsed")
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), res.ExpiresAt)

	m, err := f.projector.SeatMap(ctx, f.showtime.ID)
	require.NoError(t, err)
	require.Len(t, m.Seats, 120)
	assert.Equal(t, 1, m.Seats[0].Row)
	assert.Equal(t, 1, m.Seats[0].Number)
	assert.Equal(t, model.SeatHeld, m.Seats[0].Status)
	require.NotNil(t, m.Seats[0].ExpiresAt)
	assert.Equal(t, res.ExpiresAt, *m.Seats[0].ExpiresAt)
	assert.Equal(t, model.SeatHeld, m.Seats[1].Status)
	assert.Equal(t, model.SeatAvailable, m.Seats[2].Status)
	assert.Nil(t, m.Seats[2].ExpiresAt)

	assert.Equal(t, []string{f.showtime.ID}, f.notifier.Calls())
}

func TestHold_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Hold(ctx, f.showtime.ID, nil, "user-a")
	assert.ErrorIs(t, err, booking.ErrValidation)

	_, err = f.coord.Hold(ctx, "missing-showtime", nil, "user-a")
	assert.ErrorIs(t, err, booking.ErrValidation, "empty seat list is rejected before the showtime lookup")

	_, err = f.coord.Hold(ctx, "missing-showtime", []string{f.seat(1, 1)}, "user-a")
	assert.ErrorIs(t, err, booking.ErrNotFound)

	halls, err := f.store.ListAuditoriums(ctx)
	require.NoError(t, err)
	foreign, err := f.store.SeatsForAuditorium(ctx, halls[1].ID)
	require.NoError(t, err)
	_, err = f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(1, 1), foreign[0].ID}, "user-a")
	assert.ErrorIs(t, err, booking.ErrValidation)
	assert.Equal(t, model.SeatAvailable, f.statusOf(t, f.seat(1, 1)))

	assert.Empty(t, f.notifier.Calls())
}

func TestHold_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(3, 3)}, "user-a")
	require.NoError(t, err)

	_, err = f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(3, 4), f.seat(3, 3)}, "user-b")
	require.ErrorIs(t, err, booking.ErrConflict)

	assert.Equal(t, model.SeatAvailable, f.statusOf(t, f.seat(3, 4)), "no partial hold remains")
}

func TestHold_ConcurrentSameSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat := f.seat(5, 5)

	const workers = 64
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := f.coord.Hold(ctx, f.showtime.ID, []string{seat}, "user-"+string(rune('A'+i%26)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, booking.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	active, err := f.store.ActiveByShowtime(ctx, f.showtime.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestHold_ConcurrentOverlappingSets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sets := [][]string{
		{f.seat(7, 1), f.seat(7, 2)},
		{f.seat(7, 2), f.seat(7, 3)},
		{f.seat(7, 3), f.seat(7, 4)},
		{f.seat(7, 4), f.seat(7, 1)},
	}
	var wg sync.WaitGroup
	for round := 0; round < 10; round++ {
		for i, set := range sets {
			wg.Add(1)
			go func(i int, set []string) {
				defer wg.Done()
				_, err := f.coord.Hold(ctx, f.showtime.ID, set, "user-"+string(rune('a'+i)))
				if err != nil && !errors.Is(err, booking.ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i, set)
		}
	}
	wg.Wait()

	active, err := f.store.ActiveByShowtime(ctx, f.showtime.ID)
	require.NoError(t, err)
	perSeat := make(map[string]int)
	for _, b := range active {
		perSeat[b.SeatID]++
	}
	for seat, n := range perSeat {
		assert.Equal(t, 1, n, "seat %s has %d active bookings", seat, n)
	}
	assert.Equal(t, 0, len(active)%2, "holds are placed for whole sets only")
}

func TestExpiry_StaleHoldReleasedOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seat := f.seat(1, 1)

	res, err := f.coord.Hold(ctx, f.showtime.ID, []string{seat}, "user-a")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), res.ExpiresAt)

	_, err = f.coord.Hold(ctx, f.showtime.ID, []string{seat}, "user-b")
	require.ErrorIs(t, err, booking.ErrConflict)

	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, model.SeatHeld, f.statusOf(t, seat), "a hold is live until strictly after its expiry")

	f.clock.Advance(time.Second)
	assert.Equal(t, model.SeatAvailable, f.statusOf(t, seat))

	_, err = f.coord.Hold(ctx, f.showtime.ID, []string{seat}, "user-b")
	require.NoError(t, err)

	_, err = f.coord.Confirm(ctx, res.BookingIDs, "user-a")
	assert.ErrorIs(t, err, booking.ErrNotFound, "an expired hold cannot be confirmed")
}

func TestExpiry_ProjectionIgnoresStaleHoldWhenSweepFails(t *testing.T) {
	policy := booking.NewExpiryPolicy(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(-time.Millisecond)
	held := model.Booking{Status: model.BookingHeld, ExpiresAt: &exp}

	assert.True(t, policy.IsStale(held, now))
	assert.Equal(t, model.SeatAvailable, policy.StatusAt(held, now))

	confirmed := model.Booking{Status: model.BookingConfirmed}
	assert.False(t, policy.IsStale(confirmed, now.Add(time.Hour)))
	assert.Equal(t, model.SeatConfirmed, policy.StatusAt(confirmed, now.Add(time.Hour)))

	assert.Equal(t, booking.DefaultHoldDuration, booking.NewExpiryPolicy(0).HoldDuration)
}

func TestConfirm_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	f.coord.SetEventPublisher(pub)

	res, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(2, 1)}, "user-a")
	require.NoError(t, err)

	first, err := f.coord.Confirm(ctx, res.BookingIDs, "user-a")
	require.NoError(t, err)
	assert.Len(t, first.Confirmed, 1)
	assert.Len(t, pub.confirmed, 1)

	second, err := f.coord.Confirm(ctx, res.BookingIDs, "user-a")
	require.NoError(t, err)
	assert.Empty(t, second.Confirmed)
	assert.Equal(t, 1, second.AlreadyConfirmed)
	assert.Len(t, pub.confirmed, 1, "no event for a repeated confirm")

	assert.Equal(t, model.SeatConfirmed, f.statusOf(t, f.seat(2, 1)))
}

func TestConfirm_RequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(2, 5)}, "user-a")
	require.NoError(t, err)

	_, err = f.coord.Confirm(ctx, res.BookingIDs, "user-b")
	assert.ErrorIs(t, err, booking.ErrNotFound)
	assert.Equal(t, model.SeatHeld, f.statusOf(t, f.seat(2, 5)))

	_, err = f.coord.Confirm(ctx, nil, "user-a")
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestConfirmPaid_ScenarioNeverReverts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(2, 1), f.seat(2, 2)}, "user-a")
	require.NoError(t, err)

	out, err := f.coord.ConfirmPaid(ctx, res.BookingIDs)
	require.NoError(t, err)
	assert.Len(t, out.Confirmed, 2)
	for _, b := range out.Confirmed {
		assert.Equal(t, model.BookingConfirmed, b.Status)
		assert.Nil(t, b.ExpiresAt)
	}

	f.clock.Advance(time.Hour)
	assert.Equal(t, model.SeatConfirmed, f.statusOf(t, f.seat(2, 1)))
	assert.Equal(t, model.SeatConfirmed, f.statusOf(t, f.seat(2, 2)))
}

func TestConfirmPaid_NothingMatchedIsNotAnError(t *testing.T) {
	f := newFixture(t)

	out, err := f.coord.ConfirmPaid(context.Background(), []string{"no-such-booking"})
	require.NoError(t, err)
	assert.Empty(t, out.Confirmed)

	_, err = f.coord.ConfirmPaid(context.Background(), []string{})
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled, err := f.coord.Cancel(ctx, []string{"does-not-exist"}, "user-a")
	require.NoError(t, err)
	assert.Empty(t, cancelled)
	assert.Empty(t, f.notifier.Calls())

	res, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(4, 4)}, "user-a")
	require.NoError(t, err)

	cancelled, err = f.coord.Cancel(ctx, res.BookingIDs, "user-b")
	require.NoError(t, err)
	assert.Empty(t, cancelled, "foreign bookings are ignored")
	assert.Equal(t, model.SeatHeld, f.statusOf(t, f.seat(4, 4)))

	cancelled, err = f.coord.Cancel(ctx, res.BookingIDs, "user-a")
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, model.BookingCancelled, cancelled[0].Status)
	assert.Equal(t, model.SeatAvailable, f.statusOf(t, f.seat(4, 4)))

	_, err = f.coord.Confirm(ctx, res.BookingIDs, "user-a")
	assert.ErrorIs(t, err, booking.ErrNotFound, "cancelled is terminal")

	_, err = f.coord.Cancel(ctx, nil, "user-a")
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.CheckIn(ctx, "missing")
	assert.ErrorIs(t, err, booking.ErrNotFound)

	res, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(6, 6)}, "user-a")
	require.NoError(t, err)
	id := res.BookingIDs[0]

	_, err = f.coord.CheckIn(ctx, id)
	assert.ErrorIs(t, err, booking.ErrNotConfirmed)

	_, err = f.coord.ConfirmPaid(ctx, res.BookingIDs)
	require.NoError(t, err)

	first, err := f.coord.CheckIn(ctx, id)
	require.NoError(t, err)
	assert.False(t, first.AlreadyCheckedIn)
	require.NotNil(t, first.Booking.ScannedAt)

	f.clock.Advance(time.Minute)
	second, err := f.coord.CheckIn(ctx, id)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)
	require.NotNil(t, second.Booking.ScannedAt)
	assert.Equal(t, *first.Booking.ScannedAt, *second.Booking.ScannedAt, "scan time is set once")
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(1, 1)}, "user-a")
	require.NoError(t, err)
	paid, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(1, 2)}, "user-b")
	require.NoError(t, err)
	_, err = f.coord.ConfirmPaid(ctx, paid.BookingIDs)
	require.NoError(t, err)

	sum, err := f.projector.Summary(ctx, f.showtime.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Held)
	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, 118, sum.Available)
	assert.Equal(t, held.BookingIDs[0], sum.Seats[0].BookingID)
	assert.Equal(t, "user-a", sum.Seats[0].UserID)
	assert.Equal(t, "user-b", sum.Seats[1].UserID)
	assert.Empty(t, sum.Seats[2].BookingID)

	_, err = f.projector.Summary(ctx, "missing")
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestSweeper_NotifiesAffectedShowtimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Hold(ctx, f.showtime.ID, []string{f.seat(9, 9)}, "user-a")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	sweeper := booking.NewSweeper(f.store, notifier, f.clock, time.Second)

	swept, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, swept)

	f.clock.Advance(6 * time.Minute)
	swept, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{f.showtime.ID}, swept)
	assert.Equal(t, []string{f.showtime.ID}, notifier.Calls())

	active, err := f.store.ActiveByShowtime(ctx, f.showtime.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSeedDefaultAuditoriums_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	require.NoError(t, booking.SeedDefaultAuditoriums(ctx, store))
	require.NoError(t, booking.SeedDefaultAuditoriums(ctx, store))

	halls, err := store.ListAuditoriums(ctx)
	require.NoError(t, err)
	require.Len(t, halls, 5)

	want := map[string]int{"Hall 1": 120, "Hall 2": 120, "Hall 3": 168, "Hall 4": 168, "Hall 5": 224}
	for _, h := range halls {
		seats, err := store.SeatsForAuditorium(ctx, h.ID)
		require.NoError(t, err)
		assert.Len(t, seats, want[h.Name], h.Name)
	}
}
