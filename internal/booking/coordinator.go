// Package booking implements the seat-hold lifecycle: placing holds,
// confirming and cancelling them, expiring stale holds and projecting
// per-seat availability.  Storage is reached through the Ledger,
// Showtimes and Inventory ports; every successful mutation is
// announced through a Notifier.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seatd/internal/logging"
	"github.com/iliyamo/seatd/internal/metrics"
	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/repository"
)

// HoldResult is returned by a successful Hold.
type HoldResult struct {
	BookingIDs []string  `json:"bookingIds"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ConfirmResult lists the bookings a confirm call moved to CONFIRMED.
// AlreadyConfirmed counts requested bookings that were confirmed by an
// earlier call.
type ConfirmResult struct {
	Confirmed        []model.Booking
	AlreadyConfirmed int
}

// CheckInResult is returned by CheckIn.
type CheckInResult struct {
	Booking          model.Booking
	AlreadyCheckedIn bool
}

// Coordinator runs the hold, confirm and cancel operations.  It is safe
// for concurrent use; serialization happens in the Ledger.
type Coordinator struct {
	ledger    Ledger
	showtimes Showtimes
	notifier  Notifier
	events    EventPublisher
	policy    ExpiryPolicy
	clock     Clock
}

// NewCoordinator wires a Coordinator.  A nil notifier disables
// broadcasts and a nil clock uses RealClock.
func NewCoordinator(ledger Ledger, showtimes Showtimes, notifier Notifier, policy ExpiryPolicy, clock Clock) *Coordinator {
	if ledger == nil || showtimes == nil {
		panic("booking: NewCoordinator requires a ledger and a showtime source")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Coordinator{
		ledger:    ledger,
		showtimes: showtimes,
		notifier:  notifier,
		policy:    policy,
		clock:     clock,
	}
}

// SetEventPublisher attaches the publisher used after confirmations.
// Call it before serving requests.
func (c *Coordinator) SetEventPublisher(p EventPublisher) { c.events = p }

// Policy returns the expiry policy in use.
func (c *Coordinator) Policy() ExpiryPolicy { return c.policy }

// Hold places a HELD booking on every requested seat of a showtime for
// userID, or on none of them.  Duplicate seat ids are collapsed.
func (c *Coordinator) Hold(ctx context.Context, showtimeID string, seatIDs []string, userID string) (*HoldResult, error) {
	defer metrics.ObserveLedger("hold", time.Now())

	seats := uniqueIDs(seatIDs)
	if len(seats) == 0 {
		metrics.HoldsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: seatIds required", ErrValidation)
	}
	if userID == "" {
		metrics.HoldsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: user required", ErrValidation)
	}

	now := c.clock.Now().UTC()
	c.sweep(ctx, showtimeID, now)

	st, err := c.showtimes.GetShowtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			metrics.HoldsTotal.WithLabelValues("not_found").Inc()
			return nil, fmt.Errorf("%w: showtime %s", ErrNotFound, showtimeID)
		}
		metrics.HoldsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load showtime: %w", err)
	}

	expiresAt := c.policy.ExpiresAt(now)
	created, err := c.ledger.CreateHolds(ctx, repository.HoldParams{
		ShowtimeID:   st.ID,
		AuditoriumID: st.AuditoriumID,
		UserID:       userID,
		SeatIDs:      seats,
		Now:          now,
		ExpiresAt:    expiresAt,
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConflict):
		metrics.HoldsTotal.WithLabelValues("conflict").Inc()
		return nil, fmt.Errorf("%w: some seats are no longer available", ErrConflict)
	case errors.Is(err, repository.ErrUnknownSeat):
		metrics.HoldsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	default:
		metrics.HoldsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create holds: %w", err)
	}

	metrics.HoldsTotal.WithLabelValues("ok").Inc()
	metrics.HeldSeatsTotal.Add(float64(len(created)))

	ids := make([]string, 0, len(created))
	for _, b := range created {
		ids = append(ids, b.ID)
	}
	c.broadcast(ctx, st.ID)
	return &HoldResult{BookingIDs: ids, ExpiresAt: expiresAt}, nil
}

// Confirm moves the caller's own HELD bookings to CONFIRMED.  It fails
// with ErrNotFound when none of the ids name a booking of the caller
// that is HELD or already CONFIRMED.
func (c *Coordinator) Confirm(ctx context.Context, bookingIDs []string, userID string) (*ConfirmResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user required", ErrValidation)
	}
	res, err := c.confirm(ctx, bookingIDs, userID, "user")
	if err != nil {
		return nil, err
	}
	if len(res.Confirmed) == 0 && res.AlreadyConfirmed == 0 {
		return nil, fmt.Errorf("%w: no held bookings found", ErrNotFound)
	}
	return res, nil
}

// ConfirmPaid is the trusted payment path: it confirms the HELD
// bookings regardless of owner.  Matching nothing is not an error so the
// payment event is acknowledged rather than redelivered.
func (c *Coordinator) ConfirmPaid(ctx context.Context, bookingIDs []string) (*ConfirmResult, error) {
	res, err := c.confirm(ctx, bookingIDs, "", "payment")
	if err != nil {
		return nil, err
	}
	if missed := len(uniqueIDs(bookingIDs)) - len(res.Confirmed) - res.AlreadyConfirmed; missed > 0 {
		logging.Ctx(ctx).Warn().
			Strs("booking_ids", bookingIDs).
			Int("missed", missed).
			Msg("payment confirmed bookings that were no longer held")
	}
	return res, nil
}

// confirm is the single HELD to CONFIRMED transition shared by both
// entry points.  An empty owner disables the ownership filter.
func (c *Coordinator) confirm(ctx context.Context, bookingIDs []string, owner, path string) (*ConfirmResult, error) {
	defer metrics.ObserveLedger("confirm", time.Now())

	ids := uniqueIDs(bookingIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: bookingIds required", ErrValidation)
	}

	now := c.clock.Now().UTC()
	c.sweep(ctx, "", now)

	confirmed, err := c.ledger.ConfirmHeld(ctx, ids, owner, now)
	if err != nil {
		return nil, fmt.Errorf("confirm bookings: %w", err)
	}
	res := &ConfirmResult{Confirmed: confirmed}

	if len(confirmed) < len(ids) {
		// A repeated confirm finds nothing HELD; report it as settled.
		n, err := c.countConfirmed(ctx, ids, owner, confirmed)
		if err != nil {
			return nil, err
		}
		res.AlreadyConfirmed = n
	}

	if len(confirmed) == 0 {
		return res, nil
	}
	metrics.ConfirmedBookingsTotal.WithLabelValues(path).Add(float64(len(confirmed)))
	for _, id := range showtimesOf(confirmed) {
		c.broadcast(ctx, id)
	}
	if c.events != nil {
		if err := c.events.BookingsConfirmed(ctx, confirmed); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("publish booking confirmed event")
		}
	}
	return res, nil
}

func (c *Coordinator) countConfirmed(ctx context.Context, ids []string, owner string, justConfirmed []model.Booking) (int, error) {
	fresh := make(map[string]struct{}, len(justConfirmed))
	for _, b := range justConfirmed {
		fresh[b.ID] = struct{}{}
	}
	rows, err := c.ledger.FindBookings(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("load bookings: %w", err)
	}
	n := 0
	for _, b := range rows {
		if _, ok := fresh[b.ID]; ok {
			continue
		}
		if b.Status == model.BookingConfirmed && (owner == "" || b.UserID == owner) {
			n++
		}
	}
	return n, nil
}

// Cancel releases the caller's HELD bookings among bookingIDs.  Ids that
// are unknown, foreign or no longer HELD are ignored.
func (c *Coordinator) Cancel(ctx context.Context, bookingIDs []string, userID string) ([]model.Booking, error) {
	defer metrics.ObserveLedger("cancel", time.Now())

	ids := uniqueIDs(bookingIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: bookingIds required", ErrValidation)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user required", ErrValidation)
	}

	now := c.clock.Now().UTC()
	c.sweep(ctx, "", now)

	cancelled, err := c.ledger.CancelHeld(ctx, ids, userID)
	if err != nil {
		return nil, fmt.Errorf("cancel bookings: %w", err)
	}
	if len(cancelled) > 0 {
		metrics.CancelledBookingsTotal.Add(float64(len(cancelled)))
		for _, id := range showtimesOf(cancelled) {
			c.broadcast(ctx, id)
		}
	}
	return cancelled, nil
}

// CheckIn records that the ticket of a CONFIRMED booking was scanned at
// the door.  The first scan stamps the time; later scans report
// AlreadyCheckedIn.
func (c *Coordinator) CheckIn(ctx context.Context, bookingID string) (*CheckInResult, error) {
	if bookingID == "" {
		return nil, fmt.Errorf("%w: bookingId required", ErrValidation)
	}
	rows, err := c.ledger.FindBookings(ctx, []string{bookingID})
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if len(rows) == 0 {
		metrics.CheckInsTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	b := rows[0]
	if b.Status != model.BookingConfirmed {
		metrics.CheckInsTotal.WithLabelValues("not_confirmed").Inc()
		return nil, fmt.Errorf("%w: status %s", ErrNotConfirmed, b.Status)
	}

	now := c.clock.Now().UTC()
	stamped, err := c.ledger.MarkScanned(ctx, b.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark scanned: %w", err)
	}
	if stamped {
		b.ScannedAt = &now
		metrics.CheckInsTotal.WithLabelValues("checked_in").Inc()
		return &CheckInResult{Booking: b}, nil
	}

	// Reload to report the original scan time.
	if rows, err = c.ledger.FindBookings(ctx, []string{b.ID}); err == nil && len(rows) == 1 {
		b = rows[0]
	}
	metrics.CheckInsTotal.WithLabelValues("already").Inc()
	return &CheckInResult{Booking: b, AlreadyCheckedIn: true}, nil
}

// sweep cancels stale holds before a read or mutation.  A failed sweep
// is logged only: the conflict check and projection ignore stale holds
// on their own.
func (c *Coordinator) sweep(ctx context.Context, showtimeID string, now time.Time) {
	swept, err := c.ledger.SweepExpired(ctx, showtimeID, now)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("showtime_id", showtimeID).Msg("sweep expired holds")
		return
	}
	if len(swept) > 0 {
		metrics.SweptShowtimesTotal.WithLabelValues("lazy").Add(float64(len(swept)))
	}
}

func (c *Coordinator) broadcast(ctx context.Context, showtimeID string) {
	if err := c.notifier.SeatsChanged(ctx, showtimeID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("showtime_id", showtimeID).Msg("notify seats changed")
	}
}

// uniqueIDs drops empty and repeated ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func showtimesOf(bookings []model.Booking) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, b := range bookings {
		if _, ok := seen[b.ShowtimeID]; ok {
			continue
		}
		seen[b.ShowtimeID] = struct{}{}
		out = append(out, b.ShowtimeID)
	}
	return out
}
