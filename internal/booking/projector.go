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

// ShowtimeInfo is the showtime header of a seat map.
type ShowtimeInfo struct {
	ID           string    `json:"id"`
	MovieID      string    `json:"movieId"`
	AuditoriumID string    `json:"auditoriumId"`
	StartsAt     time.Time `json:"startsAt"`
	PriceCents   int       `json:"priceCents"`
}

// SeatView is one seat of a seat map.  ExpiresAt is set only for HELD
// seats.
type SeatView struct {
	ID        string           `json:"id"`
	Row       int              `json:"row"`
	Number    int              `json:"number"`
	Status    model.SeatStatus `json:"status"`
	ExpiresAt *time.Time       `json:"expiresAt"`
}

// SeatMap is the availability view of one showtime.
type SeatMap struct {
	Showtime ShowtimeInfo `json:"showtime"`
	Seats    []SeatView   `json:"seats"`
}

// SummarySeat extends SeatView with the booking occupying the seat.
type SummarySeat struct {
	SeatView
	BookingID string     `json:"bookingId,omitempty"`
	UserID    string     `json:"userId,omitempty"`
	ScannedAt *time.Time `json:"scannedAt,omitempty"`
}

// Summary is the admin view of a showtime.
type Summary struct {
	Showtime  ShowtimeInfo  `json:"showtime"`
	Seats     []SummarySeat `json:"seats"`
	Held      int           `json:"held"`
	Confirmed int           `json:"confirmed"`
	Available int           `json:"available"`
	CheckedIn int           `json:"checkedIn"`
}

// Projector builds seat maps from the inventory and the ledger.
type Projector struct {
	ledger    Ledger
	showtimes Showtimes
	inventory Inventory
	policy    ExpiryPolicy
	clock     Clock
}

// NewProjector returns a Projector.  A nil clock uses RealClock.
func NewProjector(ledger Ledger, showtimes Showtimes, inventory Inventory, policy ExpiryPolicy, clock Clock) *Projector {
	if clock == nil {
		clock = RealClock{}
	}
	return &Projector{ledger: ledger, showtimes: showtimes, inventory: inventory, policy: policy, clock: clock}
}

// SeatMap returns every seat of the showtime's auditorium ordered by row
// and number, each with its current status.
func (p *Projector) SeatMap(ctx context.Context, showtimeID string) (*SeatMap, error) {
	st, seats, active, now, err := p.load(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	out := &SeatMap{Showtime: showtimeInfo(st), Seats: make([]SeatView, 0, len(seats))}
	for _, s := range seats {
		out.Seats = append(out.Seats, p.view(s, active, now))
	}
	return out, nil
}

// Summary returns the seat map with the occupying booking of each seat
// and per-status tallies.
func (p *Projector) Summary(ctx context.Context, showtimeID string) (*Summary, error) {
	st, seats, active, now, err := p.load(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	out := &Summary{Showtime: showtimeInfo(st), Seats: make([]SummarySeat, 0, len(seats))}
	for _, s := range seats {
		row := SummarySeat{SeatView: p.view(s, active, now)}
		if b, ok := active[s.ID]; ok && row.Status != model.SeatAvailable {
			row.BookingID = b.ID
			row.UserID = b.UserID
			row.ScannedAt = b.ScannedAt
			if b.ScannedAt != nil {
				out.CheckedIn++
			}
		}
		switch row.Status {
		case model.SeatHeld:
			out.Held++
		case model.SeatConfirmed:
			out.Confirmed++
		default:
			out.Available++
		}
		out.Seats = append(out.Seats, row)
	}
	return out, nil
}

func (p *Projector) load(ctx context.Context, showtimeID string) (*model.Showtime, []model.Seat, map[string]model.Booking, time.Time, error) {
	now := p.clock.Now().UTC()
	swept, err := p.ledger.SweepExpired(ctx, showtimeID, now)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("showtime_id", showtimeID).Msg("sweep expired holds")
	} else if len(swept) > 0 {
		metrics.SweptShowtimesTotal.WithLabelValues("lazy").Add(float64(len(swept)))
	}

	st, err := p.showtimes.GetShowtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, repository.ErrShowtimeNotFound) {
			return nil, nil, nil, now, fmt.Errorf("%w: showtime %s", ErrNotFound, showtimeID)
		}
		return nil, nil, nil, now, fmt.Errorf("load showtime: %w", err)
	}
	seats, err := p.inventory.SeatsForAuditorium(ctx, st.AuditoriumID)
	if err != nil {
		return nil, nil, nil, now, fmt.Errorf("load seats: %w", err)
	}
	bookings, err := p.ledger.ActiveByShowtime(ctx, st.ID)
	if err != nil {
		return nil, nil, nil, now, fmt.Errorf("load bookings: %w", err)
	}
	active := make(map[string]model.Booking, len(bookings))
	for _, b := range bookings {
		active[b.SeatID] = b
	}
	return st, seats, active, now, nil
}

func (p *Projector) view(s model.Seat, active map[string]model.Booking, now time.Time) SeatView {
	v := SeatView{ID: s.ID, Row: s.Row, Number: s.Number, Status: model.SeatAvailable}
	if b, ok := active[s.ID]; ok {
		v.Status = p.policy.StatusAt(b, now)
		if v.Status == model.SeatHeld {
			v.ExpiresAt = b.ExpiresAt
		}
	}
	return v
}

func showtimeInfo(st *model.Showtime) ShowtimeInfo {
	return ShowtimeInfo{
		ID:           st.ID,
		MovieID:      st.MovieID,
		AuditoriumID: st.AuditoriumID,
		StartsAt:     st.StartsAt,
		PriceCents:   st.PriceCents,
	}
}
