package booking

import (
	"context"
	"time"

	"github.com/iliyamo/seatd/internal/logging"
	"github.com/iliyamo/seatd/internal/metrics"
)

// Sweeper periodically cancels expired holds across all showtimes and
// notifies subscribers of the showtimes it touched.  It complements the
// lazy sweep done on every read and mutation; it is a suture.Service.
type Sweeper struct {
	ledger   Ledger
	notifier Notifier
	clock    Clock
	interval time.Duration
}

// NewSweeper returns a Sweeper running every interval.
func NewSweeper(ledger Ledger, notifier Notifier, clock Clock, interval time.Duration) *Sweeper {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Sweeper{ledger: ledger, notifier: notifier, clock: clock, interval: interval}
}

// Serve runs until ctx is cancelled.
func (s *Sweeper) Serve(ctx context.Context) error {
	log := logging.WithComponent("sweeper")
	log.Info().Dur("interval", s.interval).Msg("hold sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("hold sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Warn().Err(err).Msg("sweep failed")
			}
		}
	}
}

// SweepOnce performs one global sweep and returns the affected
// showtime ids.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]string, error) {
	swept, err := s.ledger.SweepExpired(ctx, "", s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(swept) == 0 {
		return nil, nil
	}
	metrics.SweptShowtimesTotal.WithLabelValues("scheduled").Add(float64(len(swept)))
	for _, id := range swept {
		if err := s.notifier.SeatsChanged(ctx, id); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("showtime_id", id).Msg("notify seats changed")
		}
	}
	return swept, nil
}

func (s *Sweeper) String() string { return "hold-sweeper" }
