// Package metrics exposes the Prometheus collectors of the seat-hold
// engine.  Collectors register on the default registry through promauto
// and are served by the /metrics route.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Booking lifecycle
	HoldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatd_holds_total",
			Help: "Hold attempts by result",
		},
		[]string{"result"}, // "ok", "conflict", "invalid", "not_found", "error"
	)

	HeldSeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatd_held_seats_total",
			Help: "Seats placed on hold",
		},
	)

	ConfirmedBookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatd_confirmed_bookings_total",
			Help: "Bookings moved from HELD to CONFIRMED by path",
		},
		[]string{"path"}, // "user", "payment"
	)

	CancelledBookingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatd_cancelled_bookings_total",
			Help: "Bookings cancelled by their owner",
		},
	)

	SweptShowtimesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatd_swept_showtimes_total",
			Help: "Showtimes that had expired holds cancelled, by trigger",
		},
		[]string{"trigger"}, // "lazy", "scheduled"
	)

	CheckInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatd_checkins_total",
			Help: "Ticket scans by outcome",
		},
		[]string{"outcome"}, // "checked_in", "already", "not_confirmed", "not_found"
	)

	LedgerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seatd_ledger_operation_duration_seconds",
			Help:    "Duration of coordinator operations including storage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Change notifier
	SubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seatd_ws_subscribers_active",
			Help: "Connected WebSocket subscribers",
		},
	)

	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatd_seat_broadcasts_total",
			Help: "seats_update notifications fanned out to local subscribers",
		},
	)

	DroppedMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatd_ws_dropped_messages_total",
			Help: "Messages dropped because a subscriber buffer was full",
		},
	)

	// Messaging
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatd_events_published_total",
			Help: "AMQP events published by queue and result",
		},
		[]string{"queue", "result"},
	)

	PaymentsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatd_payment_events_consumed_total",
			Help: "payment.completed messages consumed by outcome",
		},
		[]string{"outcome"}, // "ack", "nack"
	)
)

// ObserveLedger records the duration of a coordinator operation.
func ObserveLedger(operation string, start time.Time) {
	LedgerDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
