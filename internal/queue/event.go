// Package queue carries domain events over RabbitMQ: confirmed bookings
// go out on booking.confirmed, payment results come in on
// payment.completed.
package queue

import (
    "sort"
    "time"

    "github.com/iliyamo/seatd/internal/model"
)

// Queue names.  All queues are durable.  Payment messages the server
// gives up on are dead-lettered to PaymentDeadLetterQueue for replay.
const (
    BookingConfirmedQueue  = "booking.confirmed"
    PaymentCompletedQueue  = "payment.completed"
    PaymentDeadLetterQueue = "payment.completed.dead"
)

// BookingConfirmedEvent is published once per showtime and owner after a
// confirm.  It carries enough for downstream consumers to log or notify
// without querying the primary database.
type BookingConfirmedEvent struct {
    ShowtimeID  string   `json:"showtimeId"`
    UserID      string   `json:"userId"`
    BookingIDs  []string `json:"bookingIds"`
    SeatIDs     []string `json:"seatIds"`
    ConfirmedAt string   `json:"confirmedAt"`
}

// PaymentCompletedEvent is sent by the payment service when the bookings
// it was asked to charge for have been paid.
type PaymentCompletedEvent struct {
    BookingIDs []string `json:"bookingIds"`
    PaymentID  string   `json:"paymentId,omitempty"`
}

// EventsFromBookings groups confirmed bookings by showtime and owner.
// The result is ordered by showtime then owner.
func EventsFromBookings(bookings []model.Booking, at time.Time) []BookingConfirmedEvent {
    type key struct{ showtime, user string }
    idx := map[key]int{}
    var events []BookingConfirmedEvent
    for _, b := range bookings {
        k := key{b.ShowtimeID, b.UserID}
        i, ok := idx[k]
        if !ok {
            i = len(events)
            idx[k] = i
            events = append(events, BookingConfirmedEvent{
                ShowtimeID:  b.ShowtimeID,
                UserID:      b.UserID,
                ConfirmedAt: at.UTC().Format(time.RFC3339),
            })
        }
        events[i].BookingIDs = append(events[i].BookingIDs, b.ID)
        events[i].SeatIDs = append(events[i].SeatIDs, b.SeatID)
    }
    sort.Slice(events, func(i, j int) bool {
        if events[i].ShowtimeID != events[j].ShowtimeID {
            return events[i].ShowtimeID < events[j].ShowtimeID
        }
        return events[i].UserID < events[j].UserID
    })
    return events
}
