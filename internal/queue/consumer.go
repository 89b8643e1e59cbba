package queue

import (
    "context"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/goccy/go-json"
    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/seatd/internal/booking"
    "github.com/iliyamo/seatd/internal/logging"
    "github.com/iliyamo/seatd/internal/metrics"
)

// ErrMalformed marks a message that can never be processed.  It is
// rejected without requeue.
var ErrMalformed = errors.New("malformed message")

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Consumer is a suture.Service that consumes one durable queue.  Serve
// returns when the connection drops, and the supervisor restarts it with
// backoff.
type Consumer struct {
    name       string
    url        string
    queue      string
    deadLetter string
    prefetch   int
    handle     Handler
}

// NewConsumer returns a consumer of queue calling handle for each
// delivery.
func NewConsumer(name, url, queue string, handle Handler) *Consumer {
    return &Consumer{name: name, url: url, queue: queue, prefetch: 50, handle: handle}
}

// WithDeadLetter routes messages that are nacked without requeue to the
// durable queue dlq through the default exchange instead of dropping
// them.
func (c *Consumer) WithDeadLetter(dlq string) *Consumer {
    c.deadLetter = dlq
    return c
}

// queueDeclarer is the part of *amqp.Channel used to declare queues.
type queueDeclarer interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// declare creates the consumed queue and, when configured, its dead
// letter queue.
func (c *Consumer) declare(ch queueDeclarer) error {
    var args amqp.Table
    if c.deadLetter != "" {
        if _, err := ch.QueueDeclare(c.deadLetter, true, false, false, false, nil); err != nil {
            return fmt.Errorf("%s: dead letter queue declare: %w", c.name, err)
        }
        args = amqp.Table{
            "x-dead-letter-exchange":    "",
            "x-dead-letter-routing-key": c.deadLetter,
        }
    }
    if _, err := ch.QueueDeclare(c.queue, true, false, false, false, args); err != nil {
        return fmt.Errorf("%s: queue declare: %w", c.name, err)
    }
    return nil
}

// String names the service for the supervisor log.
func (c *Consumer) String() string { return c.name }

// Serve consumes until ctx is cancelled or the broker goes away.
func (c *Consumer) Serve(ctx context.Context) error {
    log := logging.WithComponent(c.name)

    conn, err := amqp.DialConfig(c.url, dialConfig(dialTimeout))
    if err != nil {
        return fmt.Errorf("%s: dial: %w", c.name, err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("%s: channel open: %w", c.name, err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(c.prefetch, 0, false); err != nil {
        log.Warn().Err(err).Msg("set QoS failed")
    }
    if err := c.declare(ch); err != nil {
        return err
    }
    msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("%s: consume: %w", c.name, err)
    }
    log.Info().Str("queue", c.queue).Msg("consuming")

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return fmt.Errorf("%s: deliveries channel closed", c.name)
            }
            c.dispatch(ctx, d)
        }
    }
}

// dispatch acks handled messages.  Failures are requeued once, except
// malformed ones; a message that is not requeued is dead-lettered when
// the consumer has a dead letter queue and dropped otherwise.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
    err := c.handle(ctx, d.Body)
    if err == nil {
        _ = d.Ack(false)
        return
    }
    requeue := !d.Redelivered && !errors.Is(err, ErrMalformed)
    logging.Warn().Err(err).
        Str("consumer", c.name).
        Bool("requeue", requeue).
        Bool("dead_lettered", !requeue && c.deadLetter != "").
        Msg("message handling failed")
    _ = d.Nack(false, requeue)
}

// PaymentConfirmer is the trusted confirm path of the coordinator.
type PaymentConfirmer interface {
    ConfirmPaid(ctx context.Context, bookingIDs []string) (*booking.ConfirmResult, error)
}

// PaymentHandler confirms the bookings named in a payment.completed
// message.  Bookings that are no longer held are skipped by the
// coordinator, so the message is acknowledged either way.
func PaymentHandler(confirmer PaymentConfirmer) Handler {
    return func(ctx context.Context, body []byte) error {
        var ev PaymentCompletedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            metrics.PaymentsConsumedTotal.WithLabelValues("nack").Inc()
            return fmt.Errorf("%w: %v", ErrMalformed, err)
        }
        if len(ev.BookingIDs) == 0 {
            metrics.PaymentsConsumedTotal.WithLabelValues("nack").Inc()
            return fmt.Errorf("%w: no booking ids", ErrMalformed)
        }
        res, err := confirmer.ConfirmPaid(ctx, ev.BookingIDs)
        if err != nil {
            metrics.PaymentsConsumedTotal.WithLabelValues("nack").Inc()
            return err
        }
        metrics.PaymentsConsumedTotal.WithLabelValues("ack").Inc()
        logging.Info().
            Str("payment_id", ev.PaymentID).
            Int("requested", len(ev.BookingIDs)).
            Int("confirmed", len(res.Confirmed)).
            Msg("payment applied")
        return nil
    }
}

// BookingLogHandler appends one line per booking.confirmed message to
// the file at path, creating its directory when needed.
func BookingLogHandler(path string) Handler {
    return func(_ context.Context, body []byte) error {
        var ev BookingConfirmedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("%w: %v", ErrMalformed, err)
        }
        if dir := filepath.Dir(path); dir != "" {
            if err := os.MkdirAll(dir, 0o755); err != nil {
                return fmt.Errorf("mkdir logs: %w", err)
            }
        }
        f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
        if err != nil {
            return fmt.Errorf("open log file: %w", err)
        }
        defer f.Close()

        if _, err := f.WriteString(formatBookingLine(ev)); err != nil {
            return fmt.Errorf("write log: %w", err)
        }
        return nil
    }
}

func formatBookingLine(ev BookingConfirmedEvent) string {
    return fmt.Sprintf("[%s] Booking confirmed | showtime_id=%s | user_id=%s | bookings=[%s] | seats=[%s]\n",
        ev.ConfirmedAt, ev.ShowtimeID, ev.UserID, strings.Join(ev.BookingIDs, ","), strings.Join(ev.SeatIDs, ","))
}
