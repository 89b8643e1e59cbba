package queue

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/goccy/go-json"
    amqp "github.com/rabbitmq/amqp091-go"
    gobreaker "github.com/sony/gobreaker/v2"

    "github.com/iliyamo/seatd/internal/logging"
    "github.com/iliyamo/seatd/internal/metrics"
    "github.com/iliyamo/seatd/internal/model"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// Publisher publishes domain events to RabbitMQ over one lazily opened
// connection.  A failed publish drops the connection; the next publish
// dials again.  After repeated failures a circuit breaker rejects
// publishes outright for a while so a dead broker does not slow down
// confirms.  It implements booking.EventPublisher.
type Publisher struct {
    url         string
    dialTimeout time.Duration
    open        func() (channel, error)
    breaker     *gobreaker.CircuitBreaker[struct{}]

    mu       sync.Mutex
    conn     *amqp.Connection
    ch       channel
    declared map[string]bool
}

// NewPublisher returns a publisher for the broker at url.  No connection
// is made until the first publish.
func NewPublisher(url string) *Publisher {
    p := &Publisher{url: url, breaker: newBreaker()}
    p.open = p.dial
    return p
}

// breakerFailures is the number of consecutive failed publishes that
// opens the breaker.
const breakerFailures = 3

func newBreaker() *gobreaker.CircuitBreaker[struct{}] {
    return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
        Name:        "amqp-publisher",
        MaxRequests: 1,
        Timeout:     30 * time.Second,
        ReadyToTrip: func(counts gobreaker.Counts) bool {
            return counts.ConsecutiveFailures >= breakerFailures
        },
        OnStateChange: func(name string, from, to gobreaker.State) {
            logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
        },
    })
}

// dialTimeout bounds the TCP connect and the AMQP handshake.  Publishes
// run inside confirm requests, so a dead broker must fail fast.
const dialTimeout = 2 * time.Second

func dialConfig(timeout time.Duration) amqp.Config {
    return amqp.Config{
        Dial:      amqp.DefaultDial(timeout),
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
    }
}

func (p *Publisher) dial() (channel, error) {
    timeout := p.dialTimeout
    if timeout <= 0 {
        timeout = dialTimeout
    }
    conn, err := amqp.DialConfig(p.url, dialConfig(timeout))
    if err != nil {
        return nil, fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, fmt.Errorf("channel open: %w", err)
    }
    p.conn = conn
    return ch, nil
}

// BookingsConfirmed publishes one BookingConfirmedEvent per showtime and
// owner.  All events are attempted; the first error is returned.
func (p *Publisher) BookingsConfirmed(ctx context.Context, bookings []model.Booking) error {
    var first error
    for _, ev := range EventsFromBookings(bookings, time.Now()) {
        if err := p.Publish(ctx, BookingConfirmedQueue, ev); err != nil && first == nil {
            first = err
        }
    }
    return first
}

// Publish marshals v and sends it as a persistent message to the named
// queue through the default exchange.
func (p *Publisher) Publish(ctx context.Context, queue string, v interface{}) error {
    body, err := json.Marshal(v)
    if err != nil {
        metrics.EventsPublishedTotal.WithLabelValues(queue, "error").Inc()
        return fmt.Errorf("marshal event: %w", err)
    }

    send := func() (struct{}, error) {
        p.mu.Lock()
        defer p.mu.Unlock()
        if err := p.publishLocked(ctx, queue, body); err != nil {
            p.resetLocked()
            return struct{}{}, err
        }
        return struct{}{}, nil
    }
    if p.breaker != nil {
        _, err = p.breaker.Execute(send)
    } else {
        _, err = send()
    }

    switch {
    case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
        metrics.EventsPublishedTotal.WithLabelValues(queue, "rejected").Inc()
        return err
    case err != nil:
        metrics.EventsPublishedTotal.WithLabelValues(queue, "error").Inc()
        logging.Warn().Err(err).Str("queue", queue).Msg("rabbitmq publish failed")
        return err
    }
    metrics.EventsPublishedTotal.WithLabelValues(queue, "ok").Inc()
    return nil
}

func (p *Publisher) publishLocked(ctx context.Context, queue string, body []byte) error {
    if p.ch == nil {
        ch, err := p.open()
        if err != nil {
            return err
        }
        p.ch = ch
        p.declared = map[string]bool{}
    }
    if !p.declared[queue] {
        if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare: %w", err)
        }
        p.declared[queue] = true
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := p.ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

func (p *Publisher) resetLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
        p.ch = nil
    }
    if p.conn != nil {
        _ = p.conn.Close()
        p.conn = nil
    }
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.resetLocked()
    return nil
}
