package queue

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatd/internal/booking"
	"github.com/iliyamo/seatd/internal/model"
)

type fakeChannel struct {
	declared  []string
	args      map[string]amqp.Table
	published []amqp.Publishing
	keys      []string
	failNext  bool
	closed    bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, errors.New("queues must be durable")
	}
	if f.args == nil {
		f.args = map[string]amqp.Table{}
	}
	f.args[name] = args
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.failNext {
		f.failNext = false
		return errors.New("channel closed")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

type fakeAck struct {
	acked    int
	nacked   int
	requeued bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked++; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeued = requeue
	return nil
}
func (a *fakeAck) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

type mockConfirmer struct{ mock.Mock }

func (m *mockConfirmer) ConfirmPaid(ctx context.Context, ids []string) (*booking.ConfirmResult, error) {
	args := m.Called(ctx, ids)
	res, _ := args.Get(0).(*booking.ConfirmResult)
	return res, args.Error(1)
}

func TestEventsFromBookings(t *testing.T) {
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	events := EventsFromBookings([]model.Booking{
		{ID: "b1", ShowtimeID: "s2", SeatID: "x1", UserID: "u1"},
		{ID: "b2", ShowtimeID: "s1", SeatID: "x2", UserID: "u1"},
		{ID: "b3", ShowtimeID: "s2", SeatID: "x3", UserID: "u1"},
	}, at)

	require.Len(t, events, 2)
	assert.Equal(t, "s1", events[0].ShowtimeID)
	assert.Equal(t, []string{"b2"}, events[0].BookingIDs)
	assert.Equal(t, "s2", events[1].ShowtimeID)
	assert.Equal(t, []string{"b1", "b3"}, events[1].BookingIDs)
	assert.Equal(t, []string{"x1", "x3"}, events[1].SeatIDs)
	assert.Equal(t, "2026-03-01T18:00:00Z", events[1].ConfirmedAt)
}

func TestPublisher_BookingsConfirmed(t *testing.T) {
	fc := &fakeChannel{}
	opens := 0
	p := &Publisher{open: func() (channel, error) { opens++; return fc, nil }}

	err := p.BookingsConfirmed(context.Background(), []model.Booking{
		{ID: "b1", ShowtimeID: "s1", SeatID: "x1", UserID: "u1"},
		{ID: "b2", ShowtimeID: "s2", SeatID: "x2", UserID: "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, opens)
	assert.Equal(t, []string{BookingConfirmedQueue}, fc.declared)
	assert.Equal(t, []string{BookingConfirmedQueue, BookingConfirmedQueue}, fc.keys)
	require.Len(t, fc.published, 2)
	assert.Equal(t, amqp.Persistent, fc.published[0].DeliveryMode)

	var ev BookingConfirmedEvent
	require.NoError(t, json.Unmarshal(fc.published[0].Body, &ev))
	assert.Equal(t, []string{"b1"}, ev.BookingIDs)
}

func TestPublisher_ReopensAfterFailure(t *testing.T) {
	first := &fakeChannel{failNext: true}
	second := &fakeChannel{}
	channels := []*fakeChannel{first, second}
	p := &Publisher{open: func() (channel, error) {
		ch := channels[0]
		channels = channels[1:]
		return ch, nil
	}}

	err := p.Publish(context.Background(), BookingConfirmedQueue, map[string]string{"a": "b"})
	require.Error(t, err)
	assert.True(t, first.closed)

	require.NoError(t, p.Publish(context.Background(), BookingConfirmedQueue, map[string]string{"a": "b"}))
	assert.Len(t, second.published, 1)
	assert.Equal(t, []string{BookingConfirmedQueue}, second.declared)
}

func TestPublisher_DialError(t *testing.T) {
	p := &Publisher{open: func() (channel, error) { return nil, errors.New("connection refused") }}
	assert.Error(t, p.Publish(context.Background(), BookingConfirmedQueue, 1))
}

func TestPublisher_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	dials := 0
	p := &Publisher{
		open:    func() (channel, error) { dials++; return nil, errors.New("connection refused") },
		breaker: newBreaker(),
	}
	for i := 0; i < breakerFailures; i++ {
		require.Error(t, p.Publish(context.Background(), BookingConfirmedQueue, 1))
	}
	err := p.Publish(context.Background(), BookingConfirmedQueue, 1)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, breakerFailures, dials, "open breaker must not dial")
}

func TestPublisher_DialGivesUpOnSilentBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		// accept and never answer the AMQP handshake
		var held []net.Conn
		defer func() {
			for _, c := range held {
				_ = c.Close()
			}
		}()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, c)
		}
	}()

	p := NewPublisher("amqp://guest:guest@" + ln.Addr().String() + "/")
	p.dialTimeout = 200 * time.Millisecond

	start := time.Now()
	err = p.Publish(context.Background(), BookingConfirmedQueue, map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConsumer_DeclaresDeadLetterQueue(t *testing.T) {
	ch := &fakeChannel{}
	c := NewConsumer("payment-consumer", "", PaymentCompletedQueue, nil).WithDeadLetter(PaymentDeadLetterQueue)
	require.NoError(t, c.declare(ch))

	assert.Equal(t, []string{PaymentDeadLetterQueue, PaymentCompletedQueue}, ch.declared)
	assert.Equal(t, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": PaymentDeadLetterQueue,
	}, ch.args[PaymentCompletedQueue])

	plain := &fakeChannel{}
	require.NoError(t, NewConsumer("booking-log-consumer", "", BookingConfirmedQueue, nil).declare(plain))
	assert.Equal(t, []string{BookingConfirmedQueue}, plain.declared)
	assert.Nil(t, plain.args[BookingConfirmedQueue])
}

func TestConsumer_Dispatch(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		redelivered bool
		acked       int
		requeued    bool
	}{
		{name: "ok", acked: 1},
		{name: "transient first time", err: errors.New("db down"), requeued: true},
		{name: "transient redelivered", err: errors.New("db down"), redelivered: true},
		{name: "malformed", err: ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ack := &fakeAck{}
			c := NewConsumer("test", "", "q", func(context.Context, []byte) error { return tc.err })
			c.dispatch(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Redelivered: tc.redelivered})
			assert.Equal(t, tc.acked, ack.acked)
			assert.Equal(t, 1-tc.acked, ack.nacked)
			assert.Equal(t, tc.requeued, ack.requeued)
		})
	}
}

func TestPaymentHandler(t *testing.T) {
	m := &mockConfirmer{}
	m.On("ConfirmPaid", mock.Anything, []string{"b1", "b2"}).
		Return(&booking.ConfirmResult{Confirmed: []model.Booking{{ID: "b1"}}}, nil).Once()
	h := PaymentHandler(m)

	require.NoError(t, h(context.Background(), []byte(`{"bookingIds":["b1","b2"],"paymentId":"pay_1"}`)))
	m.AssertExpectations(t)

	assert.ErrorIs(t, h(context.Background(), []byte(`not json`)), ErrMalformed)
	assert.ErrorIs(t, h(context.Background(), []byte(`{"bookingIds":[]}`)), ErrMalformed)

	m.On("ConfirmPaid", mock.Anything, []string{"b3"}).Return(nil, errors.New("db down")).Once()
	err := h(context.Background(), []byte(`{"bookingIds":["b3"]}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
}

func TestBookingLogHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "booking.log")
	h := BookingLogHandler(path)

	body, err := json.Marshal(BookingConfirmedEvent{
		ShowtimeID:  "s1",
		UserID:      "u1",
		BookingIDs:  []string{"b1", "b2"},
		SeatIDs:     []string{"x1", "x2"},
		ConfirmedAt: "2026-03-01T18:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), body))
	require.NoError(t, h(context.Background(), body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := "[2026-03-01T18:00:00Z] Booking confirmed | showtime_id=s1 | user_id=u1 | bookings=[b1,b2] | seats=[x1,x2]\n"
	assert.Equal(t, line+line, string(data))

	assert.ErrorIs(t, h(context.Background(), []byte("{")), ErrMalformed)
}
