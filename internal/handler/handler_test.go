package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seatd/internal/booking"
	"github.com/iliyamo/seatd/internal/booking/memstore"
	"github.com/iliyamo/seatd/internal/model"
	"github.com/iliyamo/seatd/internal/repository"
)

func TestRespondError(t *testing.T) {
	cases := map[string]struct {
		err  error
		code int
	}{
		"validation":         {fmt.Errorf("%w: seatIds required", booking.ErrValidation), http.StatusBadRequest},
		"not found":          {fmt.Errorf("%w: showtime x", booking.ErrNotFound), http.StatusNotFound},
		"repo movie missing": {repository.ErrMovieNotFound, http.StatusNotFound},
		"conflict":           {booking.ErrConflict, http.StatusConflict},
		"storage":            {errors.New("connection reset"), http.StatusInternalServerError},
	}
	e := echo.New()
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, respondError(c, tc.err))
			assert.Equal(t, tc.code, rec.Code)
		})
	}

	// storage details never reach the client
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, respondError(c, errors.New("dial tcp 10.0.0.3:3306")))
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestScanPayload(t *testing.T) {
	payload, err := scanPayload("3f1c2b9e-0000-4000-8000-000000000001")
	require.NoError(t, err)
	assert.JSONEq(t, `{"bookingId":"3f1c2b9e-0000-4000-8000-000000000001"}`, string(payload))
}

type stubTickets struct {
	byShowtime map[string][]model.Ticket
}

func (s stubTickets) TicketsForUser(context.Context, string) ([]model.Ticket, error) {
	return nil, nil
}

func (s stubTickets) TicketsForShowtime(_ context.Context, id string) ([]model.Ticket, error) {
	return s.byShowtime[id], nil
}

func (s stubTickets) GetTicket(context.Context, string) (*model.Ticket, error) {
	return nil, repository.ErrBookingNotFound
}

func TestAdminTicketsReadsStore(t *testing.T) {
	store := memstore.New()
	policy := booking.NewExpiryPolicy(5 * time.Minute)
	h := NewAdminHandler(
		booking.NewCoordinator(store, store, nil, policy, booking.RealClock{}),
		booking.NewProjector(store, store, store, policy, booking.RealClock{}),
		stubTickets{byShowtime: map[string][]model.Ticket{"s1": {{BookingID: "b1", ShowtimeID: "s1"}}}},
	)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("s1")
	require.NoError(t, h.Tickets(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Tickets []model.Ticket `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Tickets, 1)
	assert.Equal(t, "b1", out.Tickets[0].BookingID)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("s2")
	require.NoError(t, h.Tickets(c))
	assert.JSONEq(t, `{"tickets":[]}`, rec.Body.String())
}

func TestTicketQR(t *testing.T) {
	png, err := TicketQR("3f1c2b9e-0000-4000-8000-000000000001")
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestWSOriginCheck(t *testing.T) {
	h := NewWSHandler(nil, []string{"https://tickets.example"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	req.Header.Set("Origin", "https://tickets.example")
	assert.True(t, h.upgrader.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.upgrader.CheckOrigin(req))

	open := NewWSHandler(nil, nil)
	assert.True(t, open.upgrader.CheckOrigin(req))
}
