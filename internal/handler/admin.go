package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatd/internal/booking"
    "github.com/iliyamo/seatd/internal/logging"
    "github.com/iliyamo/seatd/internal/model"
)

// AdminHandler serves operator views of a showtime and the door scan.
// Routes require the ADMIN role.
type AdminHandler struct {
    Coordinator *booking.Coordinator
    Projector   *booking.Projector
    Store       TicketStore
}

// NewAdminHandler panics when a dependency is missing.
func NewAdminHandler(coord *booking.Coordinator, proj *booking.Projector, tickets TicketStore) *AdminHandler {
    if coord == nil || proj == nil || tickets == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    return &AdminHandler{Coordinator: coord, Projector: proj, Store: tickets}
}

type scanRequest struct {
    BookingID string `json:"bookingId" validate:"required"`
}

// Summary handles GET /api/admin/showtimes/:id/summary.
func (h *AdminHandler) Summary(c echo.Context) error {
    s, err := h.Projector.Summary(c.Request().Context(), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, s)
}

// Tickets handles GET /api/admin/showtimes/:id/tickets.
func (h *AdminHandler) Tickets(c echo.Context) error {
    tickets, err := h.Store.TicketsForShowtime(c.Request().Context(), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    if tickets == nil {
        tickets = []model.Ticket{}
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// Scan handles POST /api/admin/scan.  Unknown bookings are 404
// NOT_FOUND, bookings that are not confirmed are 400 NOT_CONFIRMED.  A
// repeated scan is still 200 with alreadyCheckedIn set.
func (h *AdminHandler) Scan(c echo.Context) error {
    var req scanRequest
    if err := bindAndValidate(c, &req); err != nil {
        return badRequest(c, err)
    }
    ctx := c.Request().Context()
    res, err := h.Coordinator.CheckIn(ctx, req.BookingID)
    switch {
    case errors.Is(err, booking.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "error": "NOT_FOUND"})
    case errors.Is(err, booking.ErrNotConfirmed):
        return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "NOT_CONFIRMED"})
    case err != nil:
        return respondError(c, err)
    }

    out := echo.Map{
        "ok":               true,
        "alreadyCheckedIn": res.AlreadyCheckedIn,
        "bookingId":        res.Booking.ID,
        "scannedAt":        res.Booking.ScannedAt,
    }
    if t, err := h.Store.GetTicket(ctx, res.Booking.ID); err == nil {
        out["ticket"] = t
    } else {
        logging.Ctx(ctx).Warn().Err(err).Str("booking_id", res.Booking.ID).Msg("ticket lookup after scan failed")
    }
    return c.JSON(http.StatusOK, out)
}
