package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatd/internal/booking"
    "github.com/iliyamo/seatd/internal/middleware"
)

// ShowtimeHandler serves the seat map and the hold, confirm and cancel
// operations of the customer API.  Routes other than the seat map run
// behind JWTAuth.
type ShowtimeHandler struct {
    Coordinator *booking.Coordinator
    Projector   *booking.Projector
}

// NewShowtimeHandler panics when a dependency is missing.
func NewShowtimeHandler(coord *booking.Coordinator, proj *booking.Projector) *ShowtimeHandler {
    if coord == nil || proj == nil {
        panic("nil dependency passed to NewShowtimeHandler")
    }
    return &ShowtimeHandler{Coordinator: coord, Projector: proj}
}

type holdRequest struct {
    SeatIDs []string `json:"seatIds" validate:"required,min=1,dive,required"`
}

// SeatMap handles GET /api/showtimes/:id/seats.
func (h *ShowtimeHandler) SeatMap(c echo.Context) error {
    m, err := h.Projector.SeatMap(c.Request().Context(), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, m)
}

// Hold handles POST /api/showtimes/:id/hold.  The body is
// {"seatIds": [...]}; success is 201 with the booking ids and the shared
// expiry.  A seat taken by someone else fails the whole request with 409.
func (h *ShowtimeHandler) Hold(c echo.Context) error {
    var req holdRequest
    if err := bindAndValidate(c, &req); err != nil {
        return badRequest(c, err)
    }
    res, err := h.Coordinator.Hold(c.Request().Context(), c.Param("id"), req.SeatIDs, middleware.UserID(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, res)
}

// Confirm handles POST /api/showtimes/bookings/confirm for the caller's
// own holds.  Confirming an already confirmed booking succeeds.
func (h *ShowtimeHandler) Confirm(c echo.Context) error {
    var req bookingIDsRequest
    if err := bindAndValidate(c, &req); err != nil {
        return badRequest(c, err)
    }
    if _, err := h.Coordinator.Confirm(c.Request().Context(), req.BookingIDs, middleware.UserID(c)); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Cancel handles DELETE /api/showtimes/bookings/cancel.  Ids that are
// not the caller's live holds are ignored, so the call always succeeds
// for well-formed input.
func (h *ShowtimeHandler) Cancel(c echo.Context) error {
    var req bookingIDsRequest
    if err := bindAndValidate(c, &req); err != nil {
        return badRequest(c, err)
    }
    if _, err := h.Coordinator.Cancel(c.Request().Context(), req.BookingIDs, middleware.UserID(c)); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
