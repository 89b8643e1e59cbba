package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatd/internal/booking"
)

// PaymentConfirmer is the trusted confirm path used once a payment has
// been captured.
type PaymentConfirmer interface {
    ConfirmPaid(ctx context.Context, bookingIDs []string) (*booking.ConfirmResult, error)
}

// PaymentHandler receives payment results from the payment service.
// Its routes sit behind RequireInternalToken.
type PaymentHandler struct {
    Confirmer PaymentConfirmer
}

// NewPaymentHandler returns a PaymentHandler.
func NewPaymentHandler(confirmer PaymentConfirmer) *PaymentHandler {
    return &PaymentHandler{Confirmer: confirmer}
}

// Confirm handles POST /internal/payments/confirm.  Bookings that are no
// longer held are skipped and the call still succeeds, so the payment
// service does not retry; confirmed reports how many actually moved.
func (h *PaymentHandler) Confirm(c echo.Context) error {
    var req bookingIDsRequest
    if err := bindAndValidate(c, &req); err != nil {
        return badRequest(c, err)
    }
    res, err := h.Confirmer.ConfirmPaid(c.Request().Context(), req.BookingIDs)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true, "confirmed": len(res.Confirmed)})
}
