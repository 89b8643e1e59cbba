package handler

import (
    "context"
    "net/http"
    "strings"

    "github.com/goccy/go-json"
    "github.com/labstack/echo/v4"
    "github.com/skip2/go-qrcode"

    "github.com/iliyamo/seatd/internal/middleware"
    "github.com/iliyamo/seatd/internal/model"
)

// TicketStore reads confirmed bookings as tickets.
type TicketStore interface {
    TicketsForUser(ctx context.Context, userID string) ([]model.Ticket, error)
    TicketsForShowtime(ctx context.Context, showtimeID string) ([]model.Ticket, error)
    GetTicket(ctx context.Context, bookingID string) (*model.Ticket, error)
}

// qrSize is the edge length of ticket QR images in pixels.
const qrSize = 256

// TicketHandler serves the caller's tickets.
type TicketHandler struct {
    Tickets TicketStore
}

// NewTicketHandler returns a TicketHandler.
func NewTicketHandler(tickets TicketStore) *TicketHandler {
    return &TicketHandler{Tickets: tickets}
}

// MyTickets handles GET /api/me/tickets.
func (h *TicketHandler) MyTickets(c echo.Context) error {
    tickets, err := h.Tickets.TicketsForUser(c.Request().Context(), middleware.UserID(c))
    if err != nil {
        return respondError(c, err)
    }
    if tickets == nil {
        tickets = []model.Ticket{}
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// QR handles GET /api/me/tickets/:id/qr and renders the ticket's scan
// payload as a PNG.  Tickets of other users are reported as missing.
func (h *TicketHandler) QR(c echo.Context) error {
    t, err := h.Tickets.GetTicket(c.Request().Context(), c.Param("id"))
    if err != nil {
        return respondError(c, err)
    }
    if t.UserID != middleware.UserID(c) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
    }
    png, err := TicketQR(t.BookingID)
    if err != nil {
        return respondError(c, err)
    }
    c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
    return c.Blob(http.StatusOK, "image/png", png)
}

// Lookup handles GET /api/me/bookings?ids=a,b.  The post-checkout page
// uses it to show which of the caller's bookings are now tickets; ids
// that are not the caller's confirmed bookings are left out, and none
// left is 404.
func (h *TicketHandler) Lookup(c echo.Context) error {
    ids := map[string]bool{}
    for _, id := range strings.Split(c.QueryParam("ids"), ",") {
        if id = strings.TrimSpace(id); id != "" {
            ids[id] = true
        }
    }
    if len(ids) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids required"})
    }

    mine, err := h.Tickets.TicketsForUser(c.Request().Context(), middleware.UserID(c))
    if err != nil {
        return respondError(c, err)
    }
    tickets := make([]model.Ticket, 0, len(ids))
    for _, t := range mine {
        if ids[t.BookingID] {
            tickets = append(tickets, t)
        }
    }
    if len(tickets) == 0 {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    }
    return c.JSON(http.StatusOK, echo.Map{"tickets": tickets})
}

// scanPayload is the JSON body an usher's scanner posts back to
// /api/admin/scan.
func scanPayload(bookingID string) ([]byte, error) {
    return json.Marshal(scanRequest{BookingID: bookingID})
}

// TicketQR renders scanPayload as a PNG QR code.
func TicketQR(bookingID string) ([]byte, error) {
    payload, err := scanPayload(bookingID)
    if err != nil {
        return nil, err
    }
    return qrcode.Encode(string(payload), qrcode.Medium, qrSize)
}
