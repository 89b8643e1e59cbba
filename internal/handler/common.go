package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seatd/internal/booking"
    "github.com/iliyamo/seatd/internal/logging"
    "github.com/iliyamo/seatd/internal/repository"
)

// bookingIDsRequest is the body of confirm, cancel and payment confirm.
type bookingIDsRequest struct {
    BookingIDs []string `json:"bookingIds" validate:"required,min=1,dive,required"`
}

// bindAndValidate binds the JSON body into req and runs the registered
// validator.  Handlers answer any error with 400.
func bindAndValidate(c echo.Context, req interface{}) error {
    if err := c.Bind(req); err != nil {
        return errors.New("invalid request body")
    }
    if err := c.Validate(req); err != nil && !errors.Is(err, echo.ErrValidatorNotRegistered) {
        return err
    }
    return nil
}

func badRequest(c echo.Context, err error) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

// respondError maps coordinator and repository errors to HTTP statuses:
// validation 400, not found 404, conflict 409, anything else 500.
func respondError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, booking.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrNotFound),
        errors.Is(err, repository.ErrShowtimeNotFound),
        errors.Is(err, repository.ErrMovieNotFound),
        errors.Is(err, repository.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    }
    logging.Ctx(c.Request().Context()).Error().Err(err).
        Str("method", c.Request().Method).
        Str("path", c.Path()).
        Msg("request failed")
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
