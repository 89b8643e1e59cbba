// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking coordinator and the handlers to distinguish between different
// failure scenarios without inspecting driver errors. For example,
// ErrConflict signals that a seat already carries an active booking,
// while ErrUnknownSeat means a requested seat is not part of the
// showtime's auditorium.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when a hold cannot be placed because one of
// the requested seats already has a HELD or CONFIRMED booking, or when
// the database aborted the transaction because of a competing writer.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrShowtimeNotFound is returned when a showtime id does not exist.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrMovieNotFound is returned when a movie id does not exist.
var ErrMovieNotFound = errors.New("movie not found")

// ErrBookingNotFound is returned when a booking id does not exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrUnknownSeat is returned when a seat id does not belong to the
// auditorium of the showtime being booked.
var ErrUnknownSeat = errors.New("unknown seat")

// MySQL server error numbers the repositories translate.
const (
    mysqlErrDupEntry      = 1062
    mysqlErrLockDeadlock  = 1213
    mysqlErrLockWaitLimit = 1205
)

// mapWriteErr converts driver errors caused by concurrent writers into
// ErrConflict.  A duplicate key on the active-seat index means another
// transaction won the seat; deadlocks and lock wait timeouts abort our
// transaction for the same reason.  Other errors are returned untouched.
func mapWriteErr(err error) error {
    if err == nil {
        return nil
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        switch me.Number {
        case mysqlErrDupEntry, mysqlErrLockDeadlock, mysqlErrLockWaitLimit:
            return ErrConflict
        }
    }
    return err
}
