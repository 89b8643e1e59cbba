package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/seatd/internal/model"
)

// HoldParams describes one all-or-nothing hold request.  AuditoriumID
// is the auditorium of the showtime; every seat must belong to it.
// Timestamps are UTC.
type HoldParams struct {
    ShowtimeID   string
    AuditoriumID string
    UserID       string
    SeatIDs      []string
    Now          time.Time
    ExpiresAt    time.Time
}

// BookingRepo provides data access to the bookings table.  The table
// carries a generated column active_slot that is 1 for HELD and
// CONFIRMED rows and NULL otherwise; a UNIQUE index on
// (showtime_id, seat_id, active_slot) makes the database refuse a second
// active booking for the same seat.  Every mutating method runs in its
// own transaction.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, showtime_id, seat_id, user_id, status, expires_at, scanned_at, created_at`

type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanBooking(rs rowScanner) (model.Booking, error) {
    var (
        b         model.Booking
        status    string
        expiresAt sql.NullTime
        scannedAt sql.NullTime
    )
    if err := rs.Scan(&b.ID, &b.ShowtimeID, &b.SeatID, &b.UserID, &status, &expiresAt, &scannedAt, &b.CreatedAt); err != nil {
        return model.Booking{}, err
    }
    b.Status = model.BookingStatus(status)
    if expiresAt.Valid {
        t := expiresAt.Time.UTC()
        b.ExpiresAt = &t
    }
    if scannedAt.Valid {
        t := scannedAt.Time.UTC()
        b.ScannedAt = &t
    }
    return b, nil
}

func collectBookings(rows *sql.Rows) ([]model.Booking, error) {
    defer rows.Close()
    var out []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    return out, rows.Err()
}

// inClause returns "?, ?, ?" for n placeholders.
func inClause(n int) string {
    if n <= 0 {
        return ""
    }
    return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []interface{} {
    args := make([]interface{}, 0, len(ids))
    for _, id := range ids {
        args = append(args, id)
    }
    return args
}

// SweepExpired cancels HELD bookings whose expires_at is before now and
// returns the distinct showtime ids affected.  An empty showtimeID
// sweeps all showtimes.
func (r *BookingRepo) SweepExpired(ctx context.Context, showtimeID string, now time.Time) ([]string, error) {
    where := `status = 'HELD' AND expires_at < ?`
    args := []interface{}{now.UTC()}
    if showtimeID != "" {
        where += ` AND showtime_id = ?`
        args = append(args, showtimeID)
    }

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    rows, err := tx.QueryContext(ctx, `SELECT DISTINCT showtime_id FROM bookings WHERE `+where+` FOR UPDATE`, args...)
    if err != nil {
        return nil, mapWriteErr(err)
    }
    var touched []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            rows.Close()
            return nil, err
        }
        touched = append(touched, id)
    }
    if err := rows.Err(); err != nil {
        rows.Close()
        return nil, mapWriteErr(err)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(touched) > 0 {
        if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = 'CANCELLED', expires_at = NULL WHERE `+where, args...); err != nil {
            return nil, mapWriteErr(err)
        }
    }
    if err := tx.Commit(); err != nil {
        return nil, mapWriteErr(err)
    }
    committed = true
    return touched, nil
}

// CreateHolds inserts one HELD booking per requested seat in a single
// transaction.  Stale holds on those seats are cancelled first, then
// the seats are locked and checked; if any is still taken the whole
// transaction is rolled back with ErrConflict.  A duplicate key from a
// concurrent insert maps to ErrConflict too.
func (r *BookingRepo) CreateHolds(ctx context.Context, p HoldParams) ([]model.Booking, error) {
    if len(p.SeatIDs) == 0 {
        return nil, nil
    }
    seatArgs := stringArgs(p.SeatIDs)
    in := inClause(len(p.SeatIDs))

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    // Every seat must exist in the showtime's auditorium.
    var known int
    q := `SELECT COUNT(*) FROM seats WHERE auditorium_id = ? AND id IN (` + in + `)`
    if err := tx.QueryRowContext(ctx, q, append([]interface{}{p.AuditoriumID}, seatArgs...)...).Scan(&known); err != nil {
        return nil, err
    }
    if known != len(p.SeatIDs) {
        return nil, ErrUnknownSeat
    }

    scoped := append([]interface{}{p.ShowtimeID}, seatArgs...)

    // Release expired holds on the requested seats so they do not block.
    q = `UPDATE bookings SET status = 'CANCELLED', expires_at = NULL
         WHERE showtime_id = ? AND seat_id IN (` + in + `) AND status = 'HELD' AND expires_at < ?`
    if _, err := tx.ExecContext(ctx, q, append(scoped, p.Now.UTC())...); err != nil {
        return nil, mapWriteErr(err)
    }

    q = `SELECT seat_id FROM bookings
         WHERE showtime_id = ? AND seat_id IN (` + in + `) AND status IN ('HELD', 'CONFIRMED')
         FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, scoped...)
    if err != nil {
        return nil, mapWriteErr(err)
    }
    taken := rows.Next()
    if err := rows.Err(); err != nil {
        rows.Close()
        return nil, mapWriteErr(err)
    }
    if err := rows.Close(); err != nil {
        return nil, mapWriteErr(err)
    }
    if taken {
        return nil, ErrConflict
    }

    now := p.Now.UTC()
    expiresAt := p.ExpiresAt.UTC()
    query := `INSERT INTO bookings (id, showtime_id, seat_id, user_id, status, expires_at, created_at) VALUES `
    args := make([]interface{}, 0, len(p.SeatIDs)*6)
    out := make([]model.Booking, 0, len(p.SeatIDs))
    for i, seatID := range p.SeatIDs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, 'HELD', ?, ?)"
        id := uuid.NewString()
        args = append(args, id, p.ShowtimeID, seatID, p.UserID, expiresAt, now)
        exp := expiresAt
        out = append(out, model.Booking{
            ID:         id,
            ShowtimeID: p.ShowtimeID,
            SeatID:     seatID,
            UserID:     p.UserID,
            Status:     model.BookingHeld,
            ExpiresAt:  &exp,
            CreatedAt:  now,
        })
    }
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        return nil, mapWriteErr(err)
    }
    if err := tx.Commit(); err != nil {
        return nil, mapWriteErr(err)
    }
    committed = true
    return out, nil
}

// ConfirmHeld moves the matching HELD bookings that have not expired at
// now to CONFIRMED and returns them.  An empty ownerID confirms
// regardless of owner.
func (r *BookingRepo) ConfirmHeld(ctx context.Context, ids []string, ownerID string, now time.Time) ([]model.Booking, error) {
    return r.transition(ctx, ids, ownerID, &now, model.BookingConfirmed)
}

// CancelHeld moves the owner's matching HELD bookings to CANCELLED and
// returns them.
func (r *BookingRepo) CancelHeld(ctx context.Context, ids []string, ownerID string) ([]model.Booking, error) {
    return r.transition(ctx, ids, ownerID, nil, model.BookingCancelled)
}

// transition locks the HELD rows selected by ids, owner and expiry, then
// moves them to the target status with one UPDATE guarded by
// status = 'HELD'.
func (r *BookingRepo) transition(ctx context.Context, ids []string, ownerID string, notExpiredAt *time.Time, to model.BookingStatus) ([]model.Booking, error) {
    if len(ids) == 0 {
        return nil, nil
    }
    q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id IN (` + inClause(len(ids)) + `) AND status = 'HELD'`
    args := stringArgs(ids)
    if ownerID != "" {
        q += ` AND user_id = ?`
        args = append(args, ownerID)
    }
    if notExpiredAt != nil {
        q += ` AND expires_at >= ?`
        args = append(args, notExpiredAt.UTC())
    }
    q += ` FOR UPDATE`

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    rows, err := tx.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, mapWriteErr(err)
    }
    matched, err := collectBookings(rows)
    if err != nil {
        return nil, mapWriteErr(err)
    }
    if len(matched) == 0 {
        if err := tx.Commit(); err != nil {
            return nil, err
        }
        committed = true
        return nil, nil
    }

    matchedIDs := make([]string, 0, len(matched))
    for _, b := range matched {
        matchedIDs = append(matchedIDs, b.ID)
    }
    upd := `UPDATE bookings SET status = ?, expires_at = NULL WHERE id IN (` + inClause(len(matchedIDs)) + `) AND status = 'HELD'`
    if _, err := tx.ExecContext(ctx, upd, append([]interface{}{string(to)}, stringArgs(matchedIDs)...)...); err != nil {
        return nil, mapWriteErr(err)
    }
    if err := tx.Commit(); err != nil {
        return nil, mapWriteErr(err)
    }
    committed = true

    for i := range matched {
        matched[i].Status = to
        matched[i].ExpiresAt = nil
    }
    return matched, nil
}

// ActiveByShowtime lists the HELD and CONFIRMED bookings of a showtime.
func (r *BookingRepo) ActiveByShowtime(ctx context.Context, showtimeID string) ([]model.Booking, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings
         WHERE showtime_id = ? AND status IN ('HELD', 'CONFIRMED')
         ORDER BY created_at`,
        showtimeID,
    )
    if err != nil {
        return nil, err
    }
    return collectBookings(rows)
}

// FindBookings returns the bookings whose id is in ids.  Unknown ids are
// skipped.
func (r *BookingRepo) FindBookings(ctx context.Context, ids []string) ([]model.Booking, error) {
    if len(ids) == 0 {
        return nil, nil
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id IN (`+inClause(len(ids))+`)`,
        stringArgs(ids)...,
    )
    if err != nil {
        return nil, err
    }
    return collectBookings(rows)
}

// MarkScanned sets scanned_at on a CONFIRMED booking that has not been
// scanned yet.  It reports whether the row was updated and returns
// ErrBookingNotFound when the id does not exist.
func (r *BookingRepo) MarkScanned(ctx context.Context, id string, at time.Time) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE bookings SET scanned_at = ? WHERE id = ? AND status = 'CONFIRMED' AND scanned_at IS NULL`,
        at.UTC(), id,
    )
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    if n == 1 {
        return true, nil
    }
    var exists int
    err = r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&exists)
    if err == sql.ErrNoRows {
        return false, ErrBookingNotFound
    }
    return false, err
}
