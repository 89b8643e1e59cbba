package model

// Auditorium is a screening room with a fixed rectangular seat grid.
// The grid never changes once seats have been generated for it.
//
// Fields:
//  ID   – primary key identifier (uuid).
//  Name – unique display name, e.g. "Hall 1".
//  Rows – number of seat rows.
//  Cols – number of seats per row.
type Auditorium struct {
    ID   string // auditoriums.id
    Name string // auditoriums.name
    Rows int    // auditoriums.seat_rows
    Cols int    // auditoriums.seat_cols
}

// SeatCount returns the number of seats the grid holds.
func (a Auditorium) SeatCount() int {
    if a.Rows <= 0 || a.Cols <= 0 {
        return 0
    }
    return a.Rows * a.Cols
}
