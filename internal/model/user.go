package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Authentication is handled elsewhere; the booking
// engine only needs the identity and the role.
//
// Fields:
//  ID           – primary key identifier (uuid).
//  Name         – display name.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – USER or ADMIN.
//  CreatedAt    – timestamp of creation.
type User struct {
    ID           string    // users.id
    Name         string    // users.name
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    CreatedAt    time.Time // users.created_at
}

const (
    RoleUser  = "USER"
    RoleAdmin = "ADMIN"
)
