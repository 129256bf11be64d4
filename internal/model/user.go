package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Password holds the bcrypt digest; the plaintext never reaches this
// struct.
type User struct {
	ID        uint64    // users.id
	Email     string    // users.email (unique)
	FirstName string    // users.fname
	LastName  string    // users.lname
	Password  string    // users.password (bcrypt digest)
	CreatedAt time.Time // users.created_at
}
