package model

import "time"

// LibraryItem is a movie saved to a user's library (`user_library` table).
// Rows are owned by email, mirroring how the library has always been keyed.
type LibraryItem struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	ImdbID    string    `json:"imdbID"`
	Title     string    `json:"title"`
	Poster    string    `json:"poster"`
	CreatedAt time.Time `json:"createdAt"`
}
