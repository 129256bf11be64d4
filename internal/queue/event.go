// Package queue defines the domain events exchanged over RabbitMQ and the
// consumer that records them.
package queue

// QueueName is the durable queue every library event is routed to.
const QueueName = "library.events"

// Event types.
const (
	EventUserRegistered = "user.registered"
	EventItemSaved      = "library.item.saved"
	EventItemDeleted    = "library.item.deleted"
)

// LibraryEvent is published after a user registers or changes their library.
// It carries enough for downstream consumers to log, notify or feed analytics
// without querying the primary database.
type LibraryEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id,omitempty"`
	Email      string `json:"email"`
	ImdbID     string `json:"imdb_id,omitempty"`
	Title      string `json:"title,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
