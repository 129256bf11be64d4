// Package service holds infrastructure services used by the handlers.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/movie-library-api/internal/queue"
)

// ErrBacklogFull is returned when events are produced faster than the broker
// accepts them.  The event is dropped.
var ErrBacklogFull = errors.New("event backlog full")

// Publisher sends library events to RabbitMQ from a background loop, so a
// slow or absent broker never holds up a request (or its DB connection).
// A Publisher with an empty URL discards everything.
type Publisher struct {
	url    string
	logger *slog.Logger
	events chan q.LibraryEvent
}

func NewPublisher(url string, logger *slog.Logger) *Publisher {
	return &Publisher{url: url, logger: logger, events: make(chan q.LibraryEvent, 256)}
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// Publish queues ev for delivery.  It never blocks.
func (p *Publisher) Publish(_ context.Context, ev q.LibraryEvent) error {
	if !p.Enabled() {
		return nil
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Run delivers queued events until ctx is cancelled, reconnecting with
// backoff when the broker goes away.  Messages are marked persistent.
func (p *Publisher) Run(ctx context.Context) error {
	if !p.Enabled() {
		<-ctx.Done()
		return nil
	}
	var pending *q.LibraryEvent
	backoff := time.Second
	for {
		conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
		if err != nil {
			p.logger.Warn("rabbitmq: dial failed", "err", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		pending, err = p.publishLoop(ctx, conn, pending)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Warn("rabbitmq: publish loop ended; reconnecting", "err", err)
	}
}

// publishLoop returns the event that was in flight when the connection
// failed so it is retried after reconnecting.
func (p *Publisher) publishLoop(ctx context.Context, conn *amqp.Connection, pending *q.LibraryEvent) (*q.LibraryEvent, error) {
	ch, err := conn.Channel()
	if err != nil {
		return pending, fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
		return pending, fmt.Errorf("queue declare: %w", err)
	}

	for {
		if pending == nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case ev := <-p.events:
				pending = &ev
			}
		}
		body, err := json.Marshal(pending)
		if err != nil {
			p.logger.Error("rabbitmq: marshal event failed", "err", err)
			pending = nil
			continue
		}
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = ch.PublishWithContext(pctx, "", q.QueueName, false, false, pub)
		cancel()
		if err != nil {
			return pending, fmt.Errorf("publish: %w", err)
		}
		pending = nil
	}
}
