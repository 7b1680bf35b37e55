package queue

import (
	"context"
)

// Publisher enqueues audit events for asynchronous persistence.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// AuditQueue is the full queue contract: the API only publishes, the
// worker also consumes.
type AuditQueue interface {
	Publisher

	// Consume delivers events asynchronously as they arrive. The caller
	// must Ack or Nack every delivery. prefetchCount bounds how many
	// unacknowledged deliveries one consumer holds. Both returned
	// channels close when the context is cancelled or the connection is
	// lost.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Delivery, <-chan error, error)

	// HealthCheck verifies the broker connection is usable.
	HealthCheck(ctx context.Context) error

	// Close releases the broker connection.
	Close() error
}
