// Package workers holds the background jobs run by the worker binary:
// draining the audit queue into Postgres and expiring idle sessions.
package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/models"
	"github.com/stridefit/coach-api/internal/queue"
)

// AuditStore persists audit records delivered through the queue.
type AuditStore interface {
	InsertToolCall(ctx context.Context, log *models.ToolCallLog) error
	InsertPolicyViolation(ctx context.Context, log *models.PolicyViolationLog) error
}

// Ackable is the acknowledgement surface of a queue delivery.
type Ackable interface {
	Ack() error
	Nack(requeue bool) error
}

// AuditWriter drains audit events from the queue into the database.
// Failed writes are republished with a decremented retry budget;
// exhausted events go to the dead-letter queue.
type AuditWriter struct {
	store  AuditStore
	pub    queue.Publisher
	logger *zap.Logger
}

// NewAuditWriter creates an audit writer.
func NewAuditWriter(store AuditStore, pub queue.Publisher, logger *zap.Logger) *AuditWriter {
	return &AuditWriter{store: store, pub: pub, logger: logger}
}

// Handle persists one event and settles its delivery.
func (w *AuditWriter) Handle(ctx context.Context, event *queue.Event, delivery Ackable) error {
	if err := w.persist(ctx, event); err != nil {
		w.logger.Warn("audit_write_failed",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", string(event.Type)),
			zap.Int("retry_count", event.RetryCount),
			zap.Error(err),
		)
		return w.retry(ctx, event, delivery, err)
	}

	if err := delivery.Ack(); err != nil {
		return fmt.Errorf("failed to ack event %s: %w", event.ID, err)
	}
	return nil
}

func (w *AuditWriter) persist(ctx context.Context, event *queue.Event) error {
	switch event.Type {
	case queue.EventToolCall:
		return w.store.InsertToolCall(ctx, event.ToolCall)
	case queue.EventPolicyViolation:
		return w.store.InsertPolicyViolation(ctx, event.Violation)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

// retry republishes the event with an incremented retry count so the
// budget survives redelivery. Events out of budget, and events that
// cannot be republished, are dead-lettered.
func (w *AuditWriter) retry(ctx context.Context, event *queue.Event, delivery Ackable, cause error) error {
	if event.CanRetry() {
		event.IncrementRetry()
		if err := w.pub.Publish(ctx, event); err == nil {
			if ackErr := delivery.Ack(); ackErr != nil {
				return fmt.Errorf("failed to ack republished event %s: %w", event.ID, ackErr)
			}
			return nil
		}
	}

	w.logger.Error("audit_event_dead_lettered",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.Error(cause),
	)
	if nackErr := delivery.Nack(false); nackErr != nil {
		return fmt.Errorf("failed to dead-letter event %s: %w", event.ID, nackErr)
	}
	return cause
}
