// Package queue moves audit records off the request path. The API
// publishes tool-call and policy-violation events to RabbitMQ and the
// worker persists them, so a slow audit write never delays a coaching
// turn.
package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// EventType identifies the audit payload carried by an Event.
type EventType string

const (
	// EventToolCall carries one tool invocation audit record
	EventToolCall EventType = "tool_call"
	// EventPolicyViolation carries one safety policy firing
	EventPolicyViolation EventType = "policy_violation"
)

// Event is the envelope published to the audit queue. Exactly one of
// ToolCall or Violation is set, matching Type.
type Event struct {
	ID         uuid.UUID                  `json:"id"`
	Type       EventType                  `json:"type"`
	ToolCall   *models.ToolCallLog        `json:"tool_call,omitempty"`
	Violation  *models.PolicyViolationLog `json:"violation,omitempty"`
	EnqueuedAt time.Time                  `json:"enqueued_at"`
	RetryCount int                        `json:"retry_count"`
	MaxRetries int                        `json:"max_retries"`
}

// NewToolCallEvent wraps a tool-call audit record for publication.
func NewToolCallEvent(log *models.ToolCallLog) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       EventToolCall,
		ToolCall:   log,
		EnqueuedAt: time.Now().UTC(),
		MaxRetries: 3,
	}
}

// NewViolationEvent wraps a policy-violation record for publication.
func NewViolationEvent(violation *models.PolicyViolationLog) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       EventPolicyViolation,
		Violation:  violation,
		EnqueuedAt: time.Now().UTC(),
		MaxRetries: 3,
	}
}

// Validate checks that the envelope carries the payload its Type
// promises.
func (e *Event) Validate() error {
	switch e.Type {
	case EventToolCall:
		if e.ToolCall == nil {
			return fmt.Errorf("tool_call event %s has no payload", e.ID)
		}
	case EventPolicyViolation:
		if e.Violation == nil {
			return fmt.Errorf("policy_violation event %s has no payload", e.ID)
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// CanRetry reports whether the event has redelivery budget left.
func (e *Event) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// IncrementRetry consumes one unit of redelivery budget.
func (e *Event) IncrementRetry() {
	e.RetryCount++
}
