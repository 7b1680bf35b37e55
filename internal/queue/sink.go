package queue

import (
	"context"

	"github.com/stridefit/coach-api/internal/models"
)

// Sink adapts a Publisher to the audit interfaces the coach service
// and policy engine consume, so audit writes become queue publishes.
type Sink struct {
	pub Publisher
}

// NewSink wraps a publisher as an audit sink.
func NewSink(pub Publisher) *Sink {
	return &Sink{pub: pub}
}

// InsertToolCall publishes one tool-call audit record.
func (s *Sink) InsertToolCall(ctx context.Context, log *models.ToolCallLog) error {
	return s.pub.Publish(ctx, NewToolCallEvent(log))
}

// RecordViolation publishes one policy-violation record.
func (s *Sink) RecordViolation(ctx context.Context, violation *models.PolicyViolationLog) error {
	return s.pub.Publish(ctx, NewViolationEvent(violation))
}
