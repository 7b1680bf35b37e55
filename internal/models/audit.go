package models

import (
	"time"

	"github.com/google/uuid"
)

// ToolCallStatus is the recorded outcome of a tool execution
type ToolCallStatus string

const (
	ToolCallSuccess ToolCallStatus = "success"
	ToolCallFailed  ToolCallStatus = "failed"
	ToolCallBlocked ToolCallStatus = "blocked"
)

// ViolationType classifies safety policy violations for monitoring
type ViolationType string

const (
	ViolationCalorieMinimum  ViolationType = "calorie_minimum"
	ViolationCalorieMaximum  ViolationType = "calorie_maximum"
	ViolationWeightLossRate  ViolationType = "weight_loss_rate"
	ViolationEatingDisorder  ViolationType = "eating_disorder_signal"
	ViolationMedicalClaim    ViolationType = "medical_claim"
	ViolationUnsafeContent   ViolationType = "unsafe_content"
)

// ToolCallLog is one append-only audit record of a tool execution.
// Input and output are stored as truncated summaries plus an input hash,
// never as raw payloads.
type ToolCallLog struct {
	ID            uuid.UUID      `json:"id"`
	SessionID     uuid.UUID      `json:"session_id"`
	UserID        uuid.UUID      `json:"user_id"`
	ToolName      string         `json:"tool_name"`
	ToolCategory  string         `json:"tool_category"`
	InputHash     string         `json:"input_hash"`
	InputSummary  string         `json:"input_summary"`
	OutputSummary string         `json:"output_summary"`
	Status        ToolCallStatus `json:"status"`
	ErrorMessage  *string        `json:"error_message,omitempty"`
	LatencyMs     int64          `json:"latency_ms"`
	Cached        bool           `json:"cached"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PolicyViolationLog is one append-only record of a safety policy firing.
type PolicyViolationLog struct {
	ID             uuid.UUID      `json:"id"`
	SessionID      *uuid.UUID     `json:"session_id,omitempty"`
	UserID         uuid.UUID      `json:"user_id"`
	ViolationType  ViolationType  `json:"violation_type"`
	Severity       string         `json:"severity"`
	TriggerContent string         `json:"trigger_content"`
	ActionTaken    string         `json:"action_taken"`
	Details        map[string]any `json:"details,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
