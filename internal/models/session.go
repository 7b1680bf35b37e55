package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a coach conversation session
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// ModelTier selects model settings by subscription level
type ModelTier string

const (
	TierFree     ModelTier = "free"
	TierStandard ModelTier = "standard"
	TierPremium  ModelTier = "premium"
)

// HistoryEntry is one prior turn kept on a session
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session tracks one coach conversation. The conversation history is a
// capped rolling window; trimming is the owning service's job, not the
// orchestrator's.
type Session struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	Status         SessionStatus  `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	LastMessageAt  time.Time      `json:"last_message_at"`
	MessageCount   int            `json:"message_count"`
	TokensUsed     int            `json:"tokens_used"`
	ModelTier      ModelTier      `json:"model_tier"`
	ContextSummary *string        `json:"context_summary,omitempty"`
	History        []HistoryEntry `json:"conversation_history,omitempty"`
}
