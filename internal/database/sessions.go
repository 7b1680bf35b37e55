package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// SessionRepository handles coach conversation session persistence
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO coach_sessions (id, user_id, status, started_at, last_message_at, message_count, tokens_used, model_tier, context_summary, conversation_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	historyJSON, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.Status,
		session.StartedAt,
		session.LastMessageAt,
		session.MessageCount,
		session.TokensUsed,
		session.ModelTier,
		session.ContextSummary,
		historyJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetActiveByUserID retrieves the user's active session, or nil when
// none exists.
func (r *SessionRepository) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	session := &models.Session{}
	var historyJSON []byte

	query := `
		SELECT id, user_id, status, started_at, last_message_at, message_count, tokens_used, model_tier, context_summary, conversation_history
		FROM coach_sessions
		WHERE user_id = $1 AND status = $2
		ORDER BY last_message_at DESC
		LIMIT 1
	`

	err := r.db.QueryRowContext(ctx, query, userID, models.SessionActive).Scan(
		&session.ID,
		&session.UserID,
		&session.Status,
		&session.StartedAt,
		&session.LastMessageAt,
		&session.MessageCount,
		&session.TokensUsed,
		&session.ModelTier,
		&session.ContextSummary,
		&historyJSON,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &session.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
		}
	}

	return session, nil
}

// Update persists session state after a completed turn
func (r *SessionRepository) Update(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE coach_sessions
		SET status = $2, last_message_at = $3, message_count = $4, tokens_used = $5, context_summary = $6, conversation_history = $7
		WHERE id = $1
	`

	historyJSON, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.Status,
		session.LastMessageAt,
		session.MessageCount,
		session.TokensUsed,
		session.ContextSummary,
		historyJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}

// ExpireIdle marks active sessions idle past the limit as expired and
// returns how many were expired.
func (r *SessionRepository) ExpireIdle(ctx context.Context, idleLimit time.Duration) (int64, error) {
	query := `
		UPDATE coach_sessions
		SET status = $1
		WHERE status = $2 AND last_message_at < $3
	`

	cutoff := time.Now().Add(-idleLimit)
	result, err := r.db.ExecContext(ctx, query, models.SessionExpired, models.SessionActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire idle sessions: %w", err)
	}

	return result.RowsAffected()
}
