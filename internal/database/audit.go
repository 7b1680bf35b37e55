package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// AuditRepository handles the append-only audit tables. Rows are never
// updated or deleted through this repository.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertToolCall appends one tool call audit record
func (r *AuditRepository) InsertToolCall(ctx context.Context, log *models.ToolCallLog) error {
	query := `
		INSERT INTO tool_call_logs (id, session_id, user_id, tool_name, tool_category, input_hash, input_summary, output_summary, status, error_message, latency_ms, cached, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.SessionID,
		log.UserID,
		log.ToolName,
		log.ToolCategory,
		log.InputHash,
		log.InputSummary,
		log.OutputSummary,
		log.Status,
		log.ErrorMessage,
		log.LatencyMs,
		log.Cached,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tool call log: %w", err)
	}

	return nil
}

// InsertPolicyViolation appends one policy violation audit record
func (r *AuditRepository) InsertPolicyViolation(ctx context.Context, log *models.PolicyViolationLog) error {
	query := `
		INSERT INTO policy_violation_logs (id, session_id, user_id, violation_type, severity, trigger_content, action_taken, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	detailsJSON, err := json.Marshal(log.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal violation details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.SessionID,
		log.UserID,
		log.ViolationType,
		log.Severity,
		log.TriggerContent,
		log.ActionTaken,
		detailsJSON,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert policy violation log: %w", err)
	}

	return nil
}

// RecordViolation satisfies the policy engine's sink over the
// violations table, for deployments running without a broker.
func (r *AuditRepository) RecordViolation(ctx context.Context, log *models.PolicyViolationLog) error {
	return r.InsertPolicyViolation(ctx, log)
}

// ListRecentViolations retrieves the most recent policy violations,
// newest first. Used by the admin CLI for monitoring.
func (r *AuditRepository) ListRecentViolations(ctx context.Context, limit int) ([]models.PolicyViolationLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, user_id, violation_type, severity, trigger_content, action_taken, details, created_at
		FROM policy_violation_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy violations: %w", err)
	}
	defer rows.Close()

	var logs []models.PolicyViolationLog
	for rows.Next() {
		var l models.PolicyViolationLog
		var detailsJSON []byte
		err := rows.Scan(
			&l.ID,
			&l.SessionID,
			&l.UserID,
			&l.ViolationType,
			&l.Severity,
			&l.TriggerContent,
			&l.ActionTaken,
			&detailsJSON,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy violation: %w", err)
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &l.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal violation details: %w", err)
			}
		}
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy violations: %w", err)
	}

	return logs, nil
}
