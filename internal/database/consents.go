package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// ConsentRepository handles user consent reads
type ConsentRepository struct {
	db *DB
}

// NewConsentRepository creates a new consent repository
func NewConsentRepository(db *DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// GetByUserID retrieves all consent records for a user
func (r *ConsentRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]models.UserConsent, error) {
	query := `
		SELECT id, user_id, consent_type, granted, granted_at, revoked_at
		FROM user_consents
		WHERE user_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query consents: %w", err)
	}
	defer rows.Close()

	var consents []models.UserConsent
	for rows.Next() {
		var c models.UserConsent
		err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.ConsentType,
			&c.Granted,
			&c.GrantedAt,
			&c.RevokedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan consent: %w", err)
		}
		consents = append(consents, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating consents: %w", err)
	}

	return consents, nil
}

// GetActiveTypes retrieves the set of consent types currently in force
// for a user.
func (r *ConsentRepository) GetActiveTypes(ctx context.Context, userID uuid.UUID) ([]models.ConsentType, error) {
	consents, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var active []models.ConsentType
	for _, c := range consents {
		if c.Active() {
			active = append(active, c.ConsentType)
		}
	}
	return active, nil
}
