package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// CheckInRepository handles daily check-in reads
type CheckInRepository struct {
	db *DB
}

// NewCheckInRepository creates a new check-in repository
func NewCheckInRepository(db *DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// GetByDateRange retrieves check-ins for a user within [from, to],
// ordered by date ascending.
func (r *CheckInRepository) GetByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.CheckIn, error) {
	query := `
		SELECT id, user_id, date, weight_kg, energy_level, sleep_quality, mood, adherence_score, notes, updated_at
		FROM check_ins
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []models.CheckIn
	for rows.Next() {
		var c models.CheckIn
		err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Date,
			&c.WeightKg,
			&c.EnergyLevel,
			&c.SleepQuality,
			&c.Mood,
			&c.AdherenceScore,
			&c.Notes,
			&c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		checkIns = append(checkIns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check-ins: %w", err)
	}

	return checkIns, nil
}

// GetLatest retrieves the most recent check-in for a user, or nil when
// the user has never checked in.
func (r *CheckInRepository) GetLatest(ctx context.Context, userID uuid.UUID) (*models.CheckIn, error) {
	c := &models.CheckIn{}
	query := `
		SELECT id, user_id, date, weight_kg, energy_level, sleep_quality, mood, adherence_score, notes, updated_at
		FROM check_ins
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT 1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&c.ID,
		&c.UserID,
		&c.Date,
		&c.WeightKg,
		&c.EnergyLevel,
		&c.SleepQuality,
		&c.Mood,
		&c.AdherenceScore,
		&c.Notes,
		&c.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest check-in: %w", err)
	}

	return c, nil
}

// GetWeightTrend computes the weight trend over the last `days` days
// from check-ins that carry a weight.
func (r *CheckInRepository) GetWeightTrend(ctx context.Context, userID uuid.UUID, days int) (models.WeightTrend, error) {
	query := `
		SELECT date, weight_kg
		FROM check_ins
		WHERE user_id = $1 AND weight_kg IS NOT NULL AND date >= $2
		ORDER BY date ASC
	`

	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return models.WeightTrend{}, fmt.Errorf("failed to query weight samples: %w", err)
	}
	defer rows.Close()

	var samples []WeightSample
	for rows.Next() {
		var s WeightSample
		if err := rows.Scan(&s.Date, &s.WeightKg); err != nil {
			return models.WeightTrend{}, fmt.Errorf("failed to scan weight sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return models.WeightTrend{}, fmt.Errorf("error iterating weight samples: %w", err)
	}

	return ComputeWeightTrend(samples), nil
}
