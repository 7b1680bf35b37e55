package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// NutritionRepository handles daily nutrition log reads
type NutritionRepository struct {
	db *DB
}

// NewNutritionRepository creates a new nutrition repository
func NewNutritionRepository(db *DB) *NutritionRepository {
	return &NutritionRepository{db: db}
}

// GetByDateRange retrieves nutrition days for a user within [from, to],
// ordered by date ascending.
func (r *NutritionRepository) GetByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.NutritionDay, error) {
	query := `
		SELECT id, user_id, date, calories, protein_g, carbs_g, fat_g, fiber_g
		FROM nutrition_days
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query nutrition days: %w", err)
	}
	defer rows.Close()

	var days []models.NutritionDay
	for rows.Next() {
		var d models.NutritionDay
		err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.Date,
			&d.Calories,
			&d.ProteinG,
			&d.CarbsG,
			&d.FatG,
			&d.FiberG,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan nutrition day: %w", err)
		}
		days = append(days, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nutrition days: %w", err)
	}

	return days, nil
}

// GetStats aggregates nutrition logs over [from, to]. Averages only
// cover days that carried the corresponding value; an empty range
// yields zero logged days and nil averages.
func (r *NutritionRepository) GetStats(ctx context.Context, userID uuid.UUID, from, to time.Time) (models.NutritionStats, error) {
	query := `
		SELECT COUNT(*),
		       AVG(calories), AVG(protein_g), AVG(carbs_g), AVG(fat_g), AVG(fiber_g),
		       SUM(calories)
		FROM nutrition_days
		WHERE user_id = $1 AND date >= $2 AND date <= $3
	`

	var stats models.NutritionStats
	var avgCal, avgProtein, avgCarbs, avgFat, avgFiber sql.NullFloat64
	var totalCal sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, userID, from, to).Scan(
		&stats.LoggedDays,
		&avgCal,
		&avgProtein,
		&avgCarbs,
		&avgFat,
		&avgFiber,
		&totalCal,
	)
	if err != nil {
		return models.NutritionStats{}, fmt.Errorf("failed to aggregate nutrition stats: %w", err)
	}

	if avgCal.Valid {
		stats.AvgCalories = &avgCal.Float64
	}
	if avgProtein.Valid {
		stats.AvgProteinG = &avgProtein.Float64
	}
	if avgCarbs.Valid {
		stats.AvgCarbsG = &avgCarbs.Float64
	}
	if avgFat.Valid {
		stats.AvgFatG = &avgFat.Float64
	}
	if avgFiber.Valid {
		stats.AvgFiberG = &avgFiber.Float64
	}
	if totalCal.Valid {
		total := int(totalCal.Int64)
		stats.TotalCalories = &total
	}

	return stats, nil
}
