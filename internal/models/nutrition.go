package models

import (
	"time"

	"github.com/google/uuid"
)

// NutritionDay is one day of logged nutrition totals
type NutritionDay struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Date     time.Time `json:"date"`
	Calories *int      `json:"calories,omitempty"`
	ProteinG *float64  `json:"protein_g,omitempty"`
	CarbsG   *float64  `json:"carbs_g,omitempty"`
	FatG     *float64  `json:"fat_g,omitempty"`
	FiberG   *float64  `json:"fiber_g,omitempty"`
}

// NutritionStats is an aggregate over a date range. Averages are nil
// when no days in the range carried the corresponding value.
type NutritionStats struct {
	LoggedDays    int      `json:"logged_days"`
	AvgCalories   *float64 `json:"avg_calories,omitempty"`
	AvgProteinG   *float64 `json:"avg_protein_g,omitempty"`
	AvgCarbsG     *float64 `json:"avg_carbs_g,omitempty"`
	AvgFatG       *float64 `json:"avg_fat_g,omitempty"`
	AvgFiberG     *float64 `json:"avg_fiber_g,omitempty"`
	TotalCalories *int     `json:"total_calories,omitempty"`
}
