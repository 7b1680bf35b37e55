package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn is one daily wellness check-in. All measurements are optional;
// a check-in with only a mood is still a check-in.
type CheckIn struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Date           time.Time `json:"date"` // calendar date, time part zero
	WeightKg       *float64  `json:"weight_kg,omitempty"`
	EnergyLevel    *int      `json:"energy_level,omitempty"`
	SleepQuality   *int      `json:"sleep_quality,omitempty"`
	Mood           *string   `json:"mood,omitempty"`
	AdherenceScore *float64  `json:"adherence_score,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WeightTrendPoint is one dated sample in a trend series. MovingAvg7d is
// nil when fewer than 3 samples exist in the trailing 7-day window.
type WeightTrendPoint struct {
	Date        time.Time `json:"date"`
	WeightKg    float64   `json:"weight_kg"`
	MovingAvg7d *float64  `json:"moving_average_7d,omitempty"`
}

// WeightTrend summarizes weight movement over an analysis window.
type WeightTrend struct {
	Points          []WeightTrendPoint `json:"data"`
	WeeklyRateKg    *float64           `json:"weekly_rate_of_change_kg,omitempty"`
	TotalChangeKg   *float64           `json:"total_change_kg,omitempty"`
	StartWeightKg   *float64           `json:"start_weight_kg,omitempty"`
	CurrentWeightKg *float64           `json:"current_weight_kg,omitempty"`
}
