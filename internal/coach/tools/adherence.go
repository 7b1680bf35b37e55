package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// AdherenceMetricsTool computes logging-consistency metrics: how often
// the user checks in, logs weight, and logs nutrition, plus the current
// consecutive check-in streak.
type AdherenceMetricsTool struct {
	checkins  CheckInStore
	nutrition NutritionStore
}

func NewAdherenceMetricsTool(checkins CheckInStore, nutrition NutritionStore) *AdherenceMetricsTool {
	return &AdherenceMetricsTool{checkins: checkins, nutrition: nutrition}
}

func (*AdherenceMetricsTool) Name() string { return "get_adherence_metrics" }

func (*AdherenceMetricsTool) Description() string {
	return "Get the user's adherence metrics: check-in rate, weight logging rate, nutrition logging rate, and current streak."
}

func (*AdherenceMetricsTool) Category() string { return CategoryInternal }
func (*AdherenceMetricsTool) RequiredConsent() *models.ConsentType { return nil }
func (*AdherenceMetricsTool) Cacheable() bool { return true }
func (*AdherenceMetricsTool) CacheTTL() time.Duration { return 5 * time.Minute }

func (*AdherenceMetricsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days": map[string]any{
				"type":        "integer",
				"description": "Number of days to analyze (7-90, default 14)",
			},
		},
	}
}

func (t *AdherenceMetricsTool) Execute(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error) {
	days := intArg(args, "days", 14, 7, 90)

	to := time.Now()
	from := to.AddDate(0, 0, -days)

	checkins, err := t.checkins.GetByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}
	nutritionDays, err := t.nutrition.GetByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load nutrition days: %w", err)
	}

	metrics := ComputeAdherence(checkins, nutritionDays, days, to)

	return map[string]any{
		"days":                   days,
		"checkin_rate":           metrics.CheckInRate,
		"weight_logging_rate":    metrics.WeightLoggingRate,
		"nutrition_logging_rate": metrics.NutritionLoggingRate,
		"current_streak_days":    metrics.CurrentStreakDays,
		"avg_adherence_score":    metrics.AvgAdherenceScore,
	}, nil
}

// AdherenceMetrics is the computed consistency snapshot. Rates are
// fractions of days in the window, rounded to two decimals.
type AdherenceMetrics struct {
	CheckInRate          float64  `json:"checkin_rate"`
	WeightLoggingRate    float64  `json:"weight_logging_rate"`
	NutritionLoggingRate float64  `json:"nutrition_logging_rate"`
	CurrentStreakDays    int      `json:"current_streak_days"`
	AvgAdherenceScore    *float64 `json:"avg_adherence_score,omitempty"`
}

// ComputeAdherence derives adherence metrics from loaded check-ins and
// nutrition days. The streak counts consecutive check-in days walking
// backward from today.
func ComputeAdherence(checkins []models.CheckIn, nutritionDays []models.NutritionDay, days int, now time.Time) AdherenceMetrics {
	weightCount := 0
	checkinDates := make(map[string]bool, len(checkins))
	var scoreSum float64
	scoreCount := 0
	for _, c := range checkins {
		checkinDates[c.Date.Format("2006-01-02")] = true
		if c.WeightKg != nil {
			weightCount++
		}
		if c.AdherenceScore != nil {
			scoreSum += *c.AdherenceScore
			scoreCount++
		}
	}

	metrics := AdherenceMetrics{
		CheckInRate:          round2(float64(len(checkins)) / float64(days)),
		WeightLoggingRate:    round2(float64(weightCount) / float64(days)),
		NutritionLoggingRate: round2(float64(len(nutritionDays)) / float64(days)),
	}

	for d := 0; ; d++ {
		date := now.AddDate(0, 0, -d).Format("2006-01-02")
		if !checkinDates[date] {
			break
		}
		metrics.CurrentStreakDays++
	}

	if scoreCount > 0 {
		avg := round2(scoreSum / float64(scoreCount))
		metrics.AvgAdherenceScore = &avg
	}
	return metrics
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
