package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// WeightTrendTool returns the 7-day moving average weight series and
// the weekly rate of change.
type WeightTrendTool struct {
	checkins CheckInStore
}

func NewWeightTrendTool(checkins CheckInStore) *WeightTrendTool {
	return &WeightTrendTool{checkins: checkins}
}

func (*WeightTrendTool) Name() string { return "get_weight_trend" }

func (*WeightTrendTool) Description() string {
	return "Get the user's weight trend with a 7-day moving average and weekly rate of change."
}

func (*WeightTrendTool) Category() string { return CategoryInternal }
func (*WeightTrendTool) RequiredConsent() *models.ConsentType { return nil }
func (*WeightTrendTool) Cacheable() bool { return true }
func (*WeightTrendTool) CacheTTL() time.Duration { return 5 * time.Minute }

func (*WeightTrendTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days": map[string]any{
				"type":        "integer",
				"description": "Analysis window in days (7-365, default 30)",
			},
		},
	}
}

func (t *WeightTrendTool) Execute(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error) {
	days := intArg(args, "days", 30, 7, 365)

	trend, err := t.checkins.GetWeightTrend(ctx, userID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to compute weight trend: %w", err)
	}

	points := make([]map[string]any, 0, len(trend.Points))
	for _, p := range trend.Points {
		point := map[string]any{
			"date":      p.Date.Format("2006-01-02"),
			"weight_kg": p.WeightKg,
		}
		if p.MovingAvg7d != nil {
			point["moving_average_7d"] = *p.MovingAvg7d
		}
		points = append(points, point)
	}

	out := map[string]any{
		"days":   days,
		"points": points,
	}
	if trend.StartWeightKg != nil {
		out["start_weight_kg"] = *trend.StartWeightKg
	}
	if trend.CurrentWeightKg != nil {
		out["current_weight_kg"] = *trend.CurrentWeightKg
	}
	if trend.TotalChangeKg != nil {
		out["total_change_kg"] = *trend.TotalChangeKg
	}
	if trend.WeeklyRateKg != nil {
		out["weekly_rate_of_change_kg"] = *trend.WeeklyRateKg
	}
	return out, nil
}
