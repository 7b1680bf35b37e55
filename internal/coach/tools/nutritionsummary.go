package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// NutritionSummaryTool returns aggregate nutrition stats over a window.
type NutritionSummaryTool struct {
	nutrition NutritionStore
}

func NewNutritionSummaryTool(nutrition NutritionStore) *NutritionSummaryTool {
	return &NutritionSummaryTool{nutrition: nutrition}
}

func (*NutritionSummaryTool) Name() string { return "get_nutrition_summary" }

func (*NutritionSummaryTool) Description() string {
	return "Get a summary of the user's logged nutrition: average calories and macros over a window."
}

func (*NutritionSummaryTool) Category() string { return CategoryInternal }
func (*NutritionSummaryTool) RequiredConsent() *models.ConsentType { return nil }
func (*NutritionSummaryTool) Cacheable() bool { return true }
func (*NutritionSummaryTool) CacheTTL() time.Duration { return 2 * time.Minute }

func (*NutritionSummaryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days": map[string]any{
				"type":        "integer",
				"description": "Number of days to summarize (1-90, default 14)",
			},
		},
	}
}

func (t *NutritionSummaryTool) Execute(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error) {
	days := intArg(args, "days", 14, 1, 90)

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	stats, err := t.nutrition.GetStats(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load nutrition stats: %w", err)
	}

	out := map[string]any{
		"days":        days,
		"logged_days": stats.LoggedDays,
	}
	if stats.AvgCalories != nil {
		out["avg_calories"] = *stats.AvgCalories
	}
	if stats.AvgProteinG != nil {
		out["avg_protein_g"] = *stats.AvgProteinG
	}
	if stats.AvgCarbsG != nil {
		out["avg_carbs_g"] = *stats.AvgCarbsG
	}
	if stats.AvgFatG != nil {
		out["avg_fat_g"] = *stats.AvgFatG
	}
	if stats.AvgFiberG != nil {
		out["avg_fiber_g"] = *stats.AvgFiberG
	}
	return out, nil
}
