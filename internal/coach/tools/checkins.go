package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// RecentCheckInsTool returns the user's daily check-ins over a window.
// Short TTL because check-ins change during the day.
type RecentCheckInsTool struct {
	checkins CheckInStore
}

func NewRecentCheckInsTool(checkins CheckInStore) *RecentCheckInsTool {
	return &RecentCheckInsTool{checkins: checkins}
}

func (*RecentCheckInsTool) Name() string { return "get_recent_checkins" }

func (*RecentCheckInsTool) Description() string {
	return "Get the user's recent daily check-ins including weight, energy, sleep, and mood."
}

func (*RecentCheckInsTool) Category() string { return CategoryInternal }
func (*RecentCheckInsTool) RequiredConsent() *models.ConsentType { return nil }
func (*RecentCheckInsTool) Cacheable() bool { return true }
func (*RecentCheckInsTool) CacheTTL() time.Duration { return time.Minute }

func (*RecentCheckInsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days": map[string]any{
				"type":        "integer",
				"description": "Number of days to look back (1-90, default 14)",
			},
		},
	}
}

func (t *RecentCheckInsTool) Execute(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error) {
	days := intArg(args, "days", 14, 1, 90)

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	checkins, err := t.checkins.GetByDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}

	entries := make([]map[string]any, 0, len(checkins))
	for _, c := range checkins {
		entry := map[string]any{"date": c.Date.Format("2006-01-02")}
		if c.WeightKg != nil {
			entry["weight_kg"] = *c.WeightKg
		}
		if c.EnergyLevel != nil {
			entry["energy_level"] = *c.EnergyLevel
		}
		if c.SleepQuality != nil {
			entry["sleep_quality"] = *c.SleepQuality
		}
		if c.Mood != nil {
			entry["mood"] = *c.Mood
		}
		if c.AdherenceScore != nil {
			entry["adherence_score"] = *c.AdherenceScore
		}
		if c.Notes != nil {
			entry["notes"] = *c.Notes
		}
		entries = append(entries, entry)
	}

	return map[string]any{
		"days":      days,
		"count":     len(entries),
		"check_ins": entries,
	}, nil
}
