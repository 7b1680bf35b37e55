package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// ProfileTool returns the user's profile, active goal, and diet
// preferences in one payload.
type ProfileTool struct {
	users UserStore
}

func NewProfileTool(users UserStore) *ProfileTool {
	return &ProfileTool{users: users}
}

func (*ProfileTool) Name() string { return "get_user_profile" }

func (*ProfileTool) Description() string {
	return "Get the user's profile including physical stats, fitness goal, and dietary preferences."
}

func (*ProfileTool) Category() string { return CategoryInternal }
func (*ProfileTool) RequiredConsent() *models.ConsentType { return nil }
func (*ProfileTool) Cacheable() bool { return true }
func (*ProfileTool) CacheTTL() time.Duration { return 5 * time.Minute }

func (*ProfileTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *ProfileTool) Execute(ctx context.Context, userID uuid.UUID, _ map[string]any) (any, error) {
	user, err := t.users.GetWithRelations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	out := map[string]any{
		"user_id": user.User.ID.String(),
		"email":   user.User.Email,
	}

	if p := user.Profile; p != nil {
		profile := map[string]any{
			"display_name": p.DisplayName,
			"timezone":     p.Timezone,
		}
		if p.HeightCm != nil {
			profile["height_cm"] = *p.HeightCm
		}
		if p.Sex != nil {
			profile["sex"] = string(*p.Sex)
		}
		if p.BirthYear != nil {
			profile["birth_year"] = *p.BirthYear
			profile["age"] = time.Now().Year() - *p.BirthYear
		}
		if p.ActivityLevel != nil {
			profile["activity_level"] = string(*p.ActivityLevel)
		}
		out["profile"] = profile
	}

	if g := user.Goal; g != nil {
		goal := map[string]any{
			"goal_type":       string(g.GoalType),
			"pace_preference": string(g.PacePreference),
		}
		if g.TargetWeightKg != nil {
			goal["target_weight_kg"] = *g.TargetWeightKg
		}
		if g.TargetDate != nil {
			goal["target_date"] = g.TargetDate.Format("2006-01-02")
		}
		out["goal"] = goal
	}

	if d := user.DietPreferences; d != nil {
		prefs := map[string]any{
			"allergies":      d.Allergies,
			"disliked_foods": d.DislikedFoods,
		}
		if d.DietType != nil {
			prefs["diet_type"] = *d.DietType
		}
		if d.MealsPerDay != nil {
			prefs["meals_per_day"] = *d.MealsPerDay
		}
		out["diet_preferences"] = prefs
	}

	return out, nil
}
