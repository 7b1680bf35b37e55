package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
	"github.com/stridefit/coach-api/internal/nutrition"
)

// TDEETool calculates BMR, TDEE, and calorie/macro targets from the
// user's profile, falling back to population defaults for missing
// fields.
type TDEETool struct {
	users    UserStore
	checkins CheckInStore
}

func NewTDEETool(users UserStore, checkins CheckInStore) *TDEETool {
	return &TDEETool{users: users, checkins: checkins}
}

func (*TDEETool) Name() string { return "calculate_tdee" }

func (*TDEETool) Description() string {
	return "Calculate the user's estimated daily energy expenditure and recommended calorie and macro targets."
}

func (*TDEETool) Category() string { return CategoryInternal }
func (*TDEETool) RequiredConsent() *models.ConsentType { return nil }
func (*TDEETool) Cacheable() bool { return true }
func (*TDEETool) CacheTTL() time.Duration { return 10 * time.Minute }

func (*TDEETool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"weight_kg": map[string]any{
				"type":        "number",
				"description": "Weight to use for the calculation. Defaults to the most recent logged weight.",
			},
		},
	}
}

func (t *TDEETool) Execute(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error) {
	user, err := t.users.GetWithRelations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	weightKg, ok := floatArg(args, "weight_kg")
	if !ok {
		latest, err := t.checkins.GetLatest(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest check-in: %w", err)
		}
		if latest == nil || latest.WeightKg == nil {
			return nil, fmt.Errorf("no weight available: log a check-in with weight or pass weight_kg")
		}
		weightKg = *latest.WeightKg
	}

	// Population defaults for missing profile fields
	age := 30
	heightCm := 170.0
	sex := models.SexMale
	activity := models.ActivityModerate
	if p := user.Profile; p != nil {
		if p.BirthYear != nil {
			age = time.Now().Year() - *p.BirthYear
		}
		if p.HeightCm != nil {
			heightCm = *p.HeightCm
		}
		if p.Sex != nil {
			sex = *p.Sex
		}
		if p.ActivityLevel != nil {
			activity = *p.ActivityLevel
		}
	}

	goal := models.GoalMaintenance
	pace := models.PaceModerate
	if g := user.Goal; g != nil {
		goal = g.GoalType
		pace = g.PacePreference
	}

	bmr := nutrition.BMR(weightKg, heightCm, age, sex)
	tdee := nutrition.TDEE(bmr, activity)
	targets := nutrition.Targets(tdee, weightKg, goal, pace, sex)

	out := map[string]any{
		"bmr":             int(bmr),
		"tdee":            int(tdee),
		"target_calories": targets.TargetCalories,
		"protein_g":       targets.ProteinG,
		"carbs_g":         targets.CarbsG,
		"fat_g":           targets.FatG,
		"deficit_surplus": targets.DeficitSurplus,
		"weight_kg":       weightKg,
		"goal_type":       string(goal),
	}
	if len(targets.Warnings) > 0 {
		out["warnings"] = targets.Warnings
	}
	return out, nil
}
