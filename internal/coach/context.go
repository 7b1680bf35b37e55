package coach

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach/policy"
	"github.com/stridefit/coach-api/internal/coach/tools"
	"github.com/stridefit/coach-api/internal/models"
	"github.com/stridefit/coach-api/internal/nutrition"
)

// DefaultLookbackDays is the default context window for check-in and
// nutrition data.
const DefaultLookbackDays = 14

// Context is the aggregated user snapshot a coaching turn runs
// against. Any section may be nil or empty when the user has no data
// there; consumers must tolerate partial contexts.
type Context struct {
	UserID          uuid.UUID
	Profile         *models.Profile
	Goal            *models.Goal
	DietPreferences *models.DietPreferences
	RecentCheckIns  []models.CheckIn
	RecentNutrition []models.NutritionDay
	WeightTrend     *models.WeightTrend
	Adherence       *tools.AdherenceMetrics
	Targets         *nutrition.MacroTargets
}

// ToPolicyContext projects the snapshot down to the fields the safety
// policies evaluate against.
func (c *Context) ToPolicyContext() policy.UserContext {
	uc := policy.UserContext{UserID: c.UserID.String()}

	if c.Profile != nil {
		uc.Sex = c.Profile.Sex
		if c.Profile.BirthYear != nil {
			age := time.Now().Year() - *c.Profile.BirthYear
			uc.Age = &age
		}
	}
	uc.CurrentWeightKg = c.CurrentWeight()
	if c.Goal != nil {
		goalType := c.Goal.GoalType
		uc.GoalType = &goalType
		uc.TargetWeightKg = c.Goal.TargetWeightKg
	}
	if c.Targets != nil {
		target := c.Targets.TargetCalories
		uc.TargetCalories = &target
	}
	return uc
}

// CurrentWeight resolves the user's current weight: the trend's current
// weight when available, otherwise the most recent check-in that
// carries one.
func (c *Context) CurrentWeight() *float64 {
	if c.WeightTrend != nil && c.WeightTrend.CurrentWeightKg != nil {
		return c.WeightTrend.CurrentWeightKg
	}
	for i := len(c.RecentCheckIns) - 1; i >= 0; i-- {
		if w := c.RecentCheckIns[i].WeightKg; w != nil {
			return w
		}
	}
	return nil
}

// ContextSummary renders the full textual digest used to ground plan
// and insight generation.
func (c *Context) ContextSummary() string {
	var parts []string

	if p := c.Profile; p != nil {
		name := p.DisplayName
		if name == "" {
			name = "User"
		}
		parts = append(parts, fmt.Sprintf("User Profile: %s", name))
		if p.HeightCm != nil {
			parts = append(parts, fmt.Sprintf("  Height: %g cm", *p.HeightCm))
		}
		if p.Sex != nil {
			parts = append(parts, fmt.Sprintf("  Sex: %s", *p.Sex))
		}
		if p.ActivityLevel != nil {
			parts = append(parts, fmt.Sprintf("  Activity Level: %s", *p.ActivityLevel))
		}
	}

	if g := c.Goal; g != nil {
		parts = append(parts, fmt.Sprintf("Goal: %s", g.GoalType))
		if g.TargetWeightKg != nil {
			parts = append(parts, fmt.Sprintf("  Target Weight: %g kg", *g.TargetWeightKg))
		}
		if g.PacePreference != "" {
			parts = append(parts, fmt.Sprintf("  Pace: %s", g.PacePreference))
		}
	}

	if t := c.WeightTrend; t != nil {
		parts = append(parts, "Weight Trend:")
		if t.CurrentWeightKg != nil {
			parts = append(parts, fmt.Sprintf("  Current: %g kg", *t.CurrentWeightKg))
		}
		if t.WeeklyRateKg != nil && *t.WeeklyRateKg != 0 {
			parts = append(parts, fmt.Sprintf("  Rate: %s %.2f kg/week", trendDirection(*t.WeeklyRateKg), math.Abs(*t.WeeklyRateKg)))
		}
	}

	if a := c.Adherence; a != nil {
		parts = append(parts, "Adherence:")
		if a.CheckInRate > 0 {
			parts = append(parts, fmt.Sprintf("  Check-in rate: %.0f%%", a.CheckInRate*100))
		}
		if a.CurrentStreakDays > 0 {
			parts = append(parts, fmt.Sprintf("  Current streak: %d days", a.CurrentStreakDays))
		}
	}

	return strings.Join(parts, "\n")
}

// CompactSummary renders the condensed digest embedded in the coach
// system prompt: one line per section to keep the token cost flat.
func (c *Context) CompactSummary() string {
	var lines []string

	if p := c.Profile; p != nil {
		fields := []string{}
		if p.DisplayName != "" {
			fields = append(fields, p.DisplayName)
		}
		if p.Sex != nil {
			fields = append(fields, string(*p.Sex))
		}
		if p.HeightCm != nil {
			fields = append(fields, fmt.Sprintf("%g cm", *p.HeightCm))
		}
		if p.ActivityLevel != nil {
			fields = append(fields, fmt.Sprintf("activity: %s", *p.ActivityLevel))
		}
		if len(fields) > 0 {
			lines = append(lines, "Profile: "+strings.Join(fields, ", "))
		}
	}

	if g := c.Goal; g != nil {
		line := fmt.Sprintf("Goal: %s (%s pace)", g.GoalType, g.PacePreference)
		if g.TargetWeightKg != nil {
			line += fmt.Sprintf(", target %g kg", *g.TargetWeightKg)
		}
		lines = append(lines, line)
	}

	if t := c.WeightTrend; t != nil && t.CurrentWeightKg != nil {
		line := fmt.Sprintf("Weight: %g kg", *t.CurrentWeightKg)
		if t.WeeklyRateKg != nil && *t.WeeklyRateKg != 0 {
			line += fmt.Sprintf(", %s %.2f kg/week", trendDirection(*t.WeeklyRateKg), math.Abs(*t.WeeklyRateKg))
		}
		lines = append(lines, line)
	}

	if a := c.Adherence; a != nil {
		lines = append(lines, fmt.Sprintf("Adherence: %.0f%% check-in rate, %d day streak",
			a.CheckInRate*100, a.CurrentStreakDays))
	}

	if t := c.Targets; t != nil {
		lines = append(lines, fmt.Sprintf("Targets: %d cal, %dg protein, %dg carbs, %dg fat",
			t.TargetCalories, t.ProteinG, t.CarbsG, t.FatG))
	}

	return strings.Join(lines, "\n")
}

func trendDirection(rate float64) string {
	if rate < 0 {
		return "losing"
	}
	return "gaining"
}

// BuildOptions selects which context sections to load. The zero value
// loads everything over the default lookback window.
type BuildOptions struct {
	SkipNutrition   bool
	SkipWeightTrend bool
	SkipAdherence   bool
	SkipTargets     bool
	LookbackDays    int
}

// ContextBuilder aggregates the per-user snapshot from the data stores.
type ContextBuilder struct {
	users     tools.UserStore
	checkins  tools.CheckInStore
	nutrition tools.NutritionStore
	logger    *zap.Logger
}

func NewContextBuilder(users tools.UserStore, checkins tools.CheckInStore, nutrition tools.NutritionStore, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{
		users:     users,
		checkins:  checkins,
		nutrition: nutrition,
		logger:    logger,
	}
}

// Build loads the user's snapshot. Profile and check-in loads are
// required; the optional sections degrade to nil on failure so a
// partial snapshot still supports a turn.
func (b *ContextBuilder) Build(ctx context.Context, userID uuid.UUID, opts BuildOptions) (*Context, error) {
	days := opts.LookbackDays
	if days <= 0 {
		days = DefaultLookbackDays
	}

	cc := &Context{UserID: userID}

	user, err := b.users.GetWithRelations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	cc.Profile = user.Profile
	cc.Goal = user.Goal
	cc.DietPreferences = user.DietPreferences

	now := time.Now()
	from := now.AddDate(0, 0, -days)
	checkins, err := b.checkins.GetByDateRange(ctx, userID, from, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load check-ins: %w", err)
	}
	cc.RecentCheckIns = checkins

	if !opts.SkipWeightTrend {
		trend, err := b.checkins.GetWeightTrend(ctx, userID, days)
		if err != nil {
			b.logger.Warn("failed_to_load_weight_trend", zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			cc.WeightTrend = &trend
		}
	}

	if !opts.SkipNutrition {
		nutritionDays, err := b.nutrition.GetByDateRange(ctx, userID, from, now)
		if err != nil {
			b.logger.Warn("failed_to_load_nutrition", zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			cc.RecentNutrition = nutritionDays
		}
	}

	if !opts.SkipAdherence {
		// Computed purely from data already in memory
		metrics := tools.ComputeAdherence(cc.RecentCheckIns, cc.RecentNutrition, days, now)
		cc.Adherence = &metrics
	}

	if !opts.SkipTargets {
		cc.Targets = b.calculateTargets(cc)
	}

	return cc, nil
}

// calculateTargets derives BMR/TDEE/macro targets from the snapshot.
// Returns nil rather than failing the build when the profile or weight
// is missing.
func (b *ContextBuilder) calculateTargets(cc *Context) *nutrition.MacroTargets {
	if cc.Profile == nil {
		return nil
	}
	weight := cc.CurrentWeight()
	if weight == nil {
		return nil
	}

	heightCm := 170.0
	age := 30
	sex := models.SexMale
	activity := models.ActivityModerate
	if cc.Profile.HeightCm != nil {
		heightCm = *cc.Profile.HeightCm
	}
	if cc.Profile.BirthYear != nil {
		age = time.Now().Year() - *cc.Profile.BirthYear
	}
	if cc.Profile.Sex != nil {
		sex = *cc.Profile.Sex
	}
	if cc.Profile.ActivityLevel != nil {
		activity = *cc.Profile.ActivityLevel
	}

	goal := models.GoalMaintenance
	pace := models.PaceModerate
	if cc.Goal != nil {
		goal = cc.Goal.GoalType
		pace = cc.Goal.PacePreference
	}

	bmr := nutrition.BMR(*weight, heightCm, age, sex)
	tdee := nutrition.TDEE(bmr, activity)
	targets := nutrition.Targets(tdee, *weight, goal, pace, sex)
	targets.BMR = int(bmr)
	return &targets
}
