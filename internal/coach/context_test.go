package coach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/models"
)

func TestCurrentWeight(t *testing.T) {
	t.Parallel()

	trendWeight := 78.5
	olderWeight := 80.0
	newerWeight := 79.2

	tests := []struct {
		name string
		cc   *Context
		want *float64
	}{
		{
			"trend preferred",
			&Context{
				WeightTrend:    &models.WeightTrend{CurrentWeightKg: &trendWeight},
				RecentCheckIns: []models.CheckIn{{WeightKg: &olderWeight}},
			},
			&trendWeight,
		},
		{
			"newest check-in with weight",
			&Context{
				RecentCheckIns: []models.CheckIn{
					{WeightKg: &olderWeight},
					{WeightKg: &newerWeight},
					{}, // today's check-in has no weight
				},
			},
			&newerWeight,
		},
		{"no data", &Context{}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.cc.CurrentWeight()
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("CurrentWeight() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("CurrentWeight() = %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestToPolicyContext(t *testing.T) {
	t.Parallel()

	height := 165.0
	sex := models.SexFemale
	birthYear := 1996
	weight := 62.0
	targetWeight := 58.0

	cc := &Context{
		UserID: uuid.New(),
		Profile: &models.Profile{
			HeightCm:  &height,
			Sex:       &sex,
			BirthYear: &birthYear,
		},
		Goal: &models.Goal{
			GoalType:       models.GoalFatLoss,
			TargetWeightKg: &targetWeight,
			PacePreference: models.PaceModerate,
		},
		WeightTrend: &models.WeightTrend{CurrentWeightKg: &weight},
	}

	uc := cc.ToPolicyContext()
	if uc.UserID != cc.UserID.String() {
		t.Errorf("user ID = %q", uc.UserID)
	}
	if uc.Sex == nil || *uc.Sex != models.SexFemale {
		t.Error("sex not projected")
	}
	if uc.Age == nil || *uc.Age != time.Now().Year()-birthYear {
		t.Error("age not derived from birth year")
	}
	if uc.CurrentWeightKg == nil || *uc.CurrentWeightKg != weight {
		t.Error("current weight not projected")
	}
	if uc.GoalType == nil || *uc.GoalType != models.GoalFatLoss {
		t.Error("goal type not projected")
	}
	if uc.TargetWeightKg == nil || *uc.TargetWeightKg != targetWeight {
		t.Error("target weight not projected")
	}
}

func TestToPolicyContext_EmptySnapshot(t *testing.T) {
	t.Parallel()

	cc := &Context{UserID: uuid.New()}
	uc := cc.ToPolicyContext()
	if uc.Sex != nil || uc.Age != nil || uc.CurrentWeightKg != nil || uc.GoalType != nil {
		t.Errorf("empty snapshot projected non-nil fields: %+v", uc)
	}
}

func TestContextSummary(t *testing.T) {
	t.Parallel()

	height := 180.0
	sex := models.SexMale
	weight := 85.0
	rate := -0.4
	targetWeight := 80.0

	cc := &Context{
		Profile: &models.Profile{DisplayName: "Alex", HeightCm: &height, Sex: &sex},
		Goal:    &models.Goal{GoalType: models.GoalFatLoss, TargetWeightKg: &targetWeight, PacePreference: models.PaceModerate},
		WeightTrend: &models.WeightTrend{
			CurrentWeightKg: &weight,
			WeeklyRateKg:    &rate,
		},
	}

	summary := cc.ContextSummary()
	for _, want := range []string{
		"User Profile: Alex",
		"  Height: 180 cm",
		"Goal: fat_loss",
		"  Target Weight: 80 kg",
		"Weight Trend:",
		"  Current: 85 kg",
		"  Rate: losing 0.40 kg/week",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestContextSummary_Empty(t *testing.T) {
	t.Parallel()

	if got := (&Context{}).ContextSummary(); got != "" {
		t.Errorf("empty context summary = %q, want empty", got)
	}
}

func TestCompactSummary(t *testing.T) {
	t.Parallel()

	weight := 72.0
	rate := 0.2

	cc := &Context{
		Goal:        &models.Goal{GoalType: models.GoalMuscleGain, PacePreference: models.PaceSlow},
		WeightTrend: &models.WeightTrend{CurrentWeightKg: &weight, WeeklyRateKg: &rate},
	}

	summary := cc.CompactSummary()
	lines := strings.Split(summary, "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), summary)
	}
	if !strings.HasPrefix(lines[0], "Goal: muscle_gain") {
		t.Errorf("goal line = %q", lines[0])
	}
	if lines[1] != "Weight: 72 kg, gaining 0.20 kg/week" {
		t.Errorf("weight line = %q", lines[1])
	}
}

func TestBuild_AggregatesSnapshot(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	height := 175.0
	sex := models.SexMale
	birthYear := 1992
	weight := 82.0
	trendWeight := 81.5

	users := &fakeUserStore{user: &models.UserWithRelations{
		User: models.User{ID: userID},
		Profile: &models.Profile{
			HeightCm: &height, Sex: &sex, BirthYear: &birthYear,
		},
		Goal: &models.Goal{GoalType: models.GoalFatLoss, PacePreference: models.PaceModerate},
	}}
	checkins := &fakeCheckInStore{
		checkins: []models.CheckIn{{Date: time.Now(), WeightKg: &weight}},
		trend:    models.WeightTrend{CurrentWeightKg: &trendWeight},
	}
	nutritionStore := &fakeNutritionStore{days: make([]models.NutritionDay, 5)}

	builder := NewContextBuilder(users, checkins, nutritionStore, zap.NewNop())
	cc, err := builder.Build(context.Background(), userID, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if cc.Profile == nil || cc.Goal == nil {
		t.Fatal("profile or goal not loaded")
	}
	if len(cc.RecentCheckIns) != 1 || len(cc.RecentNutrition) != 5 {
		t.Errorf("check-ins = %d, nutrition = %d", len(cc.RecentCheckIns), len(cc.RecentNutrition))
	}
	if cc.WeightTrend == nil || *cc.WeightTrend.CurrentWeightKg != trendWeight {
		t.Error("weight trend not loaded")
	}
	if cc.Adherence == nil {
		t.Error("adherence not computed")
	}
	if cc.Targets == nil {
		t.Fatal("targets not calculated")
	}
	if cc.Targets.TargetCalories <= 0 || cc.Targets.ProteinG <= 0 {
		t.Errorf("implausible targets: %+v", cc.Targets)
	}
	if cc.Targets.BMR <= 0 {
		t.Error("BMR not set on targets")
	}
}

func TestBuild_DegradesOnOptionalFailures(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	users := &fakeUserStore{user: &models.UserWithRelations{User: models.User{ID: userID}}}
	checkins := &fakeCheckInStore{trendErr: errors.New("trend query failed")}

	builder := NewContextBuilder(users, checkins, &fakeNutritionStore{}, zap.NewNop())
	cc, err := builder.Build(context.Background(), userID, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cc.WeightTrend != nil {
		t.Error("failed trend load should leave trend nil")
	}
	// No profile and no weight: targets cannot be derived.
	if cc.Targets != nil {
		t.Error("targets should be nil without profile data")
	}
}

func TestBuild_RequiredUserLoadFails(t *testing.T) {
	t.Parallel()

	users := &fakeUserStore{err: errors.New("user not found")}
	builder := NewContextBuilder(users, &fakeCheckInStore{}, &fakeNutritionStore{}, zap.NewNop())

	if _, err := builder.Build(context.Background(), uuid.New(), BuildOptions{}); err == nil {
		t.Fatal("expected error when the user load fails")
	}
}

func TestBuild_SkipOptions(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	weight := 70.0
	users := &fakeUserStore{user: &models.UserWithRelations{
		User:    models.User{ID: userID},
		Profile: &models.Profile{},
	}}
	checkins := &fakeCheckInStore{checkins: []models.CheckIn{{WeightKg: &weight}}}

	builder := NewContextBuilder(users, checkins, &fakeNutritionStore{}, zap.NewNop())
	cc, err := builder.Build(context.Background(), userID, BuildOptions{
		SkipNutrition:   true,
		SkipWeightTrend: true,
		SkipAdherence:   true,
		SkipTargets:     true,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cc.WeightTrend != nil || cc.Adherence != nil || cc.Targets != nil || cc.RecentNutrition != nil {
		t.Errorf("skipped sections loaded anyway: %+v", cc)
	}
}
