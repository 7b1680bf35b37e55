// Package nutrition provides stateless BMR/TDEE/macro-target math.
// Everything here is a pure function so the coach core and its tests can
// call it without any I/O.
package nutrition

import (
	"fmt"

	"github.com/stridefit/coach-api/internal/models"
)

// Safety thresholds from nutrition science guidelines
const (
	MinCaloriesFemale = 1200
	MinCaloriesMale   = 1500
	MaxDeficit        = 1000
	MinProteinG       = 80
	MinFatG           = 50
)

// activityMultipliers maps activity level to TDEE multiplier
var activityMultipliers = map[models.ActivityLevel]float64{
	models.ActivitySedentary:  1.2,
	models.ActivityLight:      1.375,
	models.ActivityModerate:   1.55,
	models.ActivityActive:     1.725,
	models.ActivityVeryActive: 1.9,
}

// MacroTargets holds calculated daily targets
type MacroTargets struct {
	BMR            int      `json:"bmr"`
	TDEE           int      `json:"tdee"`
	TargetCalories int      `json:"target_calories"`
	ProteinG       int      `json:"protein_g"`
	CarbsG         int      `json:"carbs_g"`
	FatG           int      `json:"fat_g"`
	DeficitSurplus int      `json:"deficit_surplus"`
	Warnings       []string `json:"warnings,omitempty"`
}

// BMR calculates basal metabolic rate using the Mifflin-St Jeor formula.
//
//	male:   10*weight + 6.25*height - 5*age + 5
//	female: 10*weight + 6.25*height - 5*age - 161
func BMR(weightKg, heightCm float64, age int, sex models.Sex) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(age)
	if sex == models.SexMale {
		return base + 5
	}
	return base - 161
}

// TDEE scales BMR by the activity multiplier. Unknown levels fall back
// to sedentary.
func TDEE(bmr float64, level models.ActivityLevel) float64 {
	mult, ok := activityMultipliers[level]
	if !ok {
		mult = 1.2
	}
	return bmr * mult
}

// Targets derives daily calorie and macro targets from TDEE, applying
// the sex-specific calorie floor and the maximum deficit cap. Violating
// a floor adjusts the target and records a warning rather than failing.
func Targets(tdee, weightKg float64, goal models.GoalType, pace models.PacePreference, sex models.Sex) MacroTargets {
	var warnings []string

	deficitSurplus := deficitFor(goal, pace)
	targetCalories := int(tdee) + deficitSurplus

	minCalories := MinCaloriesMale
	if sex == models.SexFemale {
		minCalories = MinCaloriesFemale
	}
	if targetCalories < minCalories {
		warnings = append(warnings, fmt.Sprintf("Target adjusted to minimum safe level (%d cal)", minCalories))
		targetCalories = minCalories
		deficitSurplus = targetCalories - int(tdee)
	}
	if deficitSurplus < -MaxDeficit {
		warnings = append(warnings, fmt.Sprintf("Deficit limited to maximum safe level (%d cal)", MaxDeficit))
	}

	weightLb := weightKg * 2.205
	proteinG := proteinFor(weightLb, goal)
	if proteinG < MinProteinG {
		proteinG = MinProteinG
		warnings = append(warnings, fmt.Sprintf("Protein adjusted to minimum safe level (%dg)", MinProteinG))
	}

	// Fat: minimum 50g, approximately 25% of calories
	fatG := int(float64(targetCalories) * 0.25 / 9)
	if fatG < MinFatG {
		fatG = MinFatG
	}

	// Carbs: remainder of calories at 4 cal/g
	carbsG := (targetCalories - proteinG*4 - fatG*9) / 4
	if carbsG < 0 {
		carbsG = 0
	}

	return MacroTargets{
		BMR:            int(tdee / 1.55), // approximate reference BMR
		TDEE:           int(tdee),
		TargetCalories: targetCalories,
		ProteinG:       proteinG,
		CarbsG:         carbsG,
		FatG:           fatG,
		DeficitSurplus: deficitSurplus,
		Warnings:       warnings,
	}
}

// CaloriesFromMacros applies the 4/4/9 rule. Returns nil when all three
// macros are nil.
func CaloriesFromMacros(proteinG, carbsG, fatG *float64) *int {
	if proteinG == nil && carbsG == nil && fatG == nil {
		return nil
	}
	var p, c, f float64
	if proteinG != nil {
		p = *proteinG
	}
	if carbsG != nil {
		c = *carbsG
	}
	if fatG != nil {
		f = *fatG
	}
	total := int(p*4 + c*4 + f*9)
	return &total
}

func deficitFor(goal models.GoalType, pace models.PacePreference) int {
	mult := 0.75
	switch pace {
	case models.PaceSlow:
		mult = 0.5
	case models.PaceAggressive:
		mult = 1.0
	}

	switch goal {
	case models.GoalFatLoss:
		d := int(-750 * mult)
		if d < -MaxDeficit {
			d = -MaxDeficit
		}
		return d
	case models.GoalMuscleGain:
		return int(300 * mult)
	case models.GoalRecomp:
		return 0
	case models.GoalPerformance:
		return int(200 * mult)
	default: // maintenance
		return 0
	}
}

func proteinFor(weightLb float64, goal models.GoalType) int {
	switch goal {
	case models.GoalMuscleGain, models.GoalFatLoss:
		// 1g/lb; fat loss keeps protein high to preserve muscle
		return int(weightLb)
	case models.GoalRecomp, models.GoalPerformance:
		return int(weightLb * 0.9)
	default: // maintenance
		return int(weightLb * 0.8)
	}
}
