// Package validation holds the shared request validator and input
// sanitization helpers.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/stridefit/coach-api/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Custom enum validators. Registration only fails on a bad tag name.
	if err := Validate.RegisterValidation("model_tier", validateModelTier); err != nil {
		panic(fmt.Sprintf("failed to register model_tier validator: %v", err))
	}
	if err := Validate.RegisterValidation("goal_type", validateGoalType); err != nil {
		panic(fmt.Sprintf("failed to register goal_type validator: %v", err))
	}
}

// validateModelTier accepts the known subscription tiers.
func validateModelTier(fl validator.FieldLevel) bool {
	switch models.ModelTier(fl.Field().String()) {
	case models.TierFree, models.TierStandard, models.TierPremium:
		return true
	default:
		return false
	}
}

// validateGoalType accepts the known coaching goal types.
func validateGoalType(fl validator.FieldLevel) bool {
	switch models.GoalType(fl.Field().String()) {
	case models.GoalFatLoss, models.GoalMuscleGain, models.GoalMaintenance, models.GoalRecomp, models.GoalPerformance:
		return true
	default:
		return false
	}
}

// SanitizeText trims whitespace and strips control characters other
// than newline and tab from user-supplied text.
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
