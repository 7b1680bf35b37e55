package coach

import "github.com/stridefit/coach-api/internal/models"

// ModelSettings is the per-tier model configuration applied to every
// call made on behalf of a session.
type ModelSettings struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	RateLimitPerHour int
	ContextWindow    int
}

var tierSettings = map[models.ModelTier]ModelSettings{
	models.TierFree: {
		Model:            "gpt-4o-mini",
		MaxTokens:        1000,
		Temperature:      0.7,
		RateLimitPerHour: 10,
		ContextWindow:    8192,
	},
	models.TierStandard: {
		Model:            "gpt-4o",
		MaxTokens:        2000,
		Temperature:      0.7,
		RateLimitPerHour: 50,
		ContextWindow:    16384,
	},
	models.TierPremium: {
		Model:            "gpt-4o",
		MaxTokens:        4000,
		Temperature:      0.7,
		RateLimitPerHour: 100,
		ContextWindow:    32768,
	},
}

// SettingsForTier returns the model settings for a subscription tier.
// Unknown tiers resolve to standard.
func SettingsForTier(tier models.ModelTier) ModelSettings {
	if s, ok := tierSettings[tier]; ok {
		return s
	}
	return tierSettings[models.TierStandard]
}
