package models

import (
	"time"

	"github.com/google/uuid"
)

// Sex is the biological sex recorded on a profile, used for BMR and
// calorie-floor calculations.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ActivityLevel buckets for TDEE calculation
type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

// GoalType is the user's current fitness goal
type GoalType string

const (
	GoalFatLoss     GoalType = "fat_loss"
	GoalMuscleGain  GoalType = "muscle_gain"
	GoalMaintenance GoalType = "maintenance"
	GoalRecomp      GoalType = "recomp"
	GoalPerformance GoalType = "performance"
)

// PacePreference controls how aggressive the calorie deficit/surplus is
type PacePreference string

const (
	PaceSlow       PacePreference = "slow"
	PaceModerate   PacePreference = "moderate"
	PaceAggressive PacePreference = "aggressive"
)

// User represents an account
type User struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// Profile holds the user's physical stats and preferences
type Profile struct {
	UserID        uuid.UUID      `json:"user_id"`
	DisplayName   string         `json:"display_name"`
	HeightCm      *float64       `json:"height_cm,omitempty"`
	Sex           *Sex           `json:"sex,omitempty"`
	BirthYear     *int           `json:"birth_year,omitempty"`
	ActivityLevel *ActivityLevel `json:"activity_level,omitempty"`
	Timezone      string         `json:"timezone"`
}

// Goal holds the user's active fitness goal
type Goal struct {
	UserID         uuid.UUID      `json:"user_id"`
	GoalType       GoalType       `json:"goal_type"`
	TargetWeightKg *float64       `json:"target_weight_kg,omitempty"`
	PacePreference PacePreference `json:"pace_preference"`
	TargetDate     *time.Time     `json:"target_date,omitempty"`
}

// DietPreferences holds dietary restrictions and habits
type DietPreferences struct {
	UserID        uuid.UUID `json:"user_id"`
	DietType      *string   `json:"diet_type,omitempty"`
	Allergies     []string  `json:"allergies"`
	DislikedFoods []string  `json:"disliked_foods"`
	MealsPerDay   *int      `json:"meals_per_day,omitempty"`
}

// UserWithRelations bundles a user with its optional relations. Any of
// the nested pointers may be nil when the user has not filled them in.
type UserWithRelations struct {
	User            User
	Profile         *Profile
	Goal            *Goal
	DietPreferences *DietPreferences
}
