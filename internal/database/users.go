package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stridefit/coach-api/internal/models"
)

// UserRepository handles user, profile, goal and diet preference reads
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, email, is_verified, created_at
		FROM users
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.IsVerified,
		&user.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetWithRelations retrieves a user together with profile, goal and diet
// preferences. Each relation is nil when the user has not created it;
// only a missing user row is an error.
func (r *UserRepository) GetWithRelations(ctx context.Context, id uuid.UUID) (*models.UserWithRelations, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &models.UserWithRelations{User: *user}

	profile, err := r.getProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Profile = profile

	goal, err := r.getGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Goal = goal

	prefs, err := r.getDietPreferences(ctx, id)
	if err != nil {
		return nil, err
	}
	result.DietPreferences = prefs

	return result, nil
}

func (r *UserRepository) getProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile := &models.Profile{}
	query := `
		SELECT user_id, display_name, height_cm, sex, birth_year, activity_level, timezone
		FROM profiles
		WHERE user_id = $1
	`

	var sex, activityLevel sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.HeightCm,
		&sex,
		&profile.BirthYear,
		&activityLevel,
		&profile.Timezone,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if sex.Valid {
		s := models.Sex(sex.String)
		profile.Sex = &s
	}
	if activityLevel.Valid {
		a := models.ActivityLevel(activityLevel.String)
		profile.ActivityLevel = &a
	}

	return profile, nil
}

func (r *UserRepository) getGoal(ctx context.Context, userID uuid.UUID) (*models.Goal, error) {
	goal := &models.Goal{}
	query := `
		SELECT user_id, goal_type, target_weight_kg, pace_preference, target_date
		FROM goals
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&goal.UserID,
		&goal.GoalType,
		&goal.TargetWeightKg,
		&goal.PacePreference,
		&goal.TargetDate,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	return goal, nil
}

func (r *UserRepository) getDietPreferences(ctx context.Context, userID uuid.UUID) (*models.DietPreferences, error) {
	prefs := &models.DietPreferences{}
	query := `
		SELECT user_id, diet_type, allergies, disliked_foods, meals_per_day
		FROM diet_preferences
		WHERE user_id = $1
	`

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.DietType,
		pq.Array(&prefs.Allergies),
		pq.Array(&prefs.DislikedFoods),
		&prefs.MealsPerDay,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get diet preferences: %w", err)
	}

	return prefs, nil
}
