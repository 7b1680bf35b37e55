package tools

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// Store interfaces are declared here, where they are consumed. The
// database repositories satisfy them.

type UserStore interface {
	GetWithRelations(ctx context.Context, id uuid.UUID) (*models.UserWithRelations, error)
}

type CheckInStore interface {
	GetByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.CheckIn, error)
	GetLatest(ctx context.Context, userID uuid.UUID) (*models.CheckIn, error)
	GetWeightTrend(ctx context.Context, userID uuid.UUID, days int) (models.WeightTrend, error)
}

type NutritionStore interface {
	GetByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.NutritionDay, error)
	GetStats(ctx context.Context, userID uuid.UUID, from, to time.Time) (models.NutritionStats, error)
}

// ConsentStore reports which consent types a user currently grants.
type ConsentStore interface {
	GetActiveTypes(ctx context.Context, userID uuid.UUID) ([]models.ConsentType, error)
}

// Cache is the tool result cache. The registry treats every cache error
// as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
