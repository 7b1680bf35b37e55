package middleware

import (
	"context"

	"github.com/google/uuid"
)

// WithUserID injects an authenticated user ID into a context. Exported
// so handler tests can bypass the Auth middleware.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
