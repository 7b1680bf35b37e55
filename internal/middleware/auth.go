// Package middleware provides the HTTP middleware chain for the coach
// API: bearer-token auth, request logging, rate limiting, CORS,
// security headers, timeouts, and panic recovery.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// UserID extracts the authenticated user's ID from the request context.
func UserID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(userIDContextKey).(uuid.UUID)
	return id, ok
}

// jwksCache holds one fetched key set with its expiry.
type jwksCache struct {
	mu      sync.RWMutex
	keys    jwk.Set
	expires time.Time
}

// TokenVerifier verifies bearer JWTs against a JWKS endpoint. Keys are
// cached for an hour; a fetch failure falls back to the stale set if
// one exists.
type TokenVerifier struct {
	jwksURL string
	issuer  string
	ttl     time.Duration
	client  *http.Client
	cache   jwksCache
}

// NewTokenVerifier creates a verifier for the given JWKS URL and
// expected issuer.
func NewTokenVerifier(jwksURL, issuer string) *TokenVerifier {
	return &TokenVerifier{
		jwksURL: jwksURL,
		issuer:  issuer,
		ttl:     time.Hour,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify validates the token signature, expiry, and issuer, and
// returns the subject claim.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	keys, err := v.keySet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString), jwt.WithKeySet(keys), jwt.WithValidate(true))
	if err != nil {
		return "", fmt.Errorf("failed to parse/verify token: %w", err)
	}

	if v.issuer != "" && token.Issuer() != v.issuer {
		return "", fmt.Errorf("token issuer mismatch: expected %s, got %s", v.issuer, token.Issuer())
	}
	if token.Subject() == "" {
		return "", fmt.Errorf("token missing subject claim")
	}
	return token.Subject(), nil
}

func (v *TokenVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	v.cache.mu.RLock()
	if v.cache.keys != nil && time.Now().Before(v.cache.expires) {
		keys := v.cache.keys
		v.cache.mu.RUnlock()
		return keys, nil
	}
	stale := v.cache.keys
	v.cache.mu.RUnlock()

	keys, err := v.fetchJWKS(ctx)
	if err != nil {
		if stale != nil {
			return stale, nil
		}
		return nil, err
	}

	v.cache.mu.Lock()
	v.cache.keys = keys
	v.cache.expires = time.Now().Add(v.ttl)
	v.cache.mu.Unlock()
	return keys, nil
}

func (v *TokenVerifier) fetchJWKS(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return keys, nil
}

// Auth validates the bearer token on every request and stores the
// caller's user ID in the context. The subject claim must be the user's
// UUID; account provisioning happens outside this service.
func Auth(verifier *TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondAuthError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondAuthError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			subject, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				logger.Debug("token_verification_failed", zap.Error(err))
				respondAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			userID, err := uuid.Parse(subject)
			if err != nil {
				respondAuthError(w, http.StatusUnauthorized, "Invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
