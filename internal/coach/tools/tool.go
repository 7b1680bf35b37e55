// Package tools implements the coach's tool registry: typed data-access
// tools the model can call during a turn, with per-tool caching and
// consent gating for anything that leaves the platform.
package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stridefit/coach-api/internal/models"
)

// Tool categories. Internal tools read platform data only; external
// tools reach third-party services and require consent.
const (
	CategoryInternal = "internal"
	CategoryExternal = "external"
)

// Tool is one callable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Category() string
	// RequiredConsent is nil for tools that need no consent.
	RequiredConsent() *models.ConsentType
	Cacheable() bool
	CacheTTL() time.Duration
	// Schema returns the JSON schema for the tool's parameters, in the
	// shape the chat completions API expects.
	Schema() map[string]any
	Execute(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error)
}

// Result is the outcome of one tool execution. Data is nil on failure.
type Result struct {
	ToolName  string `json:"tool_name"`
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Cached    bool   `json:"cached"`
	LatencyMs int64  `json:"latency_ms"`
}

// CacheKey derives a deterministic cache key from the tool name, user,
// and arguments. json.Marshal sorts map keys, so equal argument maps
// always produce the same key.
func CacheKey(name string, userID uuid.UUID, args map[string]any) string {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", name, userID, argsJSON)))
	return hex.EncodeToString(sum[:])
}

// InputHash is the audit-log hash of a tool's arguments, matching
// CacheKey's canonical JSON form.
func InputHash(args map[string]any) string {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}
	sum := sha256.Sum256(argsJSON)
	return hex.EncodeToString(sum[:])
}

// intArg reads an integer argument, clamping to [min, max]. JSON
// numbers arrive as float64.
func intArg(args map[string]any, key string, def, min, max int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	var n int
	switch x := v.(type) {
	case float64:
		n = int(x)
	case int:
		n = x
	default:
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func floatArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}
