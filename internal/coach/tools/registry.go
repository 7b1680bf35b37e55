package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/models"
)

// Definition is the name/description/parameter-schema triple handed to
// the model as a callable function.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Registry holds the available tools and mediates every execution:
// consent gating, result caching, and panic containment.
//
// Consents are held in an in-memory per-user set guarded by a RWMutex
// and synchronized from the durable consent store with SyncConsents.
// Execution checks only the in-memory set, so a store outage never
// blocks internal tools mid-turn.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	ordered  []Tool
	consents map[uuid.UUID]map[models.ConsentType]bool

	cache  Cache
	store  ConsentStore
	logger *zap.Logger
}

// NewRegistry builds an empty registry. cache may be nil to disable
// caching; store may be nil when consents are managed purely in memory.
func NewRegistry(cache Cache, store ConsentStore, logger *zap.Logger) *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		consents: make(map[uuid.UUID]map[models.ConsentType]bool),
		cache:    cache,
		store:    store,
		logger:   logger,
	}
}

// Register adds a tool. Registering the same name twice replaces the
// earlier tool.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; !exists {
		r.ordered = append(r.ordered, tool)
	} else {
		for i, t := range r.ordered {
			if t.Name() == tool.Name() {
				r.ordered[i] = tool
				break
			}
		}
	}
	r.tools[tool.Name()] = tool
}

// GetTool returns the named tool, or nil when unknown.
func (r *Registry) GetTool(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// GrantConsent marks a consent type granted for a user in memory.
func (r *Registry) GrantConsent(userID uuid.UUID, consent models.ConsentType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consents[userID] == nil {
		r.consents[userID] = make(map[models.ConsentType]bool)
	}
	r.consents[userID][consent] = true
}

// RevokeConsent removes a consent type for a user in memory.
func (r *Registry) RevokeConsent(userID uuid.UUID, consent models.ConsentType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.consents[userID], consent)
}

// SyncConsents replaces the user's in-memory consent set with the
// active consents from the durable store. On store failure the previous
// in-memory set is kept.
func (r *Registry) SyncConsents(ctx context.Context, userID uuid.UUID) error {
	if r.store == nil {
		return nil
	}
	types, err := r.store.GetActiveTypes(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load consents: %w", err)
	}

	granted := make(map[models.ConsentType]bool, len(types))
	for _, t := range types {
		granted[t] = true
	}

	r.mu.Lock()
	r.consents[userID] = granted
	r.mu.Unlock()
	return nil
}

// GetAvailableTools returns the tools the user may call: every internal
// tool, plus, when includeExternal is set, external tools whose consent
// is granted.
func (r *Registry) GetAvailableTools(userID uuid.UUID, includeExternal bool) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.ordered))
	for _, t := range r.ordered {
		if t.Category() == CategoryExternal {
			if !includeExternal || !r.hasConsentLocked(userID, t.RequiredConsent()) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// GetToolDefinitions returns the function definitions for the user's
// available tools, in registration order.
func (r *Registry) GetToolDefinitions(userID uuid.UUID, includeExternal bool) []Definition {
	tools := r.GetAvailableTools(userID, includeExternal)
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// ExecuteTool runs one tool call end to end. It never panics and never
// returns an error: every failure mode is folded into the Result so the
// orchestration loop can report it back to the model.
func (r *Registry) ExecuteTool(ctx context.Context, name string, userID uuid.UUID, args map[string]any) Result {
	start := time.Now()

	tool := r.GetTool(name)
	if tool == nil {
		return Result{
			ToolName:  name,
			Error:     fmt.Sprintf("Unknown tool: %s", name),
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}

	if required := tool.RequiredConsent(); required != nil {
		r.mu.RLock()
		granted := r.hasConsentLocked(userID, required)
		r.mu.RUnlock()
		if !granted {
			r.logger.Warn("tool_consent_denied",
				zap.String("tool", name),
				zap.String("user_id", userID.String()),
				zap.String("consent_type", string(*required)),
			)
			return Result{
				ToolName:  name,
				Error:     fmt.Sprintf("User consent required for external tool: %s", name),
				LatencyMs: time.Since(start).Milliseconds(),
			}
		}
	}

	cacheKey := CacheKey(name, userID, args)
	if tool.Cacheable() {
		if data, ok := r.cacheGet(ctx, cacheKey); ok {
			return Result{
				ToolName:  name,
				Success:   true,
				Data:      data,
				Cached:    true,
				LatencyMs: time.Since(start).Milliseconds(),
			}
		}
	}

	data, err := r.run(ctx, tool, userID, args)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		r.logger.Error("tool_execution_failed",
			zap.String("tool", name),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return Result{
			ToolName:  name,
			Error:     err.Error(),
			LatencyMs: latency,
		}
	}

	// Only successful results are cached
	if tool.Cacheable() {
		r.cacheSet(ctx, cacheKey, data, tool.CacheTTL())
	}

	return Result{
		ToolName:  name,
		Success:   true,
		Data:      data,
		LatencyMs: latency,
	}
}

// run executes the tool with panic containment. A panicking tool turns
// into a failed Result instead of taking down the turn.
func (r *Registry) run(ctx context.Context, tool Tool, userID uuid.UUID, args map[string]any) (data any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name(), rec)
		}
	}()
	return tool.Execute(ctx, userID, args)
}

func (r *Registry) hasConsentLocked(userID uuid.UUID, required *models.ConsentType) bool {
	if required == nil {
		return true
	}
	return r.consents[userID][*required]
}

func (r *Registry) cacheGet(ctx context.Context, key string) (any, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false
	}
	return data, true
}

func (r *Registry) cacheSet(ctx context.Context, key string, data any, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, ttl); err != nil {
		r.logger.Debug("tool_cache_write_failed", zap.Error(err))
	}
}
