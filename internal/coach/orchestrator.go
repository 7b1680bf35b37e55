package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach/tools"
	"github.com/stridefit/coach-api/internal/models"
)

const (
	// DefaultMaxToolRounds bounds the tool-calling loop. The same bound
	// applies to the synchronous and streaming paths.
	DefaultMaxToolRounds = 5

	// maxHistoryMessages caps the conversation history included per
	// turn: 3 user/assistant rounds. This is a token-economy
	// constraint, not a UX choice.
	maxHistoryMessages = 6

	maxInputSummaryLen  = 500
	maxOutputSummaryLen = 1000
	maxErrorMessageLen  = 500

	// FinishMaxIterations is the finish reason reported when the loop
	// exhausts its round budget without a terminal response.
	FinishMaxIterations = "max-iterations"

	exhaustedApology = "I apologize, but I'm having trouble processing your request. Please try again."
)

// ToolTrace is one entry in the per-turn explainability trace.
type ToolTrace struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	InputSummary  string `json:"input_summary"`
	OutputSummary string `json:"output_summary"`
	LatencyMs     int64  `json:"latency_ms"`
	Cached        bool   `json:"cached"`
}

// TurnResult is the outcome of one orchestrated turn. PendingAudit
// carries the tool-call audit records for the caller to persist; the
// orchestrator itself never writes them.
type TurnResult struct {
	Response     string
	ToolTraces   []ToolTrace
	TokensUsed   int
	FinishReason string
	PendingAudit []*models.ToolCallLog
}

// WeeklyPlan is the structured output of plan generation.
type WeeklyPlan struct {
	PlanID          uuid.UUID   `json:"plan_id"`
	WeekStart       time.Time   `json:"week_start"`
	DailyTargets    DailyTarget `json:"daily_targets"`
	FocusAreas      []string    `json:"focus_areas"`
	Recommendations []string    `json:"recommendations"`
	Confidence      float64     `json:"confidence"`
}

// DailyTarget is the per-day calorie and macro targets on a plan.
type DailyTarget struct {
	Calories int `json:"calories"`
	ProteinG int `json:"protein_g"`
	CarbsG   int `json:"carbs_g"`
	FatG     int `json:"fat_g"`
}

// Orchestrator drives the tool-calling conversation loop. All
// collaborators are injected at construction; the orchestrator holds no
// lazily-built state.
type Orchestrator struct {
	provider  ModelProvider
	registry  *tools.Registry
	logger    *zap.Logger
	maxRounds int
}

// NewOrchestrator wires the orchestrator. maxRounds <= 0 selects the
// default bound.
func NewOrchestrator(provider ModelProvider, registry *tools.Registry, logger *zap.Logger, maxRounds int) *Orchestrator {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	return &Orchestrator{
		provider:  provider,
		registry:  registry,
		logger:    logger,
		maxRounds: maxRounds,
	}
}

// ProcessMessage runs one synchronous turn: system prompt plus bounded
// history plus the user message, then up to maxRounds model calls with
// tool execution between them.
func (o *Orchestrator) ProcessMessage(ctx context.Context, userID uuid.UUID, message string, cc *Context, session *models.Session, history []models.HistoryEntry) (*TurnResult, error) {
	settings := SettingsForTier(session.ModelTier)
	messages := o.buildMessages(message, cc, history)
	defs := o.toolDefinitions(ctx, userID)

	result := &TurnResult{}

	for round := 0; round < o.maxRounds; round++ {
		resp, err := o.provider.Chat(ctx, ChatRequest{
			Messages: messages,
			Tools:    defs,
			Settings: settings,
		})
		if err != nil {
			return nil, err
		}

		result.TokensUsed += resp.Usage.PromptTokens + resp.Usage.CompletionTokens

		if len(resp.ToolCalls) == 0 || resp.FinishReason != "tool_calls" {
			result.Response = resp.Content
			result.FinishReason = resp.FinishReason
			return result, nil
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			trace, toolMsg, audit := o.executeToolCall(ctx, userID, session.ID, call)
			result.ToolTraces = append(result.ToolTraces, trace)
			result.PendingAudit = append(result.PendingAudit, audit)
			messages = append(messages, toolMsg)
		}
	}

	// Fail closed: budget exhausted without a terminal response
	o.logger.Warn("tool_loop_exhausted",
		zap.String("user_id", userID.String()),
		zap.String("session_id", session.ID.String()),
		zap.Int("rounds", o.maxRounds),
	)
	result.Response = exhaustedApology
	result.FinishReason = FinishMaxIterations
	return result, nil
}

// ProcessMessageStream runs one streamed turn. Prompt construction and
// tool semantics match ProcessMessage, including the round bound; text
// deltas and tool lifecycle events are forwarded through emit as they
// happen. The returned result carries the trace and pending audit
// records exactly like the synchronous path.
func (o *Orchestrator) ProcessMessageStream(ctx context.Context, userID uuid.UUID, message string, cc *Context, session *models.Session, history []models.HistoryEntry, emit func(StreamEvent)) (*TurnResult, error) {
	settings := SettingsForTier(session.ModelTier)
	messages := o.buildMessages(message, cc, history)
	defs := o.toolDefinitions(ctx, userID)

	result := &TurnResult{}

	for round := 0; round < o.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := o.provider.ChatStream(ctx, ChatRequest{
			Messages: messages,
			Tools:    defs,
			Settings: settings,
		}, emit)
		if err != nil {
			return nil, err
		}

		result.TokensUsed += resp.Usage.PromptTokens + resp.Usage.CompletionTokens

		if len(resp.ToolCalls) == 0 || resp.FinishReason != "tool_calls" {
			result.Response = resp.Content
			result.FinishReason = resp.FinishReason
			return result, nil
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			emit(StreamEvent{Type: EventToolStart, Data: map[string]any{"tool": call.Name}})

			trace, toolMsg, audit := o.executeToolCall(ctx, userID, session.ID, call)
			result.ToolTraces = append(result.ToolTraces, trace)
			result.PendingAudit = append(result.PendingAudit, audit)
			messages = append(messages, toolMsg)

			emit(StreamEvent{Type: EventToolEnd, Data: map[string]any{
				"tool":       call.Name,
				"success":    audit.Status == models.ToolCallSuccess,
				"latency_ms": trace.LatencyMs,
			}})
		}
	}

	o.logger.Warn("tool_loop_exhausted",
		zap.String("user_id", userID.String()),
		zap.String("session_id", session.ID.String()),
		zap.Int("rounds", o.maxRounds),
	)
	emit(TokenEvent(exhaustedApology))
	result.Response = exhaustedApology
	result.FinishReason = FinishMaxIterations
	return result, nil
}

// GeneratePlan makes one tool-free model call asking for a structured
// weekly plan. The response is parsed leniently: on malformed JSON the
// plan falls back to the context's calculated targets plus generic
// recommendations, with reduced confidence.
func (o *Orchestrator) GeneratePlan(ctx context.Context, userID uuid.UUID, cc *Context, startDate time.Time, preferences map[string]any) (*WeeklyPlan, error) {
	settings := SettingsForTier(models.TierStandard)

	prefsText := "None specified"
	if len(preferences) > 0 {
		if raw, err := json.Marshal(preferences); err == nil {
			prefsText = string(raw)
		}
	}

	userPrompt := fmt.Sprintf(`Based on this user's data, create a weekly plan:

%s

Additional preferences: %s

Please provide:
1. Daily calorie and macro targets (as JSON)
2. 2-3 focus areas for the week
3. 3-5 specific recommendations

Format your response as JSON with keys: daily_targets, focus_areas, recommendations
`, cc.ContextSummary(), prefsText)

	resp, err := o.provider.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: planSystemPrompt},
			{Role: RoleUser, Content: userPrompt},
		},
		Settings: settings,
	})
	if err != nil {
		return nil, err
	}

	var planData struct {
		DailyTargets    map[string]any `json:"daily_targets"`
		FocusAreas      []string       `json:"focus_areas"`
		Recommendations []string       `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(resp.Content)), &planData); err != nil {
		o.logger.Warn("plan_response_not_json",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		planData.FocusAreas = []string{"Consistent check-ins", "Meeting protein targets"}
		planData.Recommendations = []string{"Log your weight daily", "Focus on protein with each meal"}
	}

	targets := DailyTarget{Calories: 2000, ProteinG: 150, CarbsG: 200, FatG: 70}
	if len(planData.DailyTargets) > 0 {
		targets = dailyTargetFromMap(planData.DailyTargets, targets)
	} else if cc.Targets != nil {
		targets = DailyTarget{
			Calories: cc.Targets.TargetCalories,
			ProteinG: cc.Targets.ProteinG,
			CarbsG:   cc.Targets.CarbsG,
			FatG:     cc.Targets.FatG,
		}
	}

	confidence := 0.5
	if cc.Targets != nil {
		confidence = 0.8
	}

	return &WeeklyPlan{
		PlanID:          uuid.New(),
		WeekStart:       startDate,
		DailyTargets:    targets,
		FocusAreas:      planData.FocusAreas,
		Recommendations: planData.Recommendations,
		Confidence:      confidence,
	}, nil
}

// dailyTargetFromMap reads model-provided daily targets, keeping the
// fallback value for any key that is missing or not numeric.
// toolDefinitions refreshes the user's consents from the durable store
// and returns the tool definitions offered to the model. A sync failure
// keeps the previous consent set, so a flaky consent store narrows the
// tool surface instead of widening it.
func (o *Orchestrator) toolDefinitions(ctx context.Context, userID uuid.UUID) []tools.Definition {
	if err := o.registry.SyncConsents(ctx, userID); err != nil {
		o.logger.Warn("consent_sync_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	return o.registry.GetToolDefinitions(userID, false)
}

func dailyTargetFromMap(m map[string]any, fallback DailyTarget) DailyTarget {
	out := fallback
	if v, ok := numericValue(m["calories"]); ok {
		out.Calories = v
	} else if v, ok := numericValue(m["target_calories"]); ok {
		out.Calories = v
	}
	if v, ok := numericValue(m["protein_g"]); ok {
		out.ProteinG = v
	}
	if v, ok := numericValue(m["carbs_g"]); ok {
		out.CarbsG = v
	}
	if v, ok := numericValue(m["fat_g"]); ok {
		out.FatG = v
	}
	return out
}

func numericValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

// buildMessages assembles the turn's message array: system prompt with
// the compact context digest, at most the last six history entries in
// original order, then the user message.
func (o *Orchestrator) buildMessages(userMessage string, cc *Context, history []models.HistoryEntry) []Message {
	systemContent := coachSystemPrompt
	if summary := cc.CompactSummary(); summary != "" {
		systemContent += "\n\n## User Context\n" + summary
	}

	messages := []Message{{Role: RoleSystem, Content: systemContent}}

	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	for _, entry := range history {
		messages = append(messages, Message{Role: entry.Role, Content: entry.Content})
	}

	return append(messages, Message{Role: RoleUser, Content: userMessage})
}

// executeToolCall runs one requested call and produces the trace entry,
// the tool-role message for the transcript, and the pending audit
// record.
func (o *Orchestrator) executeToolCall(ctx context.Context, userID, sessionID uuid.UUID, call ToolCallRequest) (ToolTrace, Message, *models.ToolCallLog) {
	args := call.ParseArguments()

	start := time.Now()
	result := o.registry.ExecuteTool(ctx, call.Name, userID, args)
	latencyMs := time.Since(start).Milliseconds()

	tool := o.registry.GetTool(call.Name)
	description := "Unknown tool"
	category := "unknown"
	if tool != nil {
		description = tool.Description()
		category = tool.Category()
	}

	inputSummary := truncate(summarizeInput(args), maxInputSummaryLen)
	outputSummary := result.Error
	if result.Success {
		outputSummary = truncate(summarizeOutput(result.Data), maxOutputSummaryLen)
	}

	trace := ToolTrace{
		Name:          call.Name,
		Description:   description,
		InputSummary:  inputSummary,
		OutputSummary: outputSummary,
		LatencyMs:     latencyMs,
		Cached:        result.Cached,
	}

	status := models.ToolCallSuccess
	var errMsg *string
	if !result.Success {
		status = models.ToolCallFailed
		msg := truncate(result.Error, maxErrorMessageLen)
		errMsg = &msg
	}

	audit := &models.ToolCallLog{
		SessionID:     sessionID,
		UserID:        userID,
		ToolName:      call.Name,
		ToolCategory:  category,
		InputHash:     tools.InputHash(args),
		InputSummary:  inputSummary,
		OutputSummary: outputSummary,
		Status:        status,
		ErrorMessage:  errMsg,
		LatencyMs:     latencyMs,
		Cached:        result.Cached,
	}

	content := "Error: " + result.Error
	if result.Success {
		if raw, err := json.Marshal(result.Data); err == nil {
			content = string(raw)
		} else {
			content = "Error: failed to encode tool result"
		}
	}
	toolMsg := Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		Name:       call.Name,
	}

	return trace, toolMsg, audit
}

// summarizeInput renders tool arguments as "k=v" pairs in key order.
func summarizeInput(args map[string]any) string {
	if len(args) == 0 {
		return "No parameters"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, ", ")
}

// summarizeOutput renders a compact human-readable digest of a tool
// result: for objects, the first five non-nil fields in key order, with
// nested collections collapsed to item counts.
func summarizeOutput(data any) string {
	if data == nil {
		return "No data"
	}

	if m, ok := data.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			if len(parts) >= 5 {
				break
			}
			v := m[k]
			if v == nil {
				continue
			}
			switch val := v.(type) {
			case []any:
				parts = append(parts, fmt.Sprintf("%s: %d items", k, len(val)))
			case map[string]any:
				parts = append(parts, fmt.Sprintf("%s: %d items", k, len(val)))
			default:
				parts = append(parts, fmt.Sprintf("%s: %v", k, val))
			}
		}
		return strings.Join(parts, ", ")
	}

	return truncate(fmt.Sprintf("%v", data), 200)
}

// extractJSONObject trims any prose surrounding the first JSON object
// in a model response.
func extractJSONObject(content string) string {
	if content == "" {
		return "{}"
	}
	if content[0] == '{' {
		return content
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		return content[start : end+1]
	}
	return content
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
