package coach

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach/tools"
	"github.com/stridefit/coach-api/internal/models"
	"github.com/stridefit/coach-api/internal/nutrition"
)

// scriptedProvider returns canned responses in order, repeating the last
// one once the script is exhausted. Every request is recorded.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*ModelResponse
	requests  []ChatRequest
	calls     int
	err       error
}

func (p *scriptedProvider) Chat(_ context.Context, req ChatRequest) (*ModelResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	idx := p.calls - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req ChatRequest, emit func(StreamEvent)) (*ModelResponse, error) {
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Content != "" {
		emit(TokenEvent(resp.Content))
	}
	return resp, nil
}

// stubTool is a minimal internal tool for orchestration tests.
type stubTool struct {
	name    string
	execute func(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error)
}

func (t *stubTool) Name() string { return t.name }
func (t *stubTool) Description() string { return "stub tool" }
func (t *stubTool) Category() string { return tools.CategoryInternal }
func (t *stubTool) RequiredConsent() *models.ConsentType { return nil }
func (t *stubTool) Cacheable() bool { return false }
func (t *stubTool) CacheTTL() time.Duration { return 0 }
func (t *stubTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (t *stubTool) Execute(ctx context.Context, userID uuid.UUID, args map[string]any) (any, error) {
	return t.execute(ctx, userID, args)
}

func testRegistry(t *testing.T, registered ...tools.Tool) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(nil, nil, zap.NewNop())
	for _, tool := range registered {
		reg.Register(tool)
	}
	return reg
}

func testSession() *models.Session {
	return &models.Session{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Status:    models.SessionActive,
		ModelTier: models.TierFree,
	}
}

func terminalResponse(content string, tokens int) *ModelResponse {
	return &ModelResponse{
		Content:      content,
		FinishReason: "stop",
		Usage:        Usage{PromptTokens: tokens, CompletionTokens: tokens},
	}
}

func toolCallResponse(calls ...ToolCallRequest) *ModelResponse {
	return &ModelResponse{
		ToolCalls:    calls,
		FinishReason: "tool_calls",
		Usage:        Usage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func TestProcessMessage_TerminalResponse(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*ModelResponse{terminalResponse("Hello! How can I help?", 20)}}
	o := NewOrchestrator(provider, testRegistry(t), zap.NewNop(), 0)

	session := testSession()
	result, err := o.ProcessMessage(context.Background(), session.UserID, "hi", &Context{UserID: session.UserID}, session, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.Response != "Hello! How can I help?" {
		t.Errorf("response = %q", result.Response)
	}
	if result.FinishReason != "stop" {
		t.Errorf("finish reason = %q, want stop", result.FinishReason)
	}
	if result.TokensUsed != 40 {
		t.Errorf("tokens used = %d, want 40", result.TokensUsed)
	}
	if len(result.ToolTraces) != 0 {
		t.Errorf("got %d tool traces, want 0", len(result.ToolTraces))
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestProcessMessage_ToolRoundThenAnswer(t *testing.T) {
	t.Parallel()

	tool := &stubTool{
		name: "get_user_profile",
		execute: func(context.Context, uuid.UUID, map[string]any) (any, error) {
			return map[string]any{"display_name": "Sam"}, nil
		},
	}
	provider := &scriptedProvider{responses: []*ModelResponse{
		toolCallResponse(ToolCallRequest{ID: "call_1", Name: "get_user_profile", Arguments: "{}"}),
		terminalResponse("Your name is Sam.", 15),
	}}
	o := NewOrchestrator(provider, testRegistry(t, tool), zap.NewNop(), 0)

	session := testSession()
	result, err := o.ProcessMessage(context.Background(), session.UserID, "what's my name?", &Context{UserID: session.UserID}, session, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.Response != "Your name is Sam." {
		t.Errorf("response = %q", result.Response)
	}
	if result.TokensUsed != 45 {
		t.Errorf("tokens used = %d, want 45", result.TokensUsed)
	}

	if len(result.ToolTraces) != 1 {
		t.Fatalf("got %d tool traces, want 1", len(result.ToolTraces))
	}
	trace := result.ToolTraces[0]
	if trace.Name != "get_user_profile" {
		t.Errorf("trace name = %q", trace.Name)
	}
	if trace.InputSummary != "No parameters" {
		t.Errorf("input summary = %q", trace.InputSummary)
	}
	if !strings.Contains(trace.OutputSummary, "display_name: Sam") {
		t.Errorf("output summary = %q", trace.OutputSummary)
	}

	if len(result.PendingAudit) != 1 {
		t.Fatalf("got %d pending audit entries, want 1", len(result.PendingAudit))
	}
	audit := result.PendingAudit[0]
	if audit.Status != models.ToolCallSuccess {
		t.Errorf("audit status = %q", audit.Status)
	}
	if audit.SessionID != session.ID || audit.UserID != session.UserID {
		t.Error("audit entry not attributed to the session")
	}
	if audit.InputHash == "" {
		t.Error("audit entry missing input hash")
	}

	// Second call must see the assistant tool-call message and the tool
	// result appended to the transcript.
	if provider.calls != 2 {
		t.Fatalf("provider called %d times, want 2", provider.calls)
	}
	second := provider.requests[1].Messages
	assistant := second[len(second)-2]
	toolMsg := second[len(second)-1]
	if assistant.Role != RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Errorf("second-to-last message = %+v, want assistant with tool call", assistant)
	}
	if toolMsg.Role != RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Errorf("last message = %+v, want tool result for call_1", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "Sam") {
		t.Errorf("tool message content = %q", toolMsg.Content)
	}
}

func TestProcessMessage_FailedToolReportedToModel(t *testing.T) {
	t.Parallel()

	tool := &stubTool{
		name: "get_weight_trend",
		execute: func(context.Context, uuid.UUID, map[string]any) (any, error) {
			panic("nil dereference")
		},
	}
	provider := &scriptedProvider{responses: []*ModelResponse{
		toolCallResponse(ToolCallRequest{ID: "call_1", Name: "get_weight_trend", Arguments: "{}"}),
		terminalResponse("I couldn't load your trend data.", 10),
	}}
	o := NewOrchestrator(provider, testRegistry(t, tool), zap.NewNop(), 0)

	session := testSession()
	result, err := o.ProcessMessage(context.Background(), session.UserID, "trend?", &Context{UserID: session.UserID}, session, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.PendingAudit[0].Status != models.ToolCallFailed {
		t.Errorf("audit status = %q, want failed", result.PendingAudit[0].Status)
	}
	if result.PendingAudit[0].ErrorMessage == nil {
		t.Fatal("audit entry missing error message")
	}
	toolMsg := provider.requests[1].Messages[len(provider.requests[1].Messages)-1]
	if !strings.HasPrefix(toolMsg.Content, "Error: ") {
		t.Errorf("tool message content = %q, want Error prefix", toolMsg.Content)
	}
}

func TestProcessMessage_ExhaustsRoundBudget(t *testing.T) {
	t.Parallel()

	tool := &stubTool{
		name: "get_recent_checkins",
		execute: func(context.Context, uuid.UUID, map[string]any) (any, error) {
			return map[string]any{"count": 0}, nil
		},
	}
	// The model never stops asking for tools.
	provider := &scriptedProvider{responses: []*ModelResponse{
		toolCallResponse(ToolCallRequest{ID: "call_1", Name: "get_recent_checkins", Arguments: "{}"}),
	}}
	o := NewOrchestrator(provider, testRegistry(t, tool), zap.NewNop(), 3)

	session := testSession()
	result, err := o.ProcessMessage(context.Background(), session.UserID, "loop", &Context{UserID: session.UserID}, session, nil)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if result.FinishReason != FinishMaxIterations {
		t.Errorf("finish reason = %q, want %q", result.FinishReason, FinishMaxIterations)
	}
	if result.Response != exhaustedApology {
		t.Errorf("response = %q", result.Response)
	}
	if provider.calls != 3 {
		t.Errorf("provider called %d times, want 3", provider.calls)
	}
	if len(result.ToolTraces) != 3 {
		t.Errorf("got %d tool traces, want 3", len(result.ToolTraces))
	}
}

func TestProcessMessage_HistoryBounded(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*ModelResponse{terminalResponse("ok", 1)}}
	o := NewOrchestrator(provider, testRegistry(t), zap.NewNop(), 0)

	var history []models.HistoryEntry
	for i := 0; i < 10; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, models.HistoryEntry{Role: role, Content: "msg"})
	}

	session := testSession()
	if _, err := o.ProcessMessage(context.Background(), session.UserID, "hi", &Context{UserID: session.UserID}, session, history); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	// system + 6 history + user
	got := provider.requests[0].Messages
	if len(got) != 8 {
		t.Fatalf("got %d messages, want 8", len(got))
	}
	if got[0].Role != RoleSystem {
		t.Errorf("first message role = %q, want system", got[0].Role)
	}
	if got[len(got)-1].Role != RoleUser || got[len(got)-1].Content != "hi" {
		t.Errorf("last message = %+v, want the user turn", got[len(got)-1])
	}
}

func TestProcessMessage_SystemPromptCarriesContext(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*ModelResponse{terminalResponse("ok", 1)}}
	o := NewOrchestrator(provider, testRegistry(t), zap.NewNop(), 0)

	weight := 80.0
	cc := &Context{
		UserID:      uuid.New(),
		WeightTrend: &models.WeightTrend{CurrentWeightKg: &weight},
	}
	session := testSession()
	if _, err := o.ProcessMessage(context.Background(), session.UserID, "hi", cc, session, nil); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	system := provider.requests[0].Messages[0].Content
	if !strings.Contains(system, "## User Context") {
		t.Error("system prompt missing user context section")
	}
	if !strings.Contains(system, "Weight: 80 kg") {
		t.Errorf("system prompt missing weight line:\n%s", system)
	}
}

func TestProcessMessageStream_EmitsToolLifecycle(t *testing.T) {
	t.Parallel()

	tool := &stubTool{
		name: "get_user_profile",
		execute: func(context.Context, uuid.UUID, map[string]any) (any, error) {
			return map[string]any{"display_name": "Sam"}, nil
		},
	}
	provider := &scriptedProvider{responses: []*ModelResponse{
		toolCallResponse(ToolCallRequest{ID: "call_1", Name: "get_user_profile", Arguments: "{}"}),
		terminalResponse("Your name is Sam.", 15),
	}}
	o := NewOrchestrator(provider, testRegistry(t, tool), zap.NewNop(), 0)

	var events []StreamEvent
	session := testSession()
	result, err := o.ProcessMessageStream(context.Background(), session.UserID, "hi", &Context{UserID: session.UserID}, session, nil, func(ev StreamEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("ProcessMessageStream: %v", err)
	}
	if result.Response != "Your name is Sam." {
		t.Errorf("response = %q", result.Response)
	}

	var types []string
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	want := []string{EventToolStart, EventToolEnd, EventToken}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event types = %v, want %v", types, want)
		}
	}

	end := events[1]
	if end.Data["tool"] != "get_user_profile" {
		t.Errorf("tool_end tool = %v", end.Data["tool"])
	}
	if end.Data["success"] != true {
		t.Errorf("tool_end success = %v, want true", end.Data["success"])
	}
}

func TestProcessMessageStream_SameRoundBoundAsSync(t *testing.T) {
	t.Parallel()

	tool := &stubTool{
		name: "get_recent_checkins",
		execute: func(context.Context, uuid.UUID, map[string]any) (any, error) {
			return map[string]any{"count": 0}, nil
		},
	}
	provider := &scriptedProvider{responses: []*ModelResponse{
		toolCallResponse(ToolCallRequest{ID: "call_1", Name: "get_recent_checkins", Arguments: "{}"}),
	}}
	o := NewOrchestrator(provider, testRegistry(t, tool), zap.NewNop(), 2)

	var tokens []string
	session := testSession()
	result, err := o.ProcessMessageStream(context.Background(), session.UserID, "loop", &Context{UserID: session.UserID}, session, nil, func(ev StreamEvent) {
		if ev.Type == EventToken {
			tokens = append(tokens, ev.Data["text"].(string))
		}
	})
	if err != nil {
		t.Fatalf("ProcessMessageStream: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
	if result.FinishReason != FinishMaxIterations {
		t.Errorf("finish reason = %q, want %q", result.FinishReason, FinishMaxIterations)
	}
	if len(tokens) == 0 || tokens[len(tokens)-1] != exhaustedApology {
		t.Errorf("apology not emitted as final token: %v", tokens)
	}
}

func TestProcessMessageStream_CancelledContext(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*ModelResponse{terminalResponse("ok", 1)}}
	o := NewOrchestrator(provider, testRegistry(t), zap.NewNop(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := testSession()
	_, err := o.ProcessMessageStream(ctx, session.UserID, "hi", &Context{UserID: session.UserID}, session, nil, func(StreamEvent) {})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times after cancellation, want 0", provider.calls)
	}
}

func TestGeneratePlan_ParsesModelJSON(t *testing.T) {
	t.Parallel()

	content := `Here is your plan:
{"daily_targets": {"calories": 1850, "protein_g": 140, "carbs_g": 180, "fat_g": 60},
 "focus_areas": ["Protein intake", "Sleep"],
 "recommendations": ["Prep meals on Sunday", "Walk after lunch"]}`
	provider := &scriptedProvider{responses: []*ModelResponse{terminalResponse(content, 50)}}
	o := NewOrchestrator(provider, testRegistry(t), zap.NewNop(), 0)

	cc := &Context{
		UserID:  uuid.New(),
		Targets: &nutrition.MacroTargets{TargetCalories: 2000, ProteinG: 150, CarbsG: 200, FatG: 70},
	}
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	plan, err := o.GeneratePlan(context.Background(), cc.UserID, cc, start, nil)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if plan.DailyTargets.Calories != 1850 || plan.DailyTargets.ProteinG != 140 {
		t.Errorf("daily targets = %+v", plan.DailyTargets)
	}
	if len(plan.FocusAreas) != 2 || plan.FocusAreas[0] != "Protein intake" {
		t.Errorf("focus areas = %v", plan.FocusAreas)
	}
	if plan.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", plan.Confidence)
	}
	if !plan.WeekStart.Equal(start) {
		t.Errorf("week start = %v", plan.WeekStart)
	}
}

func TestGeneratePlan_FallbackOnMalformedResponse(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*ModelResponse{terminalResponse("Sorry, I can't format that.", 10)}}
	o := NewOrchestrator(provider, testRegistry(t), zap.NewNop(), 0)

	cc := &Context{UserID: uuid.New()}
	plan, err := o.GeneratePlan(context.Background(), cc.UserID, cc, time.Now(), nil)
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if plan.DailyTargets.Calories != 2000 || plan.DailyTargets.ProteinG != 150 {
		t.Errorf("daily targets = %+v, want defaults", plan.DailyTargets)
	}
	if len(plan.FocusAreas) != 2 || plan.FocusAreas[0] != "Consistent check-ins" {
		t.Errorf("focus areas = %v, want fallback", plan.FocusAreas)
	}
	if len(plan.Recommendations) != 2 {
		t.Errorf("recommendations = %v, want fallback", plan.Recommendations)
	}
	if plan.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", plan.Confidence)
	}
}

func TestGeneratePlan_TargetsFromContextWhenModelOmitsThem(t *testing.T) {
	t.Parallel()

	content := `{"focus_areas": ["Hydration"], "recommendations": ["Drink water"]}`
	provider := &scriptedProvider{responses: []*ModelResponse{terminalResponse(content, 10)}}
	o := NewOrchestrator(provider, testRegistry(t), zap.NewNop(), 0)

	cc := &Context{
		UserID:  uuid.New(),
		Targets: &nutrition.MacroTargets{TargetCalories: 2200, ProteinG: 160, CarbsG: 220, FatG: 75},
	}
	plan, err := o.GeneratePlan(context.Background(), cc.UserID, cc, time.Now(), map[string]any{"diet": "vegetarian"})
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if plan.DailyTargets.Calories != 2200 || plan.DailyTargets.FatG != 75 {
		t.Errorf("daily targets = %+v, want context targets", plan.DailyTargets)
	}

	// The preferences must reach the prompt.
	prompt := provider.requests[0].Messages[1].Content
	if !strings.Contains(prompt, "vegetarian") {
		t.Error("preferences not included in plan prompt")
	}
}

func TestSummarizeInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"empty", map[string]any{}, "No parameters"},
		{"single", map[string]any{"days": 14}, "days=14"},
		{"sorted", map[string]any{"b": 2, "a": 1}, "a=1, b=2"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := summarizeInput(tt.args); got != tt.want {
				t.Errorf("summarizeInput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data any
		want string
	}{
		{"nil", nil, "No data"},
		{"scalar fields", map[string]any{"weight": 80.5, "days": 14}, "days: 14, weight: 80.5"},
		{"collections collapsed", map[string]any{"points": []any{1, 2, 3}}, "points: 3 items"},
		{"nil fields skipped", map[string]any{"a": nil, "b": "x"}, "b: x"},
		{"non-map", "plain text", "plain text"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := summarizeOutput(tt.data); got != tt.want {
				t.Errorf("summarizeOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarizeOutput_LimitsToFiveFields(t *testing.T) {
	t.Parallel()

	data := map[string]any{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5, "f": 6, "g": 7}
	got := summarizeOutput(data)
	if strings.Count(got, ":") != 5 {
		t.Errorf("summarizeOutput() = %q, want 5 fields", got)
	}
}

func TestDailyTargetFromMap(t *testing.T) {
	t.Parallel()

	fallback := DailyTarget{Calories: 2000, ProteinG: 150, CarbsG: 200, FatG: 70}

	tests := []struct {
		name string
		m    map[string]any
		want DailyTarget
	}{
		{
			"all keys",
			map[string]any{"calories": 1800.0, "protein_g": 130.0, "carbs_g": 170.0, "fat_g": 55.0},
			DailyTarget{Calories: 1800, ProteinG: 130, CarbsG: 170, FatG: 55},
		},
		{
			"target_calories alias",
			map[string]any{"target_calories": 1900.0},
			DailyTarget{Calories: 1900, ProteinG: 150, CarbsG: 200, FatG: 70},
		},
		{
			"non-numeric values keep fallback",
			map[string]any{"calories": "lots", "protein_g": 120.0},
			DailyTarget{Calories: 2000, ProteinG: 120, CarbsG: 200, FatG: 70},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := dailyTargetFromMap(tt.m, fallback); got != tt.want {
				t.Errorf("dailyTargetFromMap() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"surrounded by prose", `Sure: {"a": 1} hope that helps`, `{"a": 1}`},
		{"empty", "", "{}"},
		{"no object", "no json here", "no json here"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := extractJSONObject(tt.content); got != tt.want {
				t.Errorf("extractJSONObject(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
