package coach

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/coach/policy"
	"github.com/stridefit/coach-api/internal/models"
)

// maxSessionHistory caps the rolling conversation history stored on a
// session.
const maxSessionHistory = 20

// SessionStore persists coach conversation sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
}

// AuditSink persists tool-call audit records produced during a turn.
type AuditSink interface {
	InsertToolCall(ctx context.Context, log *models.ToolCallLog) error
}

// DataGap names a missing piece of user data that would improve the
// coach's answers.
type DataGap struct {
	Field       string `json:"field"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// ChatResponse is the API-facing result of one synchronous chat turn.
type ChatResponse struct {
	Message    string      `json:"message"`
	SessionID  uuid.UUID   `json:"session_id"`
	ToolTrace  []ToolTrace `json:"tool_trace,omitempty"`
	Confidence float64     `json:"confidence"`
	DataGaps   []DataGap   `json:"data_gaps,omitempty"`
	TokensUsed int         `json:"tokens_used"`
}

// Insight is one deterministic, data-backed observation.
type Insight struct {
	Type        string         `json:"type"` // trend, achievement, recommendation, warning
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Action      string         `json:"action,omitempty"`
}

// InsightsResponse bundles the computed insights with a data quality
// score.
type InsightsResponse struct {
	GeneratedAt      time.Time `json:"generated_at"`
	Insights         []Insight `json:"insights"`
	DataQualityScore float64   `json:"data_quality_score"`
}

// Service owns the chat lifecycle: session management, safety checks
// around the orchestrated turn, and post-turn bookkeeping.
type Service struct {
	contexts     *ContextBuilder
	engine       PolicyEngine
	orchestrator *Orchestrator
	sessions     SessionStore
	audit        AuditSink
	logger       *zap.Logger
}

// PolicyEngine is the safety gate applied around every turn.
type PolicyEngine interface {
	CheckInput(ctx context.Context, input string, uc policy.UserContext) policy.Result
	CheckOutput(ctx context.Context, output string, uc policy.UserContext) policy.Result
}

// NewService wires the coach service.
func NewService(contexts *ContextBuilder, engine PolicyEngine, orchestrator *Orchestrator, sessions SessionStore, audit AuditSink, logger *zap.Logger) *Service {
	return &Service{
		contexts:     contexts,
		engine:       engine,
		orchestrator: orchestrator,
		sessions:     sessions,
		audit:        audit,
		logger:       logger,
	}
}

// Chat processes one synchronous chat turn.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID, message string, sessionID *uuid.UUID, tier models.ModelTier) (*ChatResponse, error) {
	session, err := s.getOrCreateSession(ctx, userID, sessionID, tier)
	if err != nil {
		return nil, err
	}

	cc, err := s.contexts.Build(ctx, userID, BuildOptions{})
	if err != nil {
		return nil, err
	}
	policyCtx := cc.ToPolicyContext()

	// Input gate: a blocking or flagging policy answers the turn
	// without any model call.
	inputCheck := s.engine.CheckInput(ctx, message, policyCtx)
	if msg, blocked := safetyMessage(inputCheck); blocked {
		return &ChatResponse{
			Message:    msg,
			SessionID:  session.ID,
			Confidence: 1.0,
			TokensUsed: 0,
		}, nil
	}

	result, err := s.orchestrator.ProcessMessage(ctx, userID, message, cc, session, session.History)
	if err != nil {
		return nil, err
	}

	// Output gate runs on the final model response.
	outputCheck := s.engine.CheckOutput(ctx, result.Response, policyCtx)
	finalResponse := result.Response
	if !outputCheck.Passed && outputCheck.Message != "" {
		finalResponse = outputCheck.Message
	} else if outputCheck.ModifiedContent != "" {
		finalResponse = outputCheck.ModifiedContent
	}

	s.persistAudit(ctx, result.PendingAudit)

	if err := s.recordTurn(ctx, session, message, finalResponse, result.TokensUsed); err != nil {
		// The response is already computed; losing bookkeeping is not
		// worth failing the turn.
		s.logger.Error("failed_to_record_turn",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	return &ChatResponse{
		Message:    finalResponse,
		SessionID:  session.ID,
		ToolTrace:  result.ToolTraces,
		Confidence: s.calculateConfidence(cc),
		DataGaps:   s.identifyDataGaps(cc),
		TokensUsed: result.TokensUsed,
	}, nil
}

// ChatStream processes one streamed chat turn, forwarding events
// through emit. A blocked input is emitted as a single token followed
// by done.
func (s *Service) ChatStream(ctx context.Context, userID uuid.UUID, message string, sessionID *uuid.UUID, tier models.ModelTier, emit func(StreamEvent)) error {
	session, err := s.getOrCreateSession(ctx, userID, sessionID, tier)
	if err != nil {
		return err
	}

	cc, err := s.contexts.Build(ctx, userID, BuildOptions{})
	if err != nil {
		return err
	}
	policyCtx := cc.ToPolicyContext()

	inputCheck := s.engine.CheckInput(ctx, message, policyCtx)
	if msg, blocked := safetyMessage(inputCheck); blocked {
		emit(TokenEvent(msg))
		emit(doneEvent(session.ID, "stop", 0))
		return nil
	}

	result, err := s.orchestrator.ProcessMessageStream(ctx, userID, message, cc, session, session.History, emit)
	if err != nil {
		return err
	}

	s.persistAudit(ctx, result.PendingAudit)

	if err := s.recordTurn(ctx, session, message, result.Response, result.TokensUsed); err != nil {
		s.logger.Error("failed_to_record_turn",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	emit(doneEvent(session.ID, result.FinishReason, result.TokensUsed))
	return nil
}

// GenerateWeeklyPlan builds the user's context and delegates to the
// orchestrator's plan path.
func (s *Service) GenerateWeeklyPlan(ctx context.Context, userID uuid.UUID, startDate time.Time, preferences map[string]any) (*WeeklyPlan, error) {
	cc, err := s.contexts.Build(ctx, userID, BuildOptions{})
	if err != nil {
		return nil, err
	}
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}
	return s.orchestrator.GeneratePlan(ctx, userID, cc, startDate, preferences)
}

// GetActiveSession returns the user's active session with its
// transcript, or nil when none is active.
func (s *Service) GetActiveSession(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	return s.sessions.GetActiveByUserID(ctx, userID)
}

// GetInsights computes deterministic insights from the user's context.
// No model call is involved.
func (s *Service) GetInsights(ctx context.Context, userID uuid.UUID) (*InsightsResponse, error) {
	cc, err := s.contexts.Build(ctx, userID, BuildOptions{})
	if err != nil {
		return nil, err
	}

	var insights []Insight
	insights = append(insights, weightTrendInsights(cc)...)
	insights = append(insights, adherenceInsights(cc)...)
	insights = append(insights, nutritionInsights(cc)...)

	return &InsightsResponse{
		GeneratedAt:      time.Now().UTC(),
		Insights:         insights,
		DataQualityScore: calculateDataQuality(cc),
	}, nil
}

func (s *Service) getOrCreateSession(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, tier models.ModelTier) (*models.Session, error) {
	active, err := s.sessions.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil && (sessionID == nil || *sessionID == active.ID) {
		return active, nil
	}

	if tier == "" {
		tier = models.TierFree
	}
	now := time.Now().UTC()
	session := &models.Session{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        models.SessionActive,
		StartedAt:     now,
		LastMessageAt: now,
		ModelTier:     tier,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// recordTurn appends the turn to the session's rolling history and
// persists the updated counters.
func (s *Service) recordTurn(ctx context.Context, session *models.Session, userMessage, response string, tokensUsed int) error {
	session.MessageCount += 2 // user + assistant
	session.TokensUsed += tokensUsed
	session.LastMessageAt = time.Now().UTC()
	session.History = append(session.History,
		models.HistoryEntry{Role: RoleUser, Content: userMessage},
		models.HistoryEntry{Role: RoleAssistant, Content: response},
	)
	if len(session.History) > maxSessionHistory {
		session.History = session.History[len(session.History)-maxSessionHistory:]
	}
	return s.sessions.Update(ctx, session)
}

// persistAudit writes pending tool-call audit records. Best effort: an
// audit failure never fails the turn.
func (s *Service) persistAudit(ctx context.Context, pending []*models.ToolCallLog) {
	if s.audit == nil {
		return
	}
	for _, entry := range pending {
		if err := s.audit.InsertToolCall(ctx, entry); err != nil {
			s.logger.Error("failed_to_insert_tool_call_log",
				zap.String("tool", entry.ToolName),
				zap.Error(err),
			)
		}
	}
}

// safetyMessage reports whether a policy result should answer the turn
// directly, short-circuiting the model call.
func safetyMessage(result policy.Result) (string, bool) {
	if result.Message != "" && (result.Action == policy.ActionBlock || result.Action == policy.ActionFlag) {
		return result.Message, true
	}
	return "", false
}

func doneEvent(sessionID uuid.UUID, finishReason string, tokens int) StreamEvent {
	return StreamEvent{Type: EventDone, Data: map[string]any{
		"session_id":    sessionID.String(),
		"finish_reason": finishReason,
		"tokens_used":   tokens,
	}}
}

// calculateConfidence scores how complete the data behind an answer is.
func (s *Service) calculateConfidence(cc *Context) float64 {
	var scores []float64

	withWeight := 0
	for _, c := range cc.RecentCheckIns {
		if c.WeightKg != nil {
			withWeight++
		}
	}
	scores = append(scores, math.Min(float64(withWeight)/7, 1.0))
	scores = append(scores, math.Min(float64(len(cc.RecentNutrition))/7, 1.0))

	switch {
	case cc.Profile == nil:
		scores = append(scores, 0.0)
	case cc.Profile.HeightCm != nil && cc.Profile.Sex != nil:
		scores = append(scores, 1.0)
	case cc.Profile.HeightCm != nil || cc.Profile.Sex != nil:
		scores = append(scores, 0.5)
	default:
		scores = append(scores, 0.25)
	}

	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}

// identifyDataGaps names the data whose absence limits personalization.
func (s *Service) identifyDataGaps(cc *Context) []DataGap {
	var gaps []DataGap

	if len(cc.RecentCheckIns) < 7 {
		gaps = append(gaps, DataGap{
			Field:       "check_ins",
			Description: "Limited check-in data available",
			Suggestion:  "Log your weight daily for more accurate trend analysis",
		})
	}
	if len(cc.RecentNutrition) < 7 {
		gaps = append(gaps, DataGap{
			Field:       "nutrition",
			Description: "Limited nutrition data available",
			Suggestion:  "Log your daily calories and macros for personalized recommendations",
		})
	}
	if cc.Profile != nil {
		if cc.Profile.HeightCm == nil {
			gaps = append(gaps, DataGap{
				Field:       "profile.height",
				Description: "Height not set",
				Suggestion:  "Add your height in settings for accurate TDEE calculations",
			})
		}
		if cc.Profile.ActivityLevel == nil {
			gaps = append(gaps, DataGap{
				Field:       "profile.activity_level",
				Description: "Activity level not set",
				Suggestion:  "Set your activity level for better calorie recommendations",
			})
		}
	}
	return gaps
}

func weightTrendInsights(cc *Context) []Insight {
	if cc.WeightTrend == nil || cc.WeightTrend.WeeklyRateKg == nil {
		return nil
	}
	rate := *cc.WeightTrend.WeeklyRateKg

	switch {
	case rate < -0.1:
		return []Insight{{
			Type:        "trend",
			Title:       "Weight Trending Down",
			Description: fmt.Sprintf("You're losing %.2f kg per week on average.", math.Abs(rate)),
			Data:        map[string]any{"rate": rate, "direction": "down"},
			Action:      "Keep up the great work! Ensure you're hitting protein targets.",
		}}
	case rate > 0.1:
		return []Insight{{
			Type:        "trend",
			Title:       "Weight Trending Up",
			Description: fmt.Sprintf("You're gaining %.2f kg per week on average.", rate),
			Data:        map[string]any{"rate": rate, "direction": "up"},
		}}
	default:
		return []Insight{{
			Type:        "trend",
			Title:       "Weight Stable",
			Description: "Your weight has been relatively stable recently.",
			Data:        map[string]any{"rate": rate, "direction": "stable"},
		}}
	}
}

func adherenceInsights(cc *Context) []Insight {
	if cc.Adherence == nil {
		return nil
	}
	var insights []Insight

	rate := cc.Adherence.CheckInRate
	if rate >= 0.8 {
		insights = append(insights, Insight{
			Type:        "achievement",
			Title:       "Consistent Check-ins!",
			Description: fmt.Sprintf("You've logged %d%% of your check-ins.", int(rate*100)),
			Data:        map[string]any{"rate": rate},
		})
	} else if rate < 0.5 {
		insights = append(insights, Insight{
			Type:        "recommendation",
			Title:       "More Check-ins Needed",
			Description: "Regular check-ins help track your progress accurately.",
			Action:      "Try to log your weight at the same time each day.",
		})
	}

	if streak := cc.Adherence.CurrentStreakDays; streak >= 7 {
		insights = append(insights, Insight{
			Type:        "achievement",
			Title:       fmt.Sprintf("%d-Day Streak!", streak),
			Description: fmt.Sprintf("You've checked in %d days in a row!", streak),
			Data:        map[string]any{"streak": streak},
		})
	}
	return insights
}

func nutritionInsights(cc *Context) []Insight {
	if len(cc.RecentNutrition) == 0 || cc.Targets == nil {
		return nil
	}
	var insights []Insight

	targetCalories := cc.Targets.TargetCalories
	targetProtein := cc.Targets.ProteinG

	var calorieSum float64
	calorieDays := 0
	var proteinSum float64
	proteinDays := 0
	for _, n := range cc.RecentNutrition {
		if n.Calories != nil {
			calorieSum += float64(*n.Calories)
			calorieDays++
		}
		if n.ProteinG != nil {
			proteinSum += *n.ProteinG
			proteinDays++
		}
	}

	if calorieDays > 0 && targetCalories > 0 {
		avgCalories := calorieSum / float64(calorieDays)
		diffPct := (avgCalories - float64(targetCalories)) / float64(targetCalories) * 100

		if math.Abs(diffPct) < 10 {
			insights = append(insights, Insight{
				Type:        "achievement",
				Title:       "On Target with Calories",
				Description: fmt.Sprintf("Averaging %d cal/day, right on target!", int(avgCalories)),
			})
		} else if diffPct < -15 {
			insights = append(insights, Insight{
				Type:        "warning",
				Title:       "Under-eating",
				Description: fmt.Sprintf("Averaging %d cal/day, %d%% below target.", int(avgCalories), int(-diffPct)),
				Action:      "Make sure you're fueling adequately for your goals.",
			})
		}
	}

	if proteinDays > 0 {
		avgProtein := proteinSum / float64(proteinDays)
		if avgProtein < float64(targetProtein)*0.8 {
			insights = append(insights, Insight{
				Type:        "recommendation",
				Title:       "Protein Opportunity",
				Description: fmt.Sprintf("Averaging %dg protein, aim for %dg.", int(avgProtein), targetProtein),
				Action:      "Add a protein source to each meal.",
			})
		}
	}
	return insights
}

// calculateDataQuality scores overall data completeness over a two-week
// horizon.
func calculateDataQuality(cc *Context) float64 {
	var scores []float64

	withWeight := 0
	for _, c := range cc.RecentCheckIns {
		if c.WeightKg != nil {
			withWeight++
		}
	}
	scores = append(scores, math.Min(float64(withWeight)/14, 1.0))
	scores = append(scores, math.Min(float64(len(cc.RecentNutrition))/14, 1.0))

	if cc.Profile == nil {
		scores = append(scores, 0.0)
	} else {
		completeness := 0.0
		if cc.Profile.HeightCm != nil {
			completeness += 0.25
		}
		if cc.Profile.Sex != nil {
			completeness += 0.25
		}
		if cc.Profile.BirthYear != nil {
			completeness += 0.25
		}
		if cc.Profile.ActivityLevel != nil {
			completeness += 0.25
		}
		scores = append(scores, completeness)
	}

	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum / float64(len(scores))
}
