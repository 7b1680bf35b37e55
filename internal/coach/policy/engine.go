package policy

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/models"
)

// ViolationSink records policy violations for auditing. Recording is
// best effort: a sink failure never changes the policy decision.
type ViolationSink interface {
	RecordViolation(ctx context.Context, violation *models.PolicyViolationLog) error
}

// violationTypeMap maps per-policy violation strings to the audit
// taxonomy
var violationTypeMap = map[string]models.ViolationType{
	"calorie_minimum":                  models.ViolationCalorieMinimum,
	"calorie_minimum_request":          models.ViolationCalorieMinimum,
	"calorie_maximum":                  models.ViolationCalorieMaximum,
	"rapid_weight_loss_request":        models.ViolationWeightLossRate,
	"rapid_weight_loss_recommendation": models.ViolationWeightLossRate,
	"eating_disorder_signal":           models.ViolationEatingDisorder,
	"ed_promotion":                     models.ViolationEatingDisorder,
	"medical_request":                  models.ViolationMedicalClaim,
	"medical_diagnosis":                models.ViolationMedicalClaim,
}

const maxTriggerContentLen = 500

// Engine runs the safety policies in a fixed order. The eating
// disorder policy runs first because it is the most critical.
type Engine struct {
	policies []Policy
	sink     ViolationSink
	logger   *zap.Logger
}

// NewEngine creates the policy engine with the standard policy chain.
// The sink may be nil when violation auditing is not wired.
func NewEngine(sink ViolationSink, logger *zap.Logger) *Engine {
	return &Engine{
		policies: []Policy{
			EatingDisorderPolicy{},
			CaloriePolicy{},
			WeightLossPolicy{},
			MedicalClaimsPolicy{},
		},
		sink:   sink,
		logger: logger,
	}
}

// CheckInput runs all policies over a user message. The first policy
// that blocks or flags with a message short-circuits the chain so its
// safety message reaches the user unaltered.
func (e *Engine) CheckInput(ctx context.Context, input string, uc UserContext) Result {
	for _, p := range e.policies {
		result := p.CheckInput(input, uc)
		if !result.Passed {
			e.recordViolation(ctx, result, uc, input, true)

			if (result.Action == ActionBlock || result.Action == ActionFlag) && result.Message != "" {
				return result
			}
		}
	}

	return Allowed()
}

// CheckOutput runs all policies over a model response. A block ends the
// chain; modifications accumulate, with each policy seeing the content
// as modified so far. Disclaimers are de-duplicated and appended once.
func (e *Engine) CheckOutput(ctx context.Context, output string, uc UserContext) Result {
	modified := output
	var disclaimers []string

	for _, p := range e.policies {
		result := p.CheckOutput(modified, uc)

		if !result.Passed {
			e.recordViolation(ctx, result, uc, modified, false)

			if result.Action == ActionBlock {
				return result
			}
			if result.Action == ActionModify && result.ModifiedContent != "" {
				modified = result.ModifiedContent
			}
		}

		if result.Disclaimer != "" {
			disclaimers = append(disclaimers, result.Disclaimer)
		}
	}

	if len(disclaimers) > 0 {
		modified += strings.Join(dedupe(disclaimers), "\n")
	}

	final := Result{Passed: true, Action: ActionAllow}
	if modified != output {
		final.ModifiedContent = modified
	}
	return final
}

func (e *Engine) recordViolation(ctx context.Context, result Result, uc UserContext, content string, isInput bool) {
	severity := string(result.Severity)
	if severity == "" {
		severity = string(SeverityWarning)
	}

	e.logger.Warn("policy_violation",
		zap.String("violation_type", result.ViolationType),
		zap.String("severity", severity),
		zap.String("action", string(result.Action)),
		zap.String("user_id", uc.UserID),
		zap.Bool("is_input", isInput),
	)

	if e.sink == nil || result.ViolationType == "" {
		return
	}

	userID, err := uuid.Parse(uc.UserID)
	if err != nil {
		e.logger.Warn("invalid_user_id_in_policy_context", zap.String("user_id", uc.UserID))
		return
	}

	violationType, ok := violationTypeMap[result.ViolationType]
	if !ok {
		violationType = models.ViolationUnsafeContent
	}

	trigger := content
	if len(trigger) > maxTriggerContentLen {
		trigger = trigger[:maxTriggerContentLen]
	}

	violation := &models.PolicyViolationLog{
		UserID:         userID,
		ViolationType:  violationType,
		Severity:       severity,
		TriggerContent: trigger,
		ActionTaken:    string(result.Action),
		Details: map[string]any{
			"is_input":                isInput,
			"original_violation_type": result.ViolationType,
		},
	}

	if err := e.sink.RecordViolation(ctx, violation); err != nil {
		e.logger.Error("failed_to_record_violation", zap.Error(err))
	}
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
