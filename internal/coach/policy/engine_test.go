package policy

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stridefit/coach-api/internal/models"
)

type captureSink struct {
	mu         sync.Mutex
	violations []*models.PolicyViolationLog
}

func (s *captureSink) RecordViolation(_ context.Context, v *models.PolicyViolationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, v)
	return nil
}

func femaleContext() UserContext {
	sex := models.SexFemale
	weight := 70.0
	return UserContext{
		UserID:          uuid.New().String(),
		Sex:             &sex,
		CurrentWeightKg: &weight,
	}
}

func TestCheckInput_EatingDisorderTakesPriority(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	engine := NewEngine(sink, zap.NewNop())

	// Message triggers both the ED policy and the calorie policy; the
	// ED response must win because it runs first.
	result := engine.CheckInput(context.Background(), "I want to purge and eat 500 calories a day", femaleContext())

	if result.Passed {
		t.Fatal("expected input to be flagged")
	}
	if result.Action != ActionFlag {
		t.Errorf("Action = %q, want flag", result.Action)
	}
	if result.ViolationType != "eating_disorder_signal" {
		t.Errorf("ViolationType = %q, want eating_disorder_signal", result.ViolationType)
	}
	if !strings.Contains(result.Message, "1-800-931-2237") {
		t.Error("support message should include the NEDA helpline")
	}

	// Short-circuit: only the ED violation is recorded
	if len(sink.violations) != 1 {
		t.Fatalf("recorded %d violations, want 1", len(sink.violations))
	}
	if sink.violations[0].ViolationType != models.ViolationEatingDisorder {
		t.Errorf("recorded type = %q", sink.violations[0].ViolationType)
	}
}

func TestCaloriePolicy_InputMentionsThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		ctx           UserContext
		wantThreshold string
	}{
		{"female floor", femaleContext(), "1200"},
		{"unknown sex defaults to male floor", UserContext{UserID: uuid.New().String()}, "1500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CaloriePolicy{}.CheckInput("can I eat only 800 calories a day?", tt.ctx)
			if result.Passed {
				t.Fatal("expected a violation")
			}
			if result.Action != ActionModify {
				t.Errorf("Action = %q, want modify", result.Action)
			}
			if !strings.Contains(result.Message, tt.wantThreshold) {
				t.Errorf("message %q should mention threshold %s", result.Message, tt.wantThreshold)
			}
		})
	}
}

func TestCheckInput_ModifyDoesNotShortCircuit(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	engine := NewEngine(sink, zap.NewNop())

	// A calorie-minimum request modifies but never blocks: the engine
	// records the violation and lets the turn proceed.
	result := engine.CheckInput(context.Background(), "can I eat only 800 calories a day?", femaleContext())
	if !result.Passed {
		t.Fatalf("modify-only violation must not short-circuit, got action %q", result.Action)
	}
	if len(sink.violations) != 1 {
		t.Errorf("recorded %d violations, want 1", len(sink.violations))
	}
}

func TestWeightLossPolicy_Input(t *testing.T) {
	t.Parallel()

	// 70 kg user: safe rate 0.7 kg/week, warn above 1.05 kg/week
	result := WeightLossPolicy{}.CheckInput("I want to lose 5 lbs per week", femaleContext())
	if result.Passed {
		t.Fatal("5 lbs/week should be flagged for a 70 kg user")
	}
	if result.ViolationType != "rapid_weight_loss_request" {
		t.Errorf("ViolationType = %q", result.ViolationType)
	}

	// 2 lbs/week (0.9 kg) is under the threshold
	result = WeightLossPolicy{}.CheckInput("I want to lose 2 lbs per week", femaleContext())
	if !result.Passed {
		t.Errorf("2 lbs/week should pass, got %q", result.ViolationType)
	}
}

func TestWeightLossPolicy_InputWithoutWeightContext(t *testing.T) {
	t.Parallel()

	// Without a known body weight, more than 1 kg/week is flagged
	result := WeightLossPolicy{}.CheckInput("help me lose 2 kg per week", UserContext{UserID: uuid.New().String()})
	if result.Passed {
		t.Fatal("2 kg/week without weight context should be flagged")
	}
}

func TestCheckInput_MedicalReferral(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, zap.NewNop())

	result := engine.CheckInput(context.Background(), "should I stop my medication before cutting?", femaleContext())
	if result.Passed {
		t.Fatal("medication question should be flagged")
	}
	if result.Action != ActionFlag {
		t.Errorf("Action = %q, want flag", result.Action)
	}
	if !strings.Contains(result.Message, "not a medical professional") {
		t.Errorf("unexpected referral message: %q", result.Message)
	}
}

func TestCheckInput_CleanMessagePasses(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, zap.NewNop())

	result := engine.CheckInput(context.Background(), "how did my week go?", femaleContext())
	if !result.Passed {
		t.Errorf("clean message flagged as %q", result.ViolationType)
	}
}

func TestCheckOutput_BlocksDiagnosticLanguage(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, zap.NewNop())

	result := engine.CheckOutput(context.Background(),
		"Based on your symptoms, you probably have diabetes.", femaleContext())
	if result.Passed {
		t.Fatal("diagnostic output must be blocked")
	}
	if result.Action != ActionBlock {
		t.Errorf("Action = %q, want block", result.Action)
	}
	if result.Message == "" {
		t.Error("block must carry a replacement message")
	}
}

func TestCheckOutput_BlocksEDPromotion(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, zap.NewNop())

	result := engine.CheckOutput(context.Background(),
		"You could skip all meals tomorrow to make up for it.", femaleContext())
	if result.Passed || result.Action != ActionBlock {
		t.Fatalf("ED-promoting output must be blocked, got passed=%v action=%q", result.Passed, result.Action)
	}
}

func TestCheckOutput_AppendsCalorieDisclaimer(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, zap.NewNop())

	output := "You could try a target of 1000 calories on rest days."
	result := engine.CheckOutput(context.Background(), output, femaleContext())

	if !result.Passed {
		t.Fatal("modify action still passes overall")
	}
	if result.ModifiedContent == "" {
		t.Fatal("expected modified content with a disclaimer")
	}
	if !strings.HasPrefix(result.ModifiedContent, output) {
		t.Error("original content must be preserved")
	}
	if !strings.Contains(result.ModifiedContent, "1200 calories") {
		t.Errorf("disclaimer should mention the 1200 floor: %q", result.ModifiedContent)
	}
}

func TestCheckOutput_DisclaimerNotDuplicated(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, zap.NewNop())

	// Mentions a medical condition twice; the disclaimer must appear once
	output := "With pregnancy, energy needs change. During pregnancy, focus on nutrient density."
	result := engine.CheckOutput(context.Background(), output, femaleContext())

	if result.ModifiedContent == "" {
		t.Fatal("expected a disclaimer")
	}
	if got := strings.Count(result.ModifiedContent, "**Disclaimer:**"); got != 1 {
		t.Errorf("disclaimer appears %d times, want 1", got)
	}
}

func TestCheckOutput_CleanOutputUnmodified(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil, zap.NewNop())

	result := engine.CheckOutput(context.Background(),
		"Great week! Your average intake was 1800 calories, right on target.", femaleContext())
	if !result.Passed {
		t.Fatal("clean output should pass")
	}
	if result.ModifiedContent != "" {
		t.Errorf("clean output should not be modified: %q", result.ModifiedContent)
	}
}
