// Package policy implements the safety rules applied to coach
// conversations. Every user message and every model response passes
// through the engine before it reaches the model or the user.
package policy

import "github.com/stridefit/coach-api/internal/models"

// Severity of a policy violation
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityBlocked  Severity = "blocked"
	SeverityCritical Severity = "critical"
)

// Action to take on a policy violation
type Action string

const (
	ActionAllow  Action = "allow"
	ActionModify Action = "modify"
	ActionBlock  Action = "block"
	ActionFlag   Action = "flag"
)

// Result is the outcome of a single policy check
type Result struct {
	Passed          bool
	Action          Action
	Severity        Severity
	ViolationType   string
	Message         string
	ModifiedContent string
	Disclaimer      string
}

// Allowed returns a passing result
func Allowed() Result {
	return Result{Passed: true, Action: ActionAllow}
}

// UserContext carries the user facts policies evaluate against. All
// fields except UserID are optional; policies must degrade gracefully
// when a field is missing.
type UserContext struct {
	UserID          string
	Sex             *models.Sex
	Age             *int
	CurrentWeightKg *float64
	GoalType        *models.GoalType
	TargetCalories  *int
	TargetWeightKg  *float64
}

// MinCalories returns the sex-specific calorie floor, defaulting to the
// male floor when sex is unknown.
func (c UserContext) MinCalories() int {
	if c.Sex != nil && *c.Sex == models.SexFemale {
		return MinCaloriesFemale
	}
	return MinCaloriesMale
}

// Policy is one safety rule. Checks are pure functions of the content
// and context so they can run on every turn without I/O.
type Policy interface {
	Name() string
	CheckInput(input string, ctx UserContext) Result
	CheckOutput(output string, ctx UserContext) Result
}

// Safety thresholds shared across policies
const (
	MinCaloriesFemale = 1200
	MinCaloriesMale   = 1500

	// MaxWeightLossRate is the maximum safe weekly loss as a fraction
	// of body weight.
	MaxWeightLossRate = 0.01

	lbToKg = 0.453592
)
