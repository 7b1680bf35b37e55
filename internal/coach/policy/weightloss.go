package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Patterns for rapid weight loss requests. The second capture group is
// the unit so pounds can be converted to kg.
var rapidLossInputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`lose\s+(\d+)\s*(lbs?|pounds?|kg|kilos?)\s*(?:in|per)\s*(?:a\s+)?week`),
	regexp.MustCompile(`drop\s+(\d+)\s*(lbs?|pounds?|kg|kilos?)\s*(?:fast|quick|rapid)`),
	regexp.MustCompile(`(\d+)\s*(lbs?|pounds?|kg|kilos?)\s*(?:a|per)\s*week`),
}

var rapidLossOutputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`lose\s+(\d+)\s*(lbs?|pounds?|kg|kilos?)\s*(?:per|a)\s*week`),
	regexp.MustCompile(`expect\s+(?:to\s+)?(?:lose\s+)?(\d+)\s*(lbs?|pounds?|kg|kilos?)`),
	regexp.MustCompile(`(\d+)\s*(lbs?|pounds?|kg|kilos?)\s*(?:weekly|per\s+week)`),
}

// WeightLossPolicy keeps weight loss rates within the 1% of body weight
// per week guideline.
type WeightLossPolicy struct{}

func (WeightLossPolicy) Name() string { return "weight_loss_policy" }

func (WeightLossPolicy) CheckInput(input string, ctx UserContext) Result {
	inputLower := strings.ToLower(input)

	for _, pattern := range rapidLossInputPatterns {
		match := pattern.FindStringSubmatch(inputLower)
		if match == nil {
			continue
		}
		amountKg, ok := parseAmountKg(match[1], match[2])
		if !ok {
			continue
		}

		if ctx.CurrentWeightKg != nil {
			safeRateKg := *ctx.CurrentWeightKg * MaxWeightLossRate
			// Flag only when 50% above the safe rate
			if amountKg > safeRateKg*1.5 {
				return Result{
					Passed:        false,
					Action:        ActionModify,
					Severity:      SeverityWarning,
					ViolationType: "rapid_weight_loss_request",
					Message: fmt.Sprintf(
						"I understand you want fast results! For sustainable, healthy weight loss, "+
							"experts recommend no more than %.1f kg (%.1f lbs) "+
							"per week, which is about 1%% of your body weight. "+
							"Faster loss often leads to muscle loss and rebound weight gain. "+
							"Let me help you with a plan that gets lasting results!",
						safeRateKg, safeRateKg*2.2),
				}
			}
		} else if amountKg > 1.0 {
			// Without weight context, anything over 1 kg/week is concerning
			return Result{
				Passed:        false,
				Action:        ActionModify,
				Severity:      SeverityWarning,
				ViolationType: "rapid_weight_loss_request",
				Message: "Losing more than 0.5-1 kg (1-2 lbs) per week can lead to muscle loss, " +
					"nutrient deficiencies, and rebound weight gain. Let me help you create " +
					"a sustainable plan that gets you lasting results!",
			}
		}
	}

	return Allowed()
}

func (WeightLossPolicy) CheckOutput(output string, _ UserContext) Result {
	outputLower := strings.ToLower(output)

	for _, pattern := range rapidLossOutputPatterns {
		for _, match := range pattern.FindAllStringSubmatch(outputLower, -1) {
			amountKg, ok := parseAmountKg(match[1], match[2])
			if !ok {
				continue
			}
			if amountKg > 1.0 {
				return Result{
					Passed:        false,
					Action:        ActionModify,
					Severity:      SeverityWarning,
					ViolationType: "rapid_weight_loss_recommendation",
					Disclaimer: "\n\n**Note:** For safe, sustainable weight loss, aim for 0.5-1 kg " +
						"(1-2 lbs) per week. Faster weight loss may lead to muscle loss " +
						"and is harder to maintain long-term.",
				}
			}
		}
	}

	return Allowed()
}

func parseAmountKg(amountStr, unit string) (float64, bool) {
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(unit, "lb") || strings.HasPrefix(unit, "pound") {
		return amount * lbToKg, true
	}
	return amount, true
}
