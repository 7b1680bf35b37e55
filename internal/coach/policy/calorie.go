package policy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Patterns for extremely low calorie requests in user input
var calorieInputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{2,3})\s*(?:cal|calories|kcal)`),
	regexp.MustCompile(`under\s*(\d{3,4})\s*(?:cal|calories|kcal)`),
	regexp.MustCompile(`only\s*(\d{3,4})\s*(?:cal|calories|kcal)`),
	regexp.MustCompile(`less\s*than\s*(\d{3,4})\s*(?:cal|calories|kcal)`),
}

// Patterns for calorie recommendations in model output
var calorieOutputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{3,4})\s*(?:cal|kcal|calories)`),
	regexp.MustCompile(`eat\s*(?:around|about|approximately)?\s*(\d{3,4})`),
	regexp.MustCompile(`target\s*(?:of)?\s*(\d{3,4})`),
	regexp.MustCompile(`aim\s*for\s*(\d{3,4})`),
}

// CaloriePolicy keeps calorie recommendations above the sex-specific
// safe minimum.
type CaloriePolicy struct{}

func (CaloriePolicy) Name() string { return "calorie_policy" }

func (CaloriePolicy) CheckInput(input string, ctx UserContext) Result {
	inputLower := strings.ToLower(input)
	minCal := ctx.MinCalories()

	for _, pattern := range calorieInputPatterns {
		match := pattern.FindStringSubmatch(inputLower)
		if match == nil {
			continue
		}
		calories, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if calories < minCal {
			return Result{
				Passed:        false,
				Action:        ActionModify,
				Severity:      SeverityWarning,
				ViolationType: "calorie_minimum_request",
				Message: fmt.Sprintf(
					"I understand you're motivated, but calorie levels below %d "+
						"aren't recommended for health and safety reasons. Let me help you "+
						"find a sustainable approach that will get you results safely.", minCal),
			}
		}
	}

	return Allowed()
}

func (CaloriePolicy) CheckOutput(output string, ctx UserContext) Result {
	outputLower := strings.ToLower(output)
	minCal := ctx.MinCalories()

	for _, pattern := range calorieOutputPatterns {
		for _, match := range pattern.FindAllStringSubmatch(outputLower, -1) {
			calories, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if calories < minCal {
				return Result{
					Passed:        false,
					Action:        ActionModify,
					Severity:      SeverityWarning,
					ViolationType: "calorie_minimum",
					Disclaimer: fmt.Sprintf(
						"\n\n**Important:** Calorie intake below %d calories per day "+
							"is generally not recommended without medical supervision. Please "+
							"consult a healthcare provider before making significant changes to your diet.", minCal),
				}
			}
		}
	}

	return Allowed()
}
