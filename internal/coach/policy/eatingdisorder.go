package policy

import (
	"regexp"
	"strings"
)

// Keywords and patterns that may indicate eating disorder behaviors
var edKeywords = []string{
	"purge",
	"purging",
	"binge",
	"binging",
	"bingeing",
	"laxative",
	"laxatives",
	"diet pills",
	"water fast",
	"juice cleanse",
	"body checking",
	"body check",
	"thinspo",
	"pro-ana",
	"pro-mia",
	"meanspo",
	"bonespo",
}

var edPhrases = []*regexp.Regexp{
	regexp.MustCompile(`how\s+(?:to|can\s+i)\s+not\s+eat`),
	regexp.MustCompile(`punish\s+(?:myself|me)\s+(?:for|with)\s+(?:eating|food)`),
	regexp.MustCompile(`(?:hate|disgusted)\s+(?:with|by)\s+(?:my\s+)?body`),
	regexp.MustCompile(`never\s+eat\s+again`),
	regexp.MustCompile(`(?:scared|afraid)\s+(?:of|to)\s+eat`),
	regexp.MustCompile(`make\s+(?:myself|me)\s+(?:throw\s+up|vomit|sick)`),
	regexp.MustCompile(`get\s+rid\s+of\s+(?:the\s+)?food`),
	regexp.MustCompile(`(?:starve|starving)\s+(?:myself|me)`),
}

// Output patterns that would encourage disordered eating
var edDangerousOutput = []*regexp.Regexp{
	regexp.MustCompile(`skip\s+(?:all\s+)?meals`),
	regexp.MustCompile(`very\s+low\s+calorie`),
	regexp.MustCompile(`extreme\s+(?:diet|restriction|fasting)`),
	regexp.MustCompile(`fast\s+for\s+(?:\d+\s+)?days`),
	regexp.MustCompile(`don'?t\s+eat\s+(?:for|until)`),
	regexp.MustCompile(`restrict\s+(?:heavily|severely)`),
}

const edSupportMessage = "I notice you may be going through a difficult time with food and body image. " +
	"Your wellbeing is what matters most, and I want to make sure you have access to support.\n\n" +
	"If you're struggling with your relationship with food, please consider reaching out to:\n" +
	"- **National Eating Disorders Association (NEDA):** 1-800-931-2237\n" +
	"- **Crisis Text Line:** Text 'NEDA' to 741741\n" +
	"- **Your healthcare provider** or a licensed therapist\n\n" +
	"I'm here to support your health goals in a safe, sustainable way. " +
	"Would you like to talk about some gentle approaches to nutrition?"

// EatingDisorderPolicy detects potential eating disorder signals and
// responds with support resources instead of coaching advice.
type EatingDisorderPolicy struct{}

func (EatingDisorderPolicy) Name() string { return "eating_disorder_policy" }

func (EatingDisorderPolicy) CheckInput(input string, _ UserContext) Result {
	inputLower := strings.ToLower(input)

	for _, keyword := range edKeywords {
		if strings.Contains(inputLower, keyword) {
			return edConcernResult()
		}
	}

	for _, pattern := range edPhrases {
		if pattern.MatchString(inputLower) {
			return edConcernResult()
		}
	}

	return Allowed()
}

func (EatingDisorderPolicy) CheckOutput(output string, _ UserContext) Result {
	outputLower := strings.ToLower(output)

	for _, pattern := range edDangerousOutput {
		if pattern.MatchString(outputLower) {
			return Result{
				Passed:        false,
				Action:        ActionBlock,
				Severity:      SeverityCritical,
				ViolationType: "ed_promotion",
				Message:       "I can't provide advice that could be harmful to your health.",
			}
		}
	}

	return Allowed()
}

func edConcernResult() Result {
	return Result{
		Passed:        false,
		Action:        ActionFlag,
		Severity:      SeverityCritical,
		ViolationType: "eating_disorder_signal",
		Message:       edSupportMessage,
	}
}
