package policy

import (
	"regexp"
	"strings"
)

// Patterns for medical questions and requests
var medicalInputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`do\s+i\s+have\s+(?:\w+\s+)?(?:diabetes|anorexia|bulimia|thyroid|hormone)`),
	regexp.MustCompile(`should\s+i\s+(?:take|stop|change)\s+(?:my\s+)?(?:medication|medicine|prescription)`),
	regexp.MustCompile(`(?:what|which)\s+(?:medication|medicine|drug)\s+should`),
	regexp.MustCompile(`is\s+(?:this|it)\s+(?:\w+\s+)?(?:safe|dangerous)\s+(?:to|for)`),
}

// Diagnostic language the coach must never produce
var diagnosticOutputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`you\s+(?:have|may\s+have|might\s+have|probably\s+have)\s+(?:\w+\s+)?(?:diabetes|disorder|disease|condition)`),
	regexp.MustCompile(`this\s+(?:is|sounds\s+like|could\s+be)\s+(?:\w+\s+)?(?:diabetes|disorder|disease|condition)`),
	regexp.MustCompile(`i\s+(?:diagnose|recommend)\s+(?:you|that\s+you)`),
}

// Medical conditions the coach should not advise on without a
// disclaimer
var medicalConditions = []string{
	"diabetes",
	"thyroid",
	"hormone",
	"pcos",
	"insulin resistance",
	"heart disease",
	"hypertension",
	"high blood pressure",
	"kidney disease",
	"liver disease",
	"cancer",
	"pregnancy",
	"pregnant",
	"breastfeeding",
	"nursing",
}

var medicalQuestionMarkers = []string{"what should", "how should", "can i", "should i"}

const medicalDisclaimer = "\n\n**Disclaimer:** This is general fitness information and not medical advice. " +
	"Please consult with a healthcare provider for personalized medical guidance, " +
	"especially if you have any health conditions."

const medicalReferralMessage = "I'm a fitness coach, not a medical professional. For questions about medical " +
	"conditions, medications, or health diagnoses, please consult with:\n\n" +
	"- Your primary care physician\n" +
	"- A registered dietitian (RD)\n" +
	"- An endocrinologist (for hormone-related questions)\n" +
	"- A mental health professional (for eating-related concerns)\n\n" +
	"I'm happy to help with general fitness and nutrition guidance once you've " +
	"gotten medical clearance!"

// MedicalClaimsPolicy refuses medical advice requests and keeps
// diagnostic language out of responses.
type MedicalClaimsPolicy struct{}

func (MedicalClaimsPolicy) Name() string { return "medical_claims_policy" }

func (MedicalClaimsPolicy) CheckInput(input string, _ UserContext) Result {
	inputLower := strings.ToLower(input)

	for _, pattern := range medicalInputPatterns {
		if pattern.MatchString(inputLower) {
			return Result{
				Passed:        false,
				Action:        ActionFlag,
				Severity:      SeverityWarning,
				ViolationType: "medical_request",
				Message:       medicalReferralMessage,
			}
		}
	}

	// General questions touching a medical condition pass, but carry a
	// disclaimer
	for _, condition := range medicalConditions {
		if !strings.Contains(inputLower, condition) {
			continue
		}
		if strings.Contains(input, "?") || containsAny(inputLower, medicalQuestionMarkers) {
			return Result{
				Passed:     true,
				Action:     ActionAllow,
				Disclaimer: medicalDisclaimer,
			}
		}
	}

	return Allowed()
}

func (MedicalClaimsPolicy) CheckOutput(output string, _ UserContext) Result {
	outputLower := strings.ToLower(output)

	for _, pattern := range diagnosticOutputPatterns {
		if pattern.MatchString(outputLower) {
			return Result{
				Passed:        false,
				Action:        ActionBlock,
				Severity:      SeverityBlocked,
				ViolationType: "medical_diagnosis",
				Message: "I'm not able to provide medical diagnoses or advice. " +
					"For health concerns, please consult with a healthcare provider " +
					"who can properly evaluate your situation.",
			}
		}
	}

	for _, condition := range medicalConditions {
		if strings.Contains(outputLower, condition) {
			return Result{
				Passed:     true,
				Action:     ActionModify,
				Disclaimer: medicalDisclaimer,
			}
		}
	}

	return Allowed()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
