package schemas

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StoryEnvelope is the JSON shape the generation prompt asks the model for.
type StoryEnvelope struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ParseStoryEnvelope parses the generation model's response. When the model
// ignored the JSON instruction and answered with plain prose, the whole
// response becomes the content and the title stays empty. A missing title
// is not worth a regeneration attempt.
func ParseStoryEnvelope(raw string) (*StoryEnvelope, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty generation response")
	}
	var env StoryEnvelope
	if err := json.Unmarshal(Sanitize(raw), &env); err != nil || env.Content == "" {
		return &StoryEnvelope{Content: strings.TrimSpace(raw)}, nil
	}
	return &env, nil
}

// ValidationVerdict is the JSON shape requested from the validation judge.
type ValidationVerdict struct {
	IsSafe                bool     `json:"is_safe"`
	HasLicensedCharacters bool     `json:"has_licensed_characters"`
	IsAgeAppropriate      bool     `json:"is_age_appropriate"`
	DetectedIssues        []string `json:"detected_issues"`
	Reasoning             string   `json:"reasoning"`
	Recommendation        string   `json:"recommendation"`
}

// ParseValidationVerdict parses the validation judge's response.
// The recommendation field is mandatory: a verdict without it is a parse
// failure, which the validator treats as a rejection.
func ParseValidationVerdict(raw string) (*ValidationVerdict, error) {
	var v ValidationVerdict
	if err := json.Unmarshal(Sanitize(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to parse validation verdict: %w", err)
	}
	v.Recommendation = strings.ToLower(strings.TrimSpace(v.Recommendation))
	if v.Recommendation == "" {
		return nil, fmt.Errorf("validation verdict has no recommendation")
	}
	return &v, nil
}

// AssessmentScores is the JSON shape requested from the assessment judge.
type AssessmentScores struct {
	OverallScore           int      `json:"overall_score"`
	AgeAppropriateness     int      `json:"age_appropriateness"`
	MoralClarity           int      `json:"moral_clarity"`
	NarrativeCoherence     int      `json:"narrative_coherence"`
	CharacterConsistency   int      `json:"character_consistency"`
	Engagement             int      `json:"engagement"`
	LanguageQuality        int      `json:"language_quality"`
	Feedback               string   `json:"feedback"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}

// ParseAssessmentScores parses the assessment judge's response. An overall
// score outside 1..10 is a parse failure; the assessor maps that to the
// most conservative outcome rather than guessing.
func ParseAssessmentScores(raw string) (*AssessmentScores, error) {
	var a AssessmentScores
	if err := json.Unmarshal(Sanitize(raw), &a); err != nil {
		return nil, fmt.Errorf("failed to parse assessment scores: %w", err)
	}
	if a.OverallScore < 1 || a.OverallScore > 10 {
		return nil, fmt.Errorf("assessment overall_score %d is outside 1..10", a.OverallScore)
	}
	clampScore(&a.AgeAppropriateness)
	clampScore(&a.MoralClarity)
	clampScore(&a.NarrativeCoherence)
	clampScore(&a.CharacterConsistency)
	clampScore(&a.Engagement)
	clampScore(&a.LanguageQuality)
	return &a, nil
}

// clampScore forces a sub-score into 1..10; a missing sub-score becomes 1
// rather than failing the whole assessment.
func clampScore(v *int) {
	if *v < 1 {
		*v = 1
	}
	if *v > 10 {
		*v = 10
	}
}
