package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bedtime-server/internal/model"
	"bedtime-server/internal/schemas"
)

// TextJudge is the shared external text-judgment capability used by both the
// validator and the assessor. Implementations call a classification LLM with
// the given model id and return its raw (JSON-like) response.
type TextJudge interface {
	Judge(ctx context.Context, instructions string, input string, modelID string) (string, error)
}

// PromptValidator gates story generation on a safety and appropriateness
// check before a generation call is spent.
type PromptValidator struct {
	judge   TextJudge
	modelID string
	logger  *zap.Logger
}

// NewPromptValidator creates a validator backed by the given judge capability.
func NewPromptValidator(judge TextJudge, modelID string, logger *zap.Logger) *PromptValidator {
	return &PromptValidator{
		judge:   judge,
		modelID: modelID,
		logger:  logger.Named("PromptValidator"),
	}
}

const validationInstructions = `You are a content safety reviewer for a children's bedtime story service.
Review the story request below and judge it on three axes:
1. Safety: the request must not ask for violence, fear, adult themes or anything otherwise harmful to a child.
2. Licensed characters: the request must not reference third-party licensed or trademarked characters (e.g. from films, cartoons, games).
3. Age appropriateness: the requested themes must suit the target age given in the request.
Respond with ONLY a JSON object:
{"is_safe": bool, "has_licensed_characters": bool, "is_age_appropriate": bool, "detected_issues": [string], "reasoning": string, "recommendation": "approved"|"rejected"}`

// Validate runs the external judgment over the request parameters and maps
// the response onto a ValidationResult. Any judge failure or unparsable
// response yields a rejection; the validator never defaults to approval.
func (v *PromptValidator) Validate(ctx context.Context, params model.StoryParameters) ValidationResult {
	input := describeRequest(params)

	raw, err := v.judge.Judge(ctx, validationInstructions, input, v.modelID)
	if err != nil {
		v.logger.Warn("Validation judge call failed, rejecting request", zap.Error(err))
		return rejectedValidation(fmt.Sprintf("validation call failed: %v", err))
	}

	verdict, err := schemas.ParseValidationVerdict(raw)
	if err != nil {
		v.logger.Warn("Validation verdict is unparsable, rejecting request",
			zap.Error(err), zap.Int("response_length", len(raw)))
		return rejectedValidation(fmt.Sprintf("validation response unparsable: %v", err))
	}

	rec := RecommendationRejected
	if verdict.Recommendation == string(RecommendationApproved) {
		rec = RecommendationApproved
	}

	return ValidationResult{
		IsSafe:                verdict.IsSafe,
		HasLicensedCharacters: verdict.HasLicensedCharacters,
		IsAgeAppropriate:      verdict.IsAgeAppropriate,
		DetectedIssues:        verdict.DetectedIssues,
		Reasoning:             verdict.Reasoning,
		Recommendation:        rec,
		Timestamp:             time.Now(),
	}
}

// rejectedValidation is the conservative verdict used when the external
// judgment could not be obtained.
func rejectedValidation(reason string) ValidationResult {
	return ValidationResult{
		IsSafe:           false,
		IsAgeAppropriate: false,
		DetectedIssues:   []string{reason},
		Reasoning:        reason,
		Recommendation:   RecommendationRejected,
		Timestamp:        time.Now(),
	}
}

// describeRequest renders the request parameters as compact text for the
// judge. Only fields relevant to the judgment are included.
func describeRequest(params model.StoryParameters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Story type: %s\n", params.StoryType)
	fmt.Fprintf(&b, "Language: %s\n", params.Language)
	fmt.Fprintf(&b, "Target age: %d\n", params.ChildAge())
	if params.Moral != "" {
		fmt.Fprintf(&b, "Moral theme: %s\n", params.Moral)
	}
	if params.ThemeHint != "" {
		fmt.Fprintf(&b, "Requested theme/plot: %s\n", params.ThemeHint)
	}
	if params.Child != nil {
		fmt.Fprintf(&b, "Child: %s, age %d", params.Child.Name, params.Child.Age)
		if len(params.Child.Interests) > 0 {
			fmt.Fprintf(&b, ", interests: %s", strings.Join(params.Child.Interests, ", "))
		}
		b.WriteString("\n")
	}
	if params.Hero != nil {
		fmt.Fprintf(&b, "Hero: %s", params.Hero.Name)
		if params.Hero.Description != "" {
			fmt.Fprintf(&b, " - %s", params.Hero.Description)
		}
		if len(params.Hero.Traits) > 0 {
			fmt.Fprintf(&b, " (traits: %s)", strings.Join(params.Hero.Traits, ", "))
		}
		b.WriteString("\n")
	}
	if params.ParentSummary != "" {
		fmt.Fprintf(&b, "Continuation of a previous story: %s\n", params.ParentSummary)
	}
	return b.String()
}
