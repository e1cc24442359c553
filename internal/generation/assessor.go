package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bedtime-server/internal/model"
	"bedtime-server/internal/schemas"
)

// QualityAssessor scores one generated attempt across the review rubrics
// using an external judge model configured independently from the generator.
// The assessor holds no cross-attempt state.
type QualityAssessor struct {
	judge   TextJudge
	modelID string
	logger  *zap.Logger
}

// NewQualityAssessor creates an assessor backed by the given judge capability.
func NewQualityAssessor(judge TextJudge, modelID string, logger *zap.Logger) *QualityAssessor {
	return &QualityAssessor{
		judge:   judge,
		modelID: modelID,
		logger:  logger.Named("QualityAssessor"),
	}
}

const assessmentInstructionsFmt = `You are an editor reviewing a children's bedtime story written for a %d year old child in language %q.
The story should convey the moral theme %q and use characters consistently.
Score the story from 1 (worst) to 10 (best) on every rubric.
Respond with ONLY a JSON object:
{"overall_score": int, "age_appropriateness": int, "moral_clarity": int, "narrative_coherence": int, "character_consistency": int, "engagement": int, "language_quality": int, "feedback": string, "improvement_suggestions": [string]}`

// Assess scores a single attempt. A judge failure or unparsable response
// yields the minimum overall score with the failure recorded in feedback, so
// a broken assessor can never wave a story through.
func (a *QualityAssessor) Assess(ctx context.Context, content string, params model.StoryParameters) QualityAssessment {
	instructions := fmt.Sprintf(assessmentInstructionsFmt, params.ChildAge(), params.Language, params.Moral)

	raw, err := a.judge.Judge(ctx, instructions, content, a.modelID)
	if err != nil {
		a.logger.Warn("Assessment judge call failed", zap.Error(err))
		return failedAssessment(fmt.Sprintf("assessment call failed: %v", err))
	}

	scores, err := schemas.ParseAssessmentScores(raw)
	if err != nil {
		a.logger.Warn("Assessment response is unparsable",
			zap.Error(err), zap.Int("response_length", len(raw)))
		return failedAssessment(fmt.Sprintf("assessment response unparsable: %v", err))
	}

	return QualityAssessment{
		OverallScore:           scores.OverallScore,
		AgeAppropriateness:     scores.AgeAppropriateness,
		MoralClarity:           scores.MoralClarity,
		NarrativeCoherence:     scores.NarrativeCoherence,
		CharacterConsistency:   scores.CharacterConsistency,
		Engagement:             scores.Engagement,
		LanguageQuality:        scores.LanguageQuality,
		Feedback:               scores.Feedback,
		ImprovementSuggestions: scores.ImprovementSuggestions,
		Timestamp:              time.Now(),
	}
}

// failedAssessment is the conservative score set for a broken assessment:
// overall score 1 is always below any sane quality threshold.
func failedAssessment(reason string) QualityAssessment {
	return QualityAssessment{
		OverallScore:         1,
		AgeAppropriateness:   1,
		MoralClarity:         1,
		NarrativeCoherence:   1,
		CharacterConsistency: 1,
		Engagement:           1,
		LanguageQuality:      1,
		Feedback:             reason,
		Timestamp:            time.Now(),
	}
}
