package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestQualityAssessor_ParsesScores(t *testing.T) {
	judge := &scriptedJudge{responses: []string{
		`{"overall_score": 8, "age_appropriateness": 9, "moral_clarity": 7, "narrative_coherence": 8, "character_consistency": 8, "engagement": 6, "language_quality": 9, "feedback": "warm and gentle", "improvement_suggestions": ["shorter sentences"]}`,
	}}
	a := NewQualityAssessor(judge, "judge-model", zap.NewNop())

	got := a.Assess(context.Background(), "Once upon a time...", testParams())

	assert.Equal(t, 8, got.OverallScore)
	assert.Equal(t, 9, got.AgeAppropriateness)
	assert.Equal(t, 6, got.Engagement)
	assert.Equal(t, "warm and gentle", got.Feedback)
	assert.Equal(t, []string{"shorter sentences"}, got.ImprovementSuggestions)
	assert.False(t, got.Timestamp.IsZero())
}

func TestQualityAssessor_JudgeErrorScoresMinimum(t *testing.T) {
	judge := &scriptedJudge{errs: []error{errors.New("connection refused")}}
	a := NewQualityAssessor(judge, "judge-model", zap.NewNop())

	got := a.Assess(context.Background(), "some story", testParams())

	assert.Equal(t, 1, got.OverallScore)
	assert.Contains(t, got.Feedback, "connection refused")
}

func TestQualityAssessor_UnparsableResponseScoresMinimum(t *testing.T) {
	for _, raw := range []string{
		"the story is great, I give it a 9 out of 10",
		"",
		`{"overall_score": 0}`,
		`{"overall_score": 42}`,
	} {
		judge := &scriptedJudge{responses: []string{raw}}
		a := NewQualityAssessor(judge, "judge-model", zap.NewNop())

		got := a.Assess(context.Background(), "some story", testParams())

		assert.Equal(t, 1, got.OverallScore, "raw=%q", raw)
		assert.NotEmpty(t, got.Feedback, "raw=%q", raw)
	}
}

func TestQualityAssessor_MissingSubScoresClamped(t *testing.T) {
	judge := &scriptedJudge{responses: []string{`{"overall_score": 7, "engagement": 15}`}}
	a := NewQualityAssessor(judge, "judge-model", zap.NewNop())

	got := a.Assess(context.Background(), "some story", testParams())

	assert.Equal(t, 7, got.OverallScore)
	assert.Equal(t, 1, got.MoralClarity)
	assert.Equal(t, 10, got.Engagement)
}
