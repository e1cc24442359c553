package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
)

// --- Тестовые стабы внешних возможностей ---

// scriptedJudge возвращает заранее подготовленные ответы по порядку вызовов.
type scriptedJudge struct {
	responses []string
	errs      []error
	calls     int
}

func (j *scriptedJudge) Judge(_ context.Context, _ string, _ string, _ string) (string, error) {
	i := j.calls
	j.calls++
	var err error
	if i < len(j.errs) {
		err = j.errs[i]
	}
	var resp string
	if i < len(j.responses) {
		resp = j.responses[i]
	}
	return resp, err
}

// scriptedGenerator возвращает подготовленные результаты генерации по порядку.
type scriptedGenerator struct {
	outputs []GenerationOutput
	errs    []error
	reqs    []GenerationRequest
}

func (g *scriptedGenerator) GenerateStory(_ context.Context, req GenerationRequest) (GenerationOutput, error) {
	i := len(g.reqs)
	g.reqs = append(g.reqs, req)
	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	var out GenerationOutput
	if i < len(g.outputs) {
		out = g.outputs[i]
	}
	return out, err
}

type staticRenderer struct{ err error }

func (r staticRenderer) RenderStoryPrompt(_ context.Context, _ model.StoryParameters) (string, string, error) {
	if r.err != nil {
		return "", "", r.err
	}
	return "system prompt", "user prompt", nil
}

// --- Хелперы для построения ответов судьи ---

func approvedVerdict() string {
	return `{"is_safe": true, "has_licensed_characters": false, "is_age_appropriate": true, "detected_issues": [], "reasoning": "ok", "recommendation": "approved"}`
}

func rejectedVerdict(issue string) string {
	return fmt.Sprintf(`{"is_safe": false, "has_licensed_characters": true, "is_age_appropriate": true, "detected_issues": [%q], "reasoning": %q, "recommendation": "rejected"}`, issue, issue)
}

func assessmentJSON(overall int) string {
	return fmt.Sprintf(`{"overall_score": %d, "age_appropriateness": 8, "moral_clarity": 7, "narrative_coherence": 8, "character_consistency": 8, "engagement": 7, "language_quality": 8, "feedback": "fine", "improvement_suggestions": []}`, overall)
}

func storyOutput(n int) GenerationOutput {
	return GenerationOutput{
		Content:    fmt.Sprintf("Once upon a time, story variant %d. The end.", n),
		Title:      fmt.Sprintf("Story %d", n),
		TokensUsed: 500,
		ModelUsed:  "test-model",
	}
}

func testParams() model.StoryParameters {
	return model.StoryParameters{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		Moral:           "kindness",
		DurationMinutes: 5,
		Child:           &model.ChildProfile{Name: "Mia", Age: 6},
	}
}

func newTestWorkflow(t *testing.T, cfg Config, gen StoryGenerator, judge TextJudge) *Workflow {
	t.Helper()
	logger := zap.NewNop()
	w, err := NewWorkflow(cfg,
		gen,
		NewPromptValidator(judge, "judge-model", logger),
		NewQualityAssessor(judge, "judge-model", logger),
		staticRenderer{},
		logger,
	)
	require.NoError(t, err)
	return w
}

// --- Сценарии ---

func TestWorkflow_FirstAttemptAboveThreshold(t *testing.T) {
	gen := &scriptedGenerator{outputs: []GenerationOutput{storyOutput(1)}}
	judge := &scriptedJudge{responses: []string{approvedVerdict(), assessmentJSON(8)}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-1", "user-1", testParams())

	assert.Equal(t, StatusSuccess, st.Status)
	require.NotNil(t, st.Best)
	assert.Equal(t, 1, st.Best.AttemptNumber)
	assert.Equal(t, 8, st.Best.OverallScore)
	assert.Contains(t, st.Best.SelectionReason, "threshold met on attempt 1")
	assert.Len(t, st.Attempts, 1)
	assert.Len(t, st.Assessments, 1)
	assert.Empty(t, st.FatalError)

	res := st.Result()
	assert.True(t, res.Success)
	assert.Equal(t, "Story 1", res.Title)
	assert.Equal(t, 500, res.TokensUsed)
}

func TestWorkflow_BudgetExhaustedSelectsBestWithTieBreak(t *testing.T) {
	// Оценки 5, 6, 6: побеждает попытка 2 (ничья разрешается в пользу ранней)
	gen := &scriptedGenerator{outputs: []GenerationOutput{storyOutput(1), storyOutput(2), storyOutput(3)}}
	judge := &scriptedJudge{responses: []string{
		approvedVerdict(), assessmentJSON(5), assessmentJSON(6), assessmentJSON(6),
	}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-2", "user-1", testParams())

	assert.Equal(t, StatusSuccess, st.Status)
	require.NotNil(t, st.Best)
	assert.Equal(t, 2, st.Best.AttemptNumber)
	assert.Equal(t, 6, st.Best.OverallScore)
	assert.Contains(t, st.Best.SelectionReason, "exhausted")
	assert.Equal(t, []int{5, 6, 6}, st.Best.AllScores)
	assert.Len(t, st.Attempts, 3)
	assert.Len(t, st.Assessments, 3)
}

func TestWorkflow_ValidatorRejectsShortCircuits(t *testing.T) {
	gen := &scriptedGenerator{}
	judge := &scriptedJudge{responses: []string{rejectedVerdict("licensed character detected")}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-3", "user-1", testParams())

	assert.Equal(t, StatusRejected, st.Status)
	assert.Empty(t, st.Attempts, "no generation attempt may be made after rejection")
	assert.Empty(t, gen.reqs)
	assert.NotEmpty(t, st.ErrorMessages)
	assert.Nil(t, st.Best)
	require.NotNil(t, st.ValidationResult)
	assert.Equal(t, RecommendationRejected, st.ValidationResult.Recommendation)

	res := st.Result()
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestWorkflow_ValidatorJudgeErrorRejects(t *testing.T) {
	judge := &scriptedJudge{errs: []error{errors.New("judge timeout")}}
	w := newTestWorkflow(t, DefaultConfig(), &scriptedGenerator{}, judge)

	st := w.Execute(context.Background(), "gen-4", "user-1", testParams())

	assert.Equal(t, StatusRejected, st.Status)
	assert.Empty(t, st.Attempts)
}

func TestWorkflow_TransportFailureConsumesAttemptSlot(t *testing.T) {
	// Попытка 1 падает на транспортном уровне, попытка 2 набирает 9 баллов
	gen := &scriptedGenerator{
		outputs: []GenerationOutput{{}, storyOutput(2)},
		errs:    []error{errors.New("connection reset"), nil},
	}
	judge := &scriptedJudge{responses: []string{approvedVerdict(), assessmentJSON(9)}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-5", "user-1", testParams())

	assert.Equal(t, StatusSuccess, st.Status)
	require.NotNil(t, st.Best)
	assert.Equal(t, 2, st.Best.AttemptNumber)
	require.Len(t, st.Attempts, 2)
	assert.NotEmpty(t, st.Attempts[0].Error)
	assert.Empty(t, st.Attempts[0].Content)
	require.Len(t, st.Assessments, 2)
	assert.Equal(t, 0, st.Assessments[0].OverallScore, "failed attempt is excluded from scoring")
	assert.Equal(t, []int{0, 9}, st.Best.AllScores)
}

func TestWorkflow_AllAttemptsFailTransportBecomesFailed(t *testing.T) {
	genErr := errors.New("service unavailable")
	gen := &scriptedGenerator{errs: []error{genErr, genErr, genErr}}
	judge := &scriptedJudge{responses: []string{approvedVerdict()}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-6", "user-1", testParams())

	assert.Equal(t, StatusFailed, st.Status)
	assert.NotEmpty(t, st.FatalError)
	assert.Len(t, st.Attempts, 3)
	assert.Nil(t, st.Best)
}

func TestWorkflow_UnparsableAssessmentNeverPasses(t *testing.T) {
	gen := &scriptedGenerator{outputs: []GenerationOutput{storyOutput(1), storyOutput(2), storyOutput(3)}}
	judge := &scriptedJudge{responses: []string{
		approvedVerdict(), "complete garbage", "also not json", "{}",
	}}
	cfg := DefaultConfig()
	w := newTestWorkflow(t, cfg, gen, judge)

	st := w.Execute(context.Background(), "gen-7", "user-1", testParams())

	// Сломанный асессор дает минимальный балл: история выбирается по
	// исчерпании бюджета, но никогда не проходит порог.
	assert.Equal(t, StatusSuccess, st.Status)
	require.NotNil(t, st.Best)
	assert.Less(t, st.Best.OverallScore, cfg.QualityThreshold)
	assert.Len(t, st.Attempts, cfg.MaxAttempts)
}

func TestWorkflow_TemperatureSchedule(t *testing.T) {
	gen := &scriptedGenerator{outputs: []GenerationOutput{storyOutput(1), storyOutput(2), storyOutput(3)}}
	judge := &scriptedJudge{responses: []string{
		approvedVerdict(), assessmentJSON(3), assessmentJSON(3), assessmentJSON(3),
	}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-8", "user-1", testParams())

	require.Len(t, gen.reqs, 3)
	assert.Equal(t, 0.7, gen.reqs[0].Temperature)
	assert.Equal(t, 0.8, gen.reqs[1].Temperature)
	assert.Equal(t, 0.6, gen.reqs[2].Temperature)
	for i, a := range st.Attempts {
		assert.Equal(t, gen.reqs[i].Temperature, a.Temperature)
		assert.Equal(t, i+1, a.AttemptNumber)
	}
}

func TestWorkflow_InvalidConfigIsFatal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	w := newTestWorkflow(t, cfg, &scriptedGenerator{}, &scriptedJudge{})

	st := w.Execute(context.Background(), "gen-9", "user-1", testParams())

	assert.Equal(t, StatusFailed, st.Status)
	assert.Contains(t, st.FatalError, "maxAttempts")
}

func TestWorkflow_RendererFailureIsFatal(t *testing.T) {
	judge := &scriptedJudge{responses: []string{approvedVerdict()}}
	logger := zap.NewNop()
	w, err := NewWorkflow(DefaultConfig(),
		&scriptedGenerator{},
		NewPromptValidator(judge, "judge-model", logger),
		NewQualityAssessor(judge, "judge-model", logger),
		staticRenderer{err: errors.New("template missing")},
		logger,
	)
	require.NoError(t, err)

	st := w.Execute(context.Background(), "gen-10", "user-1", testParams())

	assert.Equal(t, StatusFailed, st.Status)
	assert.Contains(t, st.FatalError, "template missing")
	assert.Empty(t, st.Attempts)
}

type panickingGenerator struct{}

func (panickingGenerator) GenerateStory(context.Context, GenerationRequest) (GenerationOutput, error) {
	panic("boom")
}

func TestWorkflow_PanicIsContained(t *testing.T) {
	judge := &scriptedJudge{responses: []string{approvedVerdict()}}
	w := newTestWorkflow(t, DefaultConfig(), panickingGenerator{}, judge)

	st := w.Execute(context.Background(), "gen-11", "user-1", testParams())

	assert.Equal(t, StatusFailed, st.Status)
	assert.Contains(t, st.FatalError, "boom")
}

func TestWorkflow_CancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := newTestWorkflow(t, DefaultConfig(), &scriptedGenerator{}, &scriptedJudge{})

	st := w.Execute(ctx, "gen-12", "user-1", testParams())

	assert.Equal(t, StatusFailed, st.Status)
	assert.NotEmpty(t, st.FatalError)
}

func TestWorkflow_GibberishTailTrimmedBeforeAssessment(t *testing.T) {
	content := cleanStory(450) + " " + gibberishTail(150)
	gen := &scriptedGenerator{outputs: []GenerationOutput{{
		Content: content, Title: "Tailed", TokensUsed: 100, ModelUsed: "m",
	}}}
	judge := &scriptedJudge{responses: []string{approvedVerdict(), assessmentJSON(9)}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-13", "user-1", testParams())

	assert.Equal(t, StatusSuccess, st.Status)
	require.Len(t, st.Attempts, 1)
	assert.True(t, st.Attempts[0].TailTrimmed)
	assert.NotContains(t, st.Attempts[0].Content, "hallelujah")
	require.NotNil(t, st.Best)
	assert.Equal(t, st.Attempts[0].Content, st.Best.Content, "trimmed text is what goes downstream")
}

func TestWorkflow_AttemptBudgetInvariant(t *testing.T) {
	// Независимо от исхода, len(attempts) <= maxAttempts и при успехе
	// len(assessments) == len(attempts).
	for _, scores := range [][]int{{8}, {5, 8}, {2, 3, 4}, {5, 6, 6}} {
		responses := []string{approvedVerdict()}
		outputs := make([]GenerationOutput, 0, len(scores))
		for i, s := range scores {
			responses = append(responses, assessmentJSON(s))
			outputs = append(outputs, storyOutput(i+1))
		}
		gen := &scriptedGenerator{outputs: outputs}
		w := newTestWorkflow(t, DefaultConfig(), gen, &scriptedJudge{responses: responses})

		st := w.Execute(context.Background(), "gen-inv", "user-1", testParams())

		assert.LessOrEqual(t, len(st.Attempts), DefaultConfig().MaxAttempts)
		if st.Status == StatusSuccess {
			assert.Equal(t, len(st.Attempts), len(st.Assessments))
			require.NotNil(t, st.Best)
			// Инвариант выбора: argmax с разрешением ничьей в пользу ранней попытки
			bestIdx := 0
			for i, s := range st.Best.AllScores {
				if s > st.Best.AllScores[bestIdx] {
					bestIdx = i
				}
			}
			assert.Equal(t, bestIdx+1, st.Best.AttemptNumber)
		}
	}
}

func TestWorkflow_ValidationTimingRecorded(t *testing.T) {
	gen := &scriptedGenerator{outputs: []GenerationOutput{storyOutput(1)}}
	judge := &scriptedJudge{responses: []string{approvedVerdict(), assessmentJSON(8)}}
	w := newTestWorkflow(t, DefaultConfig(), gen, judge)

	st := w.Execute(context.Background(), "gen-14", "user-1", testParams())

	assert.GreaterOrEqual(t, st.Timings.Validation.Nanoseconds(), int64(0))
	assert.GreaterOrEqual(t, st.Timings.Generation.Nanoseconds(), int64(0))
	assert.GreaterOrEqual(t, st.Timings.Assessment.Nanoseconds(), int64(0))
}
