package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bedtime-server/internal/model"
)

// StoryGenerator is the external story-generation capability. Implementations
// are expected to be timeout-bound; a transport failure is returned as an
// error and consumes one attempt slot.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, req GenerationRequest) (GenerationOutput, error)
}

// GenerationRequest carries everything one generation call needs.
type GenerationRequest struct {
	UserID       string
	SystemPrompt string
	UserPrompt   string
	ModelID      string
	Temperature  float64
	MaxTokens    int
}

// GenerationOutput is the generator's answer for one attempt.
type GenerationOutput struct {
	Content    string
	Title      string
	TokensUsed int
	ModelUsed  string
}

// PromptRenderer turns story parameters into the literal prompt pair for the
// generation model. The core knows nothing about template internals.
type PromptRenderer interface {
	RenderStoryPrompt(ctx context.Context, params model.StoryParameters) (systemPrompt, userPrompt string, err error)
}

// Config holds the tunables of one workflow instance. It is passed by value
// into the constructor so parallel runs with different thresholds never share
// mutable settings.
type Config struct {
	QualityThreshold int       // Minimum acceptable overall score (1..10)
	MaxAttempts      int       // Generation attempt budget
	Temperatures     []float64 // Per-attempt temperature schedule
	GenerationModel  string
	ValidationModel  string
	AssessmentModel  string
	MaxTokens        int // Completion budget per generation call
}

// DefaultConfig returns the production defaults: threshold 7, three attempts,
// a schedule that probes hotter on the second attempt and cools down on the
// last one.
func DefaultConfig() Config {
	return Config{
		QualityThreshold: 7,
		MaxAttempts:      3,
		Temperatures:     []float64{0.7, 0.8, 0.6},
		MaxTokens:        4096,
	}
}

// temperatureFor returns the temperature for a 1-based attempt number; the
// schedule's last entry applies to any attempts beyond its length.
func (c Config) temperatureFor(attempt int) float64 {
	if len(c.Temperatures) == 0 {
		return 0.7
	}
	idx := attempt - 1
	if idx >= len(c.Temperatures) {
		idx = len(c.Temperatures) - 1
	}
	return c.Temperatures[idx]
}

func (c Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be >= 1, got %d", c.MaxAttempts)
	}
	if c.QualityThreshold < 1 || c.QualityThreshold > 10 {
		return fmt.Errorf("qualityThreshold must be in 1..10, got %d", c.QualityThreshold)
	}
	return nil
}

// Workflow drives one generation request through the quality-control
// pipeline: validate, generate, assess, iterate, select. A Workflow instance
// is read-only after construction and safe for concurrent Execute calls;
// every call owns its WorkflowState exclusively.
type Workflow struct {
	cfg       Config
	generator StoryGenerator
	validator *PromptValidator
	assessor  *QualityAssessor
	renderer  PromptRenderer
	logger    *zap.Logger
}

// NewWorkflow wires a workflow from its collaborators. Nil collaborators are
// construction-time programming errors.
func NewWorkflow(
	cfg Config,
	generator StoryGenerator,
	validator *PromptValidator,
	assessor *QualityAssessor,
	renderer PromptRenderer,
	logger *zap.Logger,
) (*Workflow, error) {
	if generator == nil {
		return nil, fmt.Errorf("story generator is nil")
	}
	if validator == nil {
		return nil, fmt.Errorf("prompt validator is nil")
	}
	if assessor == nil {
		return nil, fmt.Errorf("quality assessor is nil")
	}
	if renderer == nil {
		return nil, fmt.Errorf("prompt renderer is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		cfg:       cfg,
		generator: generator,
		validator: validator,
		assessor:  assessor,
		renderer:  renderer,
		logger:    logger.Named("Workflow"),
	}, nil
}

// Execute runs the full pipeline for one request and returns the final state.
// It never panics and never returns an error: every failure is encoded in
// the state (FAILED with fatalError, or REJECTED with error messages).
func (w *Workflow) Execute(ctx context.Context, generationID, userID string, params model.StoryParameters) (st *WorkflowState) {
	st = NewWorkflowState(generationID, userID, params)
	log := w.logger.With(zap.String("generationID", generationID), zap.String("userID", userID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Workflow panicked", zap.Any("panic", r))
			st.setFatal(fmt.Sprintf("internal error: %v", r))
		}
		log.Info("Workflow finished",
			zap.String("status", string(st.Status)),
			zap.Int("attempts", len(st.Attempts)),
			zap.Duration("total", time.Since(st.StartTime)))
	}()

	if err := w.cfg.validate(); err != nil {
		st.setFatal(fmt.Sprintf("invalid workflow configuration: %v", err))
		return st
	}

	w.transition(st, EventStart)

	// The prompt pair is rendered once: the inputs are immutable for the
	// whole run, so every attempt reuses it with a different temperature.
	var systemPrompt, userPrompt string

	for !st.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			st.setFatal(fmt.Sprintf("workflow cancelled: %v", err))
			return st
		}

		switch st.Status {
		case StatusValidating:
			w.runValidation(ctx, st, log)

		case StatusGenerating:
			if systemPrompt == "" && userPrompt == "" {
				var err error
				systemPrompt, userPrompt, err = w.renderer.RenderStoryPrompt(ctx, params)
				if err != nil {
					st.setFatal(fmt.Sprintf("failed to render story prompt: %v", err))
					return st
				}
			}
			w.runGeneration(ctx, st, systemPrompt, userPrompt, log)

		case StatusAssessing:
			w.runAssessment(ctx, st, log)

		default:
			st.setFatal(fmt.Sprintf("workflow reached unexpected status %q", st.Status))
		}
	}

	return st
}

// transition applies the state machine table; an invalid pair is a
// programming error and fails the run.
func (w *Workflow) transition(st *WorkflowState, event Event) {
	next, err := Next(st.Status, event)
	if err != nil {
		st.setFatal(err.Error())
		return
	}
	st.Status = next
}

// runValidation executes the validator gate. Rejection is a normal terminal
// outcome, not an error.
func (w *Workflow) runValidation(ctx context.Context, st *WorkflowState, log *zap.Logger) {
	started := time.Now()
	result := w.validator.Validate(ctx, st.Params)
	st.Timings.Validation = time.Since(started)
	st.ValidationResult = &result

	if result.Recommendation != RecommendationApproved {
		reason := result.Reasoning
		if reason == "" {
			reason = "request rejected by safety validation"
		}
		st.addError(fmt.Sprintf("validation rejected: %s", reason))
		log.Info("Validation rejected the request",
			zap.Strings("issues", result.DetectedIssues),
			zap.Duration("took", st.Timings.Validation))
		w.transition(st, EventRejected)
		return
	}

	log.Info("Validation approved the request", zap.Duration("took", st.Timings.Validation))
	w.transition(st, EventApproved)
}

// runGeneration performs one generation attempt. A transport failure is
// recorded on the attempt and consumes its slot; the tail detector cleans
// successful content before it reaches the assessor.
func (w *Workflow) runGeneration(ctx context.Context, st *WorkflowState, systemPrompt, userPrompt string, log *zap.Logger) {
	if st.CurrentAttempt >= w.cfg.MaxAttempts {
		st.setFatal(fmt.Sprintf("attempt budget overrun: attempt %d of %d", st.CurrentAttempt+1, w.cfg.MaxAttempts))
		return
	}
	st.CurrentAttempt++
	attemptNo := st.CurrentAttempt
	temperature := w.cfg.temperatureFor(attemptNo)

	started := time.Now()
	out, err := w.generator.GenerateStory(ctx, GenerationRequest{
		UserID:       st.UserID,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		ModelID:      w.cfg.GenerationModel,
		Temperature:  temperature,
		MaxTokens:    w.cfg.MaxTokens,
	})
	took := time.Since(started)
	st.Timings.Generation += took

	attempt := GenerationAttempt{
		AttemptNumber:  attemptNo,
		Temperature:    temperature,
		GenerationTime: took,
		Timestamp:      time.Now(),
	}

	if err != nil {
		attempt.Error = err.Error()
		st.appendAttempt(attempt)
		// Placeholder keeps assessments index-aligned; score 0 marks the
		// attempt as excluded from selection.
		st.appendAssessment(QualityAssessment{
			Feedback:  fmt.Sprintf("generation failed: %v", err),
			Timestamp: time.Now(),
		})
		st.addError(fmt.Sprintf("attempt %d generation failed: %v", attemptNo, err))
		log.Warn("Generation attempt failed",
			zap.Int("attempt", attemptNo), zap.Duration("took", took), zap.Error(err))

		if attemptNo < w.cfg.MaxAttempts {
			w.transition(st, EventRetry)
			return
		}
		w.finishExhausted(st, log)
		return
	}

	hadTail, content := DetectAndTrimTail(out.Content)
	if hadTail {
		log.Info("Gibberish tail trimmed from generated story",
			zap.Int("attempt", attemptNo),
			zap.Int("original_length", len(out.Content)),
			zap.Int("trimmed_length", len(content)))
	}

	attempt.Content = content
	attempt.Title = out.Title
	attempt.TokensUsed = out.TokensUsed
	attempt.ModelUsed = out.ModelUsed
	attempt.TailTrimmed = hadTail
	st.appendAttempt(attempt)

	log.Info("Generation attempt completed",
		zap.Int("attempt", attemptNo),
		zap.Float64("temperature", temperature),
		zap.Int("words", len(content)/5),
		zap.Duration("took", took))
	w.transition(st, EventAttemptReady)
}

// runAssessment scores the latest attempt and routes: accept, retry with the
// next temperature, or select the best attempt when the budget is spent.
func (w *Workflow) runAssessment(ctx context.Context, st *WorkflowState, log *zap.Logger) {
	attempt := st.Attempts[len(st.Attempts)-1]

	started := time.Now()
	assessment := w.assessor.Assess(ctx, attempt.Content, st.Params)
	took := time.Since(started)
	st.Timings.Assessment += took
	st.appendAssessment(assessment)

	log.Info("Attempt assessed",
		zap.Int("attempt", attempt.AttemptNumber),
		zap.Int("overall_score", assessment.OverallScore),
		zap.Duration("took", took))

	if assessment.OverallScore >= w.cfg.QualityThreshold {
		w.selectBest(st, fmt.Sprintf("threshold met on attempt %d", attempt.AttemptNumber))
		w.transition(st, EventAccepted)
		return
	}

	if st.CurrentAttempt < w.cfg.MaxAttempts {
		st.addError(fmt.Sprintf("attempt %d scored %d, below threshold %d",
			attempt.AttemptNumber, assessment.OverallScore, w.cfg.QualityThreshold))
		w.transition(st, EventRetry)
		return
	}

	w.finishExhausted(st, log)
}

// finishExhausted closes the run after the attempt budget is spent: the best
// scored attempt wins, or the run fails when nothing was ever generated.
func (w *Workflow) finishExhausted(st *WorkflowState, log *zap.Logger) {
	bestIdx := bestAssessmentIndex(st.Assessments)
	if bestIdx < 0 {
		lastErr := ""
		if len(st.ErrorMessages) > 0 {
			lastErr = ": " + st.ErrorMessages[len(st.ErrorMessages)-1]
		}
		st.setFatal(fmt.Sprintf("all %d generation attempts failed%s", len(st.Attempts), lastErr))
		log.Error("Workflow exhausted attempts with no usable content")
		return
	}
	w.selectBest(st, fmt.Sprintf("max attempts exhausted, best of %d", len(st.Attempts)))
	w.transition(st, EventBudgetExhausted)
}

// selectBest records the final selection. Policy: maximum overall score, ties
// broken by the lowest attempt number (the earliest attempt wins).
func (w *Workflow) selectBest(st *WorkflowState, reason string) {
	idx := bestAssessmentIndex(st.Assessments)
	if idx < 0 || idx >= len(st.Attempts) {
		st.setFatal("selection requested with no scored attempts")
		return
	}
	attempt := st.Attempts[idx]
	st.Best = &BestStory{
		AttemptNumber:   attempt.AttemptNumber,
		Title:           attempt.Title,
		Content:         attempt.Content,
		OverallScore:    st.Assessments[idx].OverallScore,
		SelectionReason: reason,
		AllScores:       st.overallScores(),
	}
}

// bestAssessmentIndex returns the index of the highest-scoring assessment
// with a positive score, preferring the earliest on ties; -1 when no attempt
// produced scoreable content.
func bestAssessmentIndex(assessments []QualityAssessment) int {
	best := -1
	for i, a := range assessments {
		if a.OverallScore <= 0 {
			continue
		}
		if best < 0 || a.OverallScore > assessments[best].OverallScore {
			best = i
		}
	}
	return best
}
