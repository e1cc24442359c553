package generation

import (
	"time"

	"bedtime-server/internal/model"
)

// Recommendation is the validator's binary gate output.
type Recommendation string

const (
	RecommendationApproved Recommendation = "approved"
	RecommendationRejected Recommendation = "rejected"
)

// ValidationResult is the immutable verdict of the prompt validator.
// It is produced at most once per workflow run and never overwritten.
type ValidationResult struct {
	IsSafe                bool           `json:"is_safe"`
	HasLicensedCharacters bool           `json:"has_licensed_characters"`
	IsAgeAppropriate      bool           `json:"is_age_appropriate"`
	DetectedIssues        []string       `json:"detected_issues,omitempty"`
	Reasoning             string         `json:"reasoning,omitempty"`
	Recommendation        Recommendation `json:"recommendation"`
	Timestamp             time.Time      `json:"timestamp"`
}

// GenerationAttempt records one call to the story-generation capability.
// Appended to the state once and never mutated afterwards.
type GenerationAttempt struct {
	AttemptNumber  int           `json:"attempt_number"` // 1-based
	Content        string        `json:"content"`        // Possibly trimmed by the tail detector
	Title          string        `json:"title,omitempty"`
	ModelUsed      string        `json:"model_used,omitempty"`
	Temperature    float64       `json:"temperature"`
	TokensUsed     int           `json:"tokens_used,omitempty"`
	GenerationTime time.Duration `json:"generation_time"`
	TailTrimmed    bool          `json:"tail_trimmed,omitempty"` // Gibberish tail was detected and cut
	Error          string        `json:"error,omitempty"`        // Transport-level failure of this attempt
	Timestamp      time.Time     `json:"timestamp"`
}

// QualityAssessment scores one attempt across the review rubrics.
// Index-aligned with the attempt that produced it. An attempt that failed at
// the transport level gets a placeholder assessment with OverallScore 0 so
// the alignment invariant holds; real scores are always in 1..10.
type QualityAssessment struct {
	OverallScore           int       `json:"overall_score"`
	AgeAppropriateness     int       `json:"age_appropriateness"`
	MoralClarity           int       `json:"moral_clarity"`
	NarrativeCoherence     int       `json:"narrative_coherence"`
	CharacterConsistency   int       `json:"character_consistency"`
	Engagement             int       `json:"engagement"`
	LanguageQuality        int       `json:"language_quality"`
	Feedback               string    `json:"feedback,omitempty"`
	ImprovementSuggestions []string  `json:"improvement_suggestions,omitempty"`
	Timestamp              time.Time `json:"timestamp"`
}

// BestStory is the final selection, set exactly once at terminal SUCCESS.
type BestStory struct {
	AttemptNumber   int    `json:"attempt_number"`
	Title           string `json:"title,omitempty"`
	Content         string `json:"content"`
	OverallScore    int    `json:"overall_score"`
	SelectionReason string `json:"selection_reason"`
	AllScores       []int  `json:"all_scores"` // Overall scores in attempt order
}

// StageTimings holds the duration of each pipeline stage. Validation runs
// once; generation and assessment values are CUMULATIVE SUMS across attempts.
type StageTimings struct {
	Validation time.Duration `json:"validation"`
	Generation time.Duration `json:"generation"`
	Assessment time.Duration `json:"assessment"`
}

// WorkflowState is the single mutable record of one generation request.
// It is owned exclusively by the workflow execution that created it: exactly
// one writer for its whole lifetime, no persistence inside the core.
type WorkflowState struct {
	GenerationID string                `json:"generation_id"`
	UserID       string                `json:"user_id"`
	Params       model.StoryParameters `json:"params"`

	Status         WorkflowStatus `json:"status"`
	CurrentAttempt int            `json:"current_attempt"`
	StartTime      time.Time      `json:"start_time"`

	ValidationResult *ValidationResult   `json:"validation_result,omitempty"`
	Attempts         []GenerationAttempt `json:"generation_attempts"`
	Assessments      []QualityAssessment `json:"quality_assessments"`
	Best             *BestStory          `json:"best_story,omitempty"`

	ErrorMessages []string `json:"error_messages,omitempty"`
	FatalError    string   `json:"fatal_error,omitempty"`

	Timings StageTimings `json:"timings"`
}

// NewWorkflowState creates the initial PENDING state for one request.
func NewWorkflowState(generationID, userID string, params model.StoryParameters) *WorkflowState {
	return &WorkflowState{
		GenerationID: generationID,
		UserID:       userID,
		Params:       params,
		Status:       StatusPending,
		StartTime:    time.Now(),
	}
}

// appendAttempt adds an attempt record; attempts are append-only and ordered.
func (s *WorkflowState) appendAttempt(a GenerationAttempt) {
	s.Attempts = append(s.Attempts, a)
}

// appendAssessment adds the assessment for the most recent attempt.
func (s *WorkflowState) appendAssessment(a QualityAssessment) {
	s.Assessments = append(s.Assessments, a)
}

// addError records a human-readable failure note without terminating the run.
func (s *WorkflowState) addError(msg string) {
	if msg == "" {
		return
	}
	s.ErrorMessages = append(s.ErrorMessages, msg)
}

// setFatal marks the run as unrecoverably failed. Only the first fatal error
// is kept; by invariant no stage runs after it is set.
func (s *WorkflowState) setFatal(msg string) {
	if s.FatalError == "" {
		s.FatalError = msg
	}
	s.addError(msg)
	s.Status = StatusFailed
}

// overallScores returns the overall score of every assessment in attempt order.
func (s *WorkflowState) overallScores() []int {
	scores := make([]int, 0, len(s.Assessments))
	for _, a := range s.Assessments {
		scores = append(scores, a.OverallScore)
	}
	return scores
}

// Result is the projection of a finished WorkflowState handed to the caller
// (the API/persistence layer); the core itself stores nothing.
type Result struct {
	GenerationID    string         `json:"generation_id"`
	Status          WorkflowStatus `json:"status"`
	Success         bool           `json:"success"`
	Title           string         `json:"title,omitempty"`
	Content         string         `json:"content,omitempty"`
	QualityScore    int            `json:"quality_score,omitempty"`
	AttemptCount    int            `json:"attempt_count"`
	SelectionReason string         `json:"selection_reason,omitempty"`
	TokensUsed      int            `json:"tokens_used,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	Timings         StageTimings   `json:"timings"`
}

// Result flattens the state into the caller-facing summary. A rejected or
// failed workflow always carries a non-empty reason string.
func (s *WorkflowState) Result() Result {
	r := Result{
		GenerationID: s.GenerationID,
		Status:       s.Status,
		Success:      s.Status == StatusSuccess,
		AttemptCount: len(s.Attempts),
		Timings:      s.Timings,
	}
	for _, a := range s.Attempts {
		r.TokensUsed += a.TokensUsed
	}
	if s.Best != nil {
		r.Title = s.Best.Title
		r.Content = s.Best.Content
		r.QualityScore = s.Best.OverallScore
		r.SelectionReason = s.Best.SelectionReason
	}
	if !r.Success {
		switch {
		case s.FatalError != "":
			r.ErrorMessage = s.FatalError
		case len(s.ErrorMessages) > 0:
			r.ErrorMessage = s.ErrorMessages[len(s.ErrorMessages)-1]
		default:
			r.ErrorMessage = "generation did not complete"
		}
	}
	return r
}
