// Package workflows hosts the durable research pipeline: a clarification
// gate, a planner, a supervisor that fans research tasks out to bounded
// concurrent workers, and final synthesis with citation integrity
// enforcement. All numeric bounds travel in the workflow input so a run
// is replayable against the limits it started with.
package workflows

import (
	"github.com/deepscout/orchestrator/internal/activities"
	"github.com/deepscout/orchestrator/internal/research"
)

// Limits carries the hard numeric bounds of one pipeline run.
type Limits struct {
	MaxClarificationRounds int `json:"max_clarification_rounds"`
	MaxConcurrentUnits     int `json:"max_concurrent_units"`
	MaxIterations          int `json:"max_iterations"`
	MaxToolCallsPerWorker  int `json:"max_tool_calls_per_worker"`
	MaxFinalStatements     int `json:"max_final_statements"`
	MaxTopics              int `json:"max_topics"`
	PlanSteps              int `json:"plan_steps"`
	RetrieveTopK           int `json:"retrieve_top_k"`
}

// withDefaults fills zero fields with the standard bounds.
func (l Limits) withDefaults() Limits {
	if l.MaxClarificationRounds <= 0 {
		l.MaxClarificationRounds = 2
	}
	if l.MaxConcurrentUnits <= 0 {
		l.MaxConcurrentUnits = 3
	}
	if l.MaxIterations <= 0 {
		l.MaxIterations = 3
	}
	if l.MaxToolCallsPerWorker <= 0 {
		l.MaxToolCallsPerWorker = 3
	}
	if l.MaxFinalStatements <= 0 {
		l.MaxFinalStatements = 3
	}
	if l.MaxTopics <= 0 {
		l.MaxTopics = 10
	}
	if l.PlanSteps <= 0 {
		l.PlanSteps = 3
	}
	if l.RetrieveTopK <= 0 {
		l.RetrieveTopK = 3
	}
	return l
}

// ResearchInput starts or resumes one pipeline run. Messages is the full
// user conversation so far, oldest first; Round counts clarifying
// questions already asked across previous invocations.
type ResearchInput struct {
	Messages []string `json:"messages"`
	Round    int      `json:"round"`
	Limits   Limits   `json:"limits"`
}

// ResearchOutput is the pipeline's terminal state. Exactly one of
// Question or Report is set: a non-empty Question asks the caller to
// collect another user message and re-invoke with Round incremented.
type ResearchOutput struct {
	Question string `json:"question,omitempty"`
	Round    int    `json:"round"`

	Plan       *activities.ResearchPlan `json:"plan,omitempty"`
	Report     *research.FinalReport    `json:"report,omitempty"`
	Markdown   string                   `json:"markdown,omitempty"`
	Stats      research.CitationStats   `json:"stats,omitempty"`
	TaskCount  int                      `json:"task_count"`
	Iterations int                      `json:"iterations"`
}
