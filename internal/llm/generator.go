// Package llm abstracts the generation capability behind typed,
// structured-output calls. Every decision it returns is advisory; hard
// numeric bounds are layered on top by the callers and are the final
// enforcement authority.
package llm

import (
	"context"
	"fmt"

	"github.com/deepscout/orchestrator/internal/research"
)

// DecodeError reports model output that does not conform to the expected
// structured shape. Callers recover with one bounded retry.
type DecodeError struct {
	Template string
	Reason   string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm: %s output invalid: %s: %v", e.Template, e.Reason, e.Err)
	}
	return fmt.Sprintf("llm: %s output invalid: %s", e.Template, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ClarificationDecision is the gate's verdict on accumulated user
// messages. Question is present iff NeedsClarification; FinalStatements
// is non-empty iff the gate is satisfied.
type ClarificationDecision struct {
	NeedsClarification bool     `json:"needs_clarification"`
	Question           string   `json:"question,omitempty"`
	FinalStatements    []string `json:"final_statements,omitempty"`
}

// PlanDraft is the planner's raw output before caller-side validation.
type PlanDraft struct {
	ReasoningOnTopics string   `json:"reasoning_on_topics"`
	ExpandedTopics    []string `json:"expanded_topics"`
	ReasoningOnPlan   string   `json:"reasoning_on_plan"`
	Steps             []string `json:"plan"`
}

// Decomposition is the delegation judgment: one topic per clearly
// separable entity when the request is comparative, a single topic
// otherwise.
type Decomposition struct {
	Reasoning string   `json:"reasoning"`
	Topics    []string `json:"topics"`
}

// ReflectionInput feeds a worker's post-search reflection.
type ReflectionInput struct {
	OriginalRequest string   `json:"original_request"`
	Topic           string   `json:"topic"`
	LastQuery       string   `json:"last_query"`
	ResultDigest    string   `json:"result_digest"`
	SearchesUsed    int      `json:"searches_used"`
	SearchBudget    int      `json:"search_budget"`
	DistinctSources []string `json:"distinct_sources"`
}

// Reflection is the worker's strategic pause after a search.
type Reflection struct {
	Thought   string `json:"thought"`
	CanAnswer bool   `json:"can_answer"`
	NextQuery string `json:"next_query,omitempty"`
}

// ComposeInput asks for a cited answer from gathered documents.
type ComposeInput struct {
	OriginalRequest string            `json:"original_request"`
	Topic           string            `json:"topic"`
	Documents       []ComposeDocument `json:"documents"`
}

// ComposeDocument is one gathered passage offered as context.
type ComposeDocument struct {
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Composition is a worker's terminal output draft.
type Composition struct {
	Report     string                       `json:"report"`
	References []string                     `json:"references"`
	Answer     research.AnswerWithCitations `json:"answer"`
}

// AssessInput feeds the supervisor's stop/continue judgment.
type AssessInput struct {
	OriginalRequest string   `json:"original_request"`
	Reports         []string `json:"reports"`
	Iteration       int      `json:"iteration"`
	MaxIterations   int      `json:"max_iterations"`
}

// Assessment is the supervisor's advisory stop/continue decision, with
// optional narrower follow-up topics when continuing.
type Assessment struct {
	Sufficient     bool     `json:"sufficient"`
	Reasoning      string   `json:"reasoning"`
	FollowUpTopics []string `json:"follow_up_topics,omitempty"`
}

// Generator is the generation capability consumed by every stage. All
// methods may fail with a *DecodeError when the model's output does not
// conform to the expected shape.
type Generator interface {
	Clarify(ctx context.Context, messages []string) (*ClarificationDecision, error)
	Plan(ctx context.Context, recentMessages string, searchTopics []string) (*PlanDraft, error)
	Decompose(ctx context.Context, request string) (*Decomposition, error)
	Reflect(ctx context.Context, in ReflectionInput) (*Reflection, error)
	Compose(ctx context.Context, in ComposeInput) (*Composition, error)
	Assess(ctx context.Context, in AssessInput) (*Assessment, error)
	Synthesize(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error)
}
