package activities

import (
	"github.com/deepscout/orchestrator/internal/llm"
	"github.com/deepscout/orchestrator/internal/reportstore"
	"github.com/deepscout/orchestrator/internal/research"
	"github.com/deepscout/orchestrator/internal/tools"
)

// Activity names registered with the worker and referenced by workflows.
const (
	ClarifyQueryActivity        = "ClarifyQuery"
	PlanResearchActivity        = "PlanResearch"
	DecomposeRequestActivity    = "DecomposeRequest"
	ExecuteResearchTaskActivity = "ExecuteResearchTask"
	AssessResearchActivity      = "AssessResearch"
	SynthesizeReportActivity    = "SynthesizeReport"
	PersistFinalReportActivity  = "PersistFinalReport"
)

// Activities holds the external collaborators injected into every stage.
// The tool invoker is shared read-only across concurrent workers; the
// store may be nil when persistence is not configured.
type Activities struct {
	Gen         llm.Generator
	Tools       tools.Invoker
	Store       *reportstore.Store
	Credibility *research.CredibilityConfig
}

// NewActivities wires the stage implementations. A nil credibility
// config falls back to the built-in defaults.
func NewActivities(gen llm.Generator, inv tools.Invoker, store *reportstore.Store, cred *research.CredibilityConfig) *Activities {
	return &Activities{Gen: gen, Tools: inv, Store: store, Credibility: cred}
}

// ResearchTask is one fully self-contained unit of delegation. A worker
// executes it with no visibility into sibling tasks.
type ResearchTask struct {
	OriginalRequest string `json:"original_request"`
	Topic           string `json:"topic"`
}

// ToolCallRecord is per-worker budget bookkeeping. It never leaves the
// worker except for observability.
type ToolCallRecord struct {
	Kind        string `json:"kind"` // retrieval|web_search|note
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
}

// ClarifyInput feeds the clarification gate. Round is tracked by the
// caller; the gate itself is stateless.
type ClarifyInput struct {
	Messages           []string `json:"messages"`
	Round              int      `json:"round"`
	MaxFinalStatements int      `json:"max_final_statements"`
}

// PlanInput feeds the planner.
type PlanInput struct {
	RecentMessages string   `json:"recent_messages"`
	SearchTopics   []string `json:"search_topics"`
	MaxTopics      int      `json:"max_topics"`
	PlanSteps      int      `json:"plan_steps"`
}

// ResearchPlan is a validated planner output: at most MaxTopics expanded
// topics and exactly PlanSteps pairwise-distinct steps. Immutable once
// produced.
type ResearchPlan struct {
	ExpandedTopics []string `json:"expanded_topics"`
	Steps          []string `json:"steps"`
}

// DecomposeInput feeds the delegation judgment.
type DecomposeInput struct {
	Request  string `json:"request"`
	MaxTasks int    `json:"max_tasks"`
}

// DecomposeResult carries the tasks for the supervisor's first dispatch
// round.
type DecomposeResult struct {
	Tasks     []ResearchTask `json:"tasks"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// ResearchTaskInput feeds one worker execution.
type ResearchTaskInput struct {
	Task         ResearchTask `json:"task"`
	MaxToolCalls int          `json:"max_tool_calls"`
	RetrieveTopK int          `json:"retrieve_top_k"`
}

// SubagentResult is a worker's terminal output. Ownership transfers to
// the supervisor once returned.
type SubagentResult struct {
	Report      string                       `json:"report"`
	References  []string                     `json:"references"`
	Answer      research.AnswerWithCitations `json:"answer"`
	SearchCalls int                          `json:"search_calls"`
	StopReason  string                       `json:"stop_reason"`
}

// AssessmentInput feeds the supervisor's stop/continue judgment.
type AssessmentInput struct {
	OriginalRequest string   `json:"original_request"`
	Reports         []string `json:"reports"`
	Iteration       int      `json:"iteration"`
	MaxIterations   int      `json:"max_iterations"`
	MaxTasks        int      `json:"max_tasks"`
}

// AssessmentResult is the advisory decision after deterministic
// guardrails have been applied.
type AssessmentResult struct {
	Sufficient    bool           `json:"sufficient"`
	Reasoning     string         `json:"reasoning"`
	FollowUpTasks []ResearchTask `json:"follow_up_tasks,omitempty"`
}

// SynthesizeInput feeds final report synthesis.
type SynthesizeInput struct {
	OriginalRequest string                     `json:"original_request"`
	Collection      research.AnswersCollection `json:"collection"`
}

// SynthesizeResult carries the final report in both structured and
// rendered form.
type SynthesizeResult struct {
	Report   research.FinalReport   `json:"report"`
	Markdown string                 `json:"markdown"`
	Stats    research.CitationStats `json:"stats"`
}

// PersistReportInput feeds best-effort report persistence.
type PersistReportInput struct {
	WorkflowID     string                 `json:"workflow_id"`
	Request        string                 `json:"request"`
	Markdown       string                 `json:"markdown"`
	Stats          research.CitationStats `json:"stats"`
	TaskCount      int                    `json:"task_count"`
	IterationCount int                    `json:"iteration_count"`
}
