package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/deepscout/orchestrator/internal/llm"
	ometrics "github.com/deepscout/orchestrator/internal/metrics"
	"github.com/deepscout/orchestrator/internal/research"
	"github.com/deepscout/orchestrator/internal/tools"
)

// Worker stop reasons, in priority order.
const (
	stopConfident   = "confident_answer"
	stopSources     = "enough_sources"
	stopDiminishing = "diminishing_returns"
	stopBudget      = "budget_exhausted"
)

// ToolCallRecord kinds.
const (
	toolKindRetrieval = "retrieval"
	toolKindWeb       = "web_search"
	toolKindNote      = "note"
)

// ExecuteResearchTask runs one worker's budgeted search loop for a single
// delegated topic. The local index is queried before the web backend for
// the same sub-question; every search-type invocation counts against the
// budget, reflections do not. Stop conditions are checked after each
// reflection as an explicit ordered list so tie-breaks are reproducible:
// confident answer, then two distinct sources, then diminishing returns,
// then budget.
func (a *Activities) ExecuteResearchTask(ctx context.Context, in ResearchTaskInput) (*SubagentResult, error) {
	logger := activity.GetLogger(ctx)
	budget := in.MaxToolCalls
	if budget <= 0 {
		budget = 3
	}
	topK := in.RetrieveTopK
	if topK <= 0 {
		topK = 3
	}

	ometrics.TasksDispatched.Inc()
	logger.Info("research task started",
		"topic", in.Task.Topic,
		"search_budget", budget,
	)

	loop := &searchLoop{
		act:    a,
		task:   in.Task,
		budget: budget,
		topK:   topK,
		seen:   make(map[string]struct{}),
	}

	query := in.Task.Topic
	stopReason := ""
	for loop.searchCalls() < budget && stopReason == "" {
		docs := loop.search(ctx, query)

		reflection := loop.reflect(ctx, query, docs)
		_ = a.Tools.Note(ctx, reflection.Thought)
		loop.record(toolKindNote, reflection.Thought, 0)

		switch {
		case reflection.CanAnswer:
			stopReason = stopConfident
		case len(loop.seen) >= 2:
			stopReason = stopSources
		case loop.lastTwoSimilar():
			stopReason = stopDiminishing
		case loop.searchCalls() >= budget:
			stopReason = stopBudget
		default:
			query = reflection.NextQuery
			if strings.TrimSpace(query) == "" {
				query = in.Task.Topic + " details"
			}
		}
	}
	if stopReason == "" {
		stopReason = stopBudget
	}

	ometrics.WorkerSearchCalls.Observe(float64(loop.searchCalls()))
	logger.Info("research loop finished",
		"topic", in.Task.Topic,
		"searches", loop.searchCalls(),
		"tool_calls", len(loop.calls),
		"sources", len(loop.seen),
		"stop_reason", stopReason,
	)

	result, err := a.composeAnswer(ctx, in.Task, loop)
	if err != nil {
		return nil, err
	}
	result.SearchCalls = loop.searchCalls()
	result.StopReason = stopReason
	return result, nil
}

// searchLoop tracks one worker's gathered documents and budget state.
type searchLoop struct {
	act    *Activities
	task   ResearchTask
	budget int
	topK   int

	calls    []ToolCallRecord
	gathered []tools.Document
	seen     map[string]struct{} // distinct source keys
	rounds   [][]string          // source keys per search, for similarity
}

// record appends one tool invocation to the worker's bookkeeping.
func (l *searchLoop) record(kind, query string, results int) {
	l.calls = append(l.calls, ToolCallRecord{Kind: kind, Query: query, ResultCount: results})
}

// searchCalls counts the budget-consuming invocations; notes are free.
func (l *searchLoop) searchCalls() int {
	n := 0
	for _, c := range l.calls {
		if c.Kind != toolKindNote {
			n++
		}
	}
	return n
}

// search runs one search round: local retrieval first, web search as a
// fallback when retrieval errors or yields nothing usable and budget
// remains. Tool errors are skipped, never fatal to the worker.
func (l *searchLoop) search(ctx context.Context, query string) []tools.Document {
	logger := activity.GetLogger(ctx)

	docs, err := l.act.Tools.Retrieve(ctx, query, l.topK)
	if err != nil {
		logger.Warn("retrieval failed", "query", query, "error", err)
		docs = nil
	}
	l.record(toolKindRetrieval, query, len(docs))
	if len(docs) == 0 && l.searchCalls() < l.budget {
		webDocs, err := l.act.Tools.WebSearch(ctx, query)
		if err != nil {
			logger.Warn("web search failed", "query", query, "error", err)
		} else {
			docs = webDocs
		}
		l.record(toolKindWeb, query, len(docs))
	}

	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		key := sourceKey(d)
		keys = append(keys, key)
		if _, dup := l.seen[key]; !dup {
			l.seen[key] = struct{}{}
			l.gathered = append(l.gathered, d)
		}
	}
	l.rounds = append(l.rounds, keys)
	return docs
}

// reflect asks the generator for a strategic pause. Reflection failures
// degrade to a neutral "keep searching" so a generation hiccup cannot
// stall the loop.
func (l *searchLoop) reflect(ctx context.Context, query string, docs []tools.Document) *llm.Reflection {
	sources := make([]string, 0, len(l.seen))
	for k := range l.seen {
		sources = append(sources, k)
	}
	reflection, err := l.act.Gen.Reflect(ctx, llm.ReflectionInput{
		OriginalRequest: l.task.OriginalRequest,
		Topic:           l.task.Topic,
		LastQuery:       query,
		ResultDigest:    digest(docs),
		SearchesUsed:    l.searchCalls(),
		SearchBudget:    l.budget,
		DistinctSources: sources,
	})
	if err != nil {
		activity.GetLogger(ctx).Warn("reflection failed", "error", err)
		return &llm.Reflection{
			Thought: fmt.Sprintf("search %d of %d for %q returned %d results", l.searchCalls(), l.budget, query, len(docs)),
		}
	}
	return reflection
}

// lastTwoSimilar reports whether the last two searches returned
// materially similar information: at least half of the smaller result
// set's sources appeared in both.
func (l *searchLoop) lastTwoSimilar() bool {
	n := len(l.rounds)
	if n < 2 {
		return false
	}
	prev, last := l.rounds[n-2], l.rounds[n-1]
	if len(prev) == 0 || len(last) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(prev))
	for _, k := range prev {
		set[k] = struct{}{}
	}
	shared := 0
	for _, k := range last {
		if _, ok := set[k]; ok {
			shared++
		}
	}
	smaller := len(prev)
	if len(last) < smaller {
		smaller = len(last)
	}
	return shared*2 >= smaller
}

// composeAnswer produces the worker's report and cited answer from the
// gathered documents. References and statement citations are restricted
// to sources actually returned by this worker's tool calls; anything
// else is stripped, never fabricated.
func (a *Activities) composeAnswer(ctx context.Context, task ResearchTask, loop *searchLoop) (*SubagentResult, error) {
	logger := activity.GetLogger(ctx)

	compDocs := make([]llm.ComposeDocument, 0, len(loop.gathered))
	for _, d := range loop.gathered {
		compDocs = append(compDocs, llm.ComposeDocument{Content: d.Content, URL: d.URL, Title: d.Title})
	}
	in := llm.ComposeInput{
		OriginalRequest: task.OriginalRequest,
		Topic:           task.Topic,
		Documents:       compDocs,
	}

	comp, err := a.Gen.Compose(ctx, in)
	if err != nil {
		var decodeErr *llm.DecodeError
		if !errors.As(err, &decodeErr) {
			return nil, err
		}
		logger.Warn("composition malformed, retrying once", "error", err)
		comp, err = a.Gen.Compose(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("compose: retry failed: %w", err)
		}
	}

	gathered := make(map[string]struct{}, len(loop.gathered))
	gatheredCitations := make(map[research.Citation]struct{}, len(loop.gathered))
	for _, d := range loop.gathered {
		gathered[sourceKey(d)] = struct{}{}
		if d.URL != "" || d.Title != "" {
			gatheredCitations[research.Citation{URL: d.URL, Title: d.Title}] = struct{}{}
		}
	}

	var refs []string
	for _, r := range comp.References {
		if _, ok := gathered[r]; ok {
			refs = append(refs, r)
		}
	}

	answer := comp.Answer
	for i := range answer.Statements {
		c := answer.Statements[i].Citation
		if c == nil || c.Empty() {
			continue
		}
		if _, ok := gatheredCitations[*c]; !ok {
			logger.Warn("stripping citation not backed by a tool result",
				"url", c.URL, "title", c.Title)
			answer.Statements[i].Citation = nil
		}
	}

	return &SubagentResult{
		Report:     comp.Report,
		References: refs,
		Answer:     answer,
	}, nil
}

// sourceKey identifies a document by URL, falling back to title, then a
// content prefix for sources without stable locators.
func sourceKey(d tools.Document) string {
	if d.URL != "" {
		return d.URL
	}
	if d.Title != "" {
		return d.Title
	}
	content := d.Content
	if len(content) > 80 {
		content = content[:80]
	}
	return content
}

// digest summarizes search results for the reflection prompt.
func digest(docs []tools.Document) string {
	if len(docs) == 0 {
		return "no results"
	}
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("; ")
		}
		title := d.Title
		if title == "" {
			title = sourceKey(d)
		}
		snippet := d.Content
		if len(snippet) > 120 {
			snippet = snippet[:120]
		}
		fmt.Fprintf(&sb, "[%s] %s", title, snippet)
	}
	return sb.String()
}
