package activities

import (
	"context"
	"fmt"
	"sync"

	"github.com/deepscout/orchestrator/internal/llm"
	"github.com/deepscout/orchestrator/internal/research"
	"github.com/deepscout/orchestrator/internal/tools"
)

// fakeGenerator scripts each generation call with a function field. Nil
// fields fail loudly so a test cannot silently depend on an unscripted
// path.
type fakeGenerator struct {
	ClarifyFn    func(ctx context.Context, messages []string) (*llm.ClarificationDecision, error)
	PlanFn       func(ctx context.Context, recentMessages string, searchTopics []string) (*llm.PlanDraft, error)
	DecomposeFn  func(ctx context.Context, request string) (*llm.Decomposition, error)
	ReflectFn    func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error)
	ComposeFn    func(ctx context.Context, in llm.ComposeInput) (*llm.Composition, error)
	AssessFn     func(ctx context.Context, in llm.AssessInput) (*llm.Assessment, error)
	SynthesizeFn func(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error)
}

func (f *fakeGenerator) Clarify(ctx context.Context, messages []string) (*llm.ClarificationDecision, error) {
	if f.ClarifyFn == nil {
		return nil, fmt.Errorf("fake: Clarify not scripted")
	}
	return f.ClarifyFn(ctx, messages)
}

func (f *fakeGenerator) Plan(ctx context.Context, recentMessages string, searchTopics []string) (*llm.PlanDraft, error) {
	if f.PlanFn == nil {
		return nil, fmt.Errorf("fake: Plan not scripted")
	}
	return f.PlanFn(ctx, recentMessages, searchTopics)
}

func (f *fakeGenerator) Decompose(ctx context.Context, request string) (*llm.Decomposition, error) {
	if f.DecomposeFn == nil {
		return nil, fmt.Errorf("fake: Decompose not scripted")
	}
	return f.DecomposeFn(ctx, request)
}

func (f *fakeGenerator) Reflect(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
	if f.ReflectFn == nil {
		return nil, fmt.Errorf("fake: Reflect not scripted")
	}
	return f.ReflectFn(ctx, in)
}

func (f *fakeGenerator) Compose(ctx context.Context, in llm.ComposeInput) (*llm.Composition, error) {
	if f.ComposeFn == nil {
		return nil, fmt.Errorf("fake: Compose not scripted")
	}
	return f.ComposeFn(ctx, in)
}

func (f *fakeGenerator) Assess(ctx context.Context, in llm.AssessInput) (*llm.Assessment, error) {
	if f.AssessFn == nil {
		return nil, fmt.Errorf("fake: Assess not scripted")
	}
	return f.AssessFn(ctx, in)
}

func (f *fakeGenerator) Synthesize(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error) {
	if f.SynthesizeFn == nil {
		return nil, fmt.Errorf("fake: Synthesize not scripted")
	}
	return f.SynthesizeFn(ctx, request, in)
}

var _ llm.Generator = (*fakeGenerator)(nil)

// fakeInvoker scripts tool backends and records every call.
type fakeInvoker struct {
	mu sync.Mutex

	RetrieveFn  func(query string, topK int) ([]tools.Document, error)
	WebSearchFn func(query string) ([]tools.Document, error)

	RetrieveCalls  []string
	WebSearchCalls []string
	Notes          []string
}

func (f *fakeInvoker) Retrieve(ctx context.Context, query string, topK int) ([]tools.Document, error) {
	f.mu.Lock()
	f.RetrieveCalls = append(f.RetrieveCalls, query)
	f.mu.Unlock()
	if f.RetrieveFn == nil {
		return nil, nil
	}
	return f.RetrieveFn(query, topK)
}

func (f *fakeInvoker) WebSearch(ctx context.Context, query string) ([]tools.Document, error) {
	f.mu.Lock()
	f.WebSearchCalls = append(f.WebSearchCalls, query)
	f.mu.Unlock()
	if f.WebSearchFn == nil {
		return nil, nil
	}
	return f.WebSearchFn(query)
}

func (f *fakeInvoker) Note(ctx context.Context, text string) error {
	f.mu.Lock()
	f.Notes = append(f.Notes, text)
	f.mu.Unlock()
	return nil
}

var _ tools.Invoker = (*fakeInvoker)(nil)

func (f *fakeInvoker) searchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.RetrieveCalls) + len(f.WebSearchCalls)
}
