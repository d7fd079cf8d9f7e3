package activities

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscout/orchestrator/internal/llm"
	"github.com/deepscout/orchestrator/internal/research"
	"github.com/deepscout/orchestrator/internal/tools"
)

func passthroughCompose(ctx context.Context, in llm.ComposeInput) (*llm.Composition, error) {
	comp := &llm.Composition{Report: "findings for " + in.Topic}
	for _, d := range in.Documents {
		comp.References = append(comp.References, d.URL)
		comp.Answer.Statements = append(comp.Answer.Statements, research.AnswerStatement{
			Text:     d.Content,
			Citation: &research.Citation{URL: d.URL, Title: d.Title},
		})
	}
	return comp, nil
}

func taskInput() ResearchTaskInput {
	return ResearchTaskInput{
		Task:         ResearchTask{OriginalRequest: "capital of France", Topic: "capital of France"},
		MaxToolCalls: 3,
		RetrieveTopK: 3,
	}
}

func TestResearchTaskStopsWhenConfident(t *testing.T) {
	inv := &fakeInvoker{
		RetrieveFn: func(query string, topK int) ([]tools.Document, error) {
			return []tools.Document{
				{Content: "Paris is the capital of France.", URL: "https://w.test/paris", Title: "Paris"},
			}, nil
		},
	}
	gen := &fakeGenerator{
		ReflectFn: func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
			return &llm.Reflection{Thought: "the answer is right there", CanAnswer: true}, nil
		},
		ComposeFn: passthroughCompose,
	}
	env := newActivityEnv(t, NewActivities(gen, inv, nil, nil))

	val, err := env.ExecuteActivity("ExecuteResearchTask", taskInput())
	require.NoError(t, err)

	var result SubagentResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, "confident_answer", result.StopReason)
	assert.Equal(t, 1, result.SearchCalls)
	assert.Empty(t, inv.WebSearchCalls, "local result should preempt the web backend")
	assert.Len(t, inv.Notes, 1, "one reflection note per search round")
}

func TestResearchTaskStopsOnTwoDistinctSources(t *testing.T) {
	inv := &fakeInvoker{
		RetrieveFn: func(query string, topK int) ([]tools.Document, error) {
			return []tools.Document{
				{Content: "fact one", URL: "https://a.test", Title: "A"},
				{Content: "fact two", URL: "https://b.test", Title: "B"},
			}, nil
		},
	}
	gen := &fakeGenerator{
		ReflectFn: func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
			return &llm.Reflection{Thought: "two corroborating sources", NextQuery: "more"}, nil
		},
		ComposeFn: passthroughCompose,
	}
	env := newActivityEnv(t, NewActivities(gen, inv, nil, nil))

	val, err := env.ExecuteActivity("ExecuteResearchTask", taskInput())
	require.NoError(t, err)

	var result SubagentResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, "enough_sources", result.StopReason)
	assert.Equal(t, 1, result.SearchCalls)
}

func TestResearchTaskStopsOnDiminishingReturns(t *testing.T) {
	inv := &fakeInvoker{
		RetrieveFn: func(query string, topK int) ([]tools.Document, error) {
			return []tools.Document{
				{Content: "same fact", URL: "https://a.test", Title: "A"},
			}, nil
		},
	}
	gen := &fakeGenerator{
		ReflectFn: func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
			return &llm.Reflection{Thought: "keep digging", NextQuery: "another angle"}, nil
		},
		ComposeFn: passthroughCompose,
	}
	env := newActivityEnv(t, NewActivities(gen, inv, nil, nil))

	val, err := env.ExecuteActivity("ExecuteResearchTask", taskInput())
	require.NoError(t, err)

	var result SubagentResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, "diminishing_returns", result.StopReason)
	assert.Equal(t, 2, result.SearchCalls)
}

func TestResearchTaskBudgetCountsWebFallback(t *testing.T) {
	inv := &fakeInvoker{
		RetrieveFn: func(query string, topK int) ([]tools.Document, error) {
			return nil, nil
		},
		WebSearchFn: func(query string) ([]tools.Document, error) {
			return nil, nil
		},
	}
	gen := &fakeGenerator{
		ReflectFn: func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
			return &llm.Reflection{Thought: "nothing yet", NextQuery: "rephrase"}, nil
		},
		ComposeFn: passthroughCompose,
	}
	env := newActivityEnv(t, NewActivities(gen, inv, nil, nil))

	val, err := env.ExecuteActivity("ExecuteResearchTask", taskInput())
	require.NoError(t, err)

	var result SubagentResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, "budget_exhausted", result.StopReason)
	assert.Equal(t, 3, result.SearchCalls, "retrieval and web fallback share one budget")
	assert.Equal(t, 3, inv.searchCalls())
}

func TestResearchTaskWebFallbackOnRetrievalFailure(t *testing.T) {
	inv := &fakeInvoker{
		RetrieveFn: func(query string, topK int) ([]tools.Document, error) {
			return nil, fmt.Errorf("index offline")
		},
		WebSearchFn: func(query string) ([]tools.Document, error) {
			return []tools.Document{
				{Content: "Paris is the capital.", URL: "https://w.test/paris", Title: "Paris"},
			}, nil
		},
	}
	gen := &fakeGenerator{
		ReflectFn: func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
			return &llm.Reflection{Thought: "web saved us", CanAnswer: true}, nil
		},
		ComposeFn: passthroughCompose,
	}
	env := newActivityEnv(t, NewActivities(gen, inv, nil, nil))

	val, err := env.ExecuteActivity("ExecuteResearchTask", taskInput())
	require.NoError(t, err)

	var result SubagentResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, 2, result.SearchCalls)
	require.Len(t, result.Answer.Statements, 1)
	require.NotNil(t, result.Answer.Statements[0].Citation)
	assert.Equal(t, "https://w.test/paris", result.Answer.Statements[0].Citation.URL)
}

func TestResearchTaskStripsUnbackedCitations(t *testing.T) {
	inv := &fakeInvoker{
		RetrieveFn: func(query string, topK int) ([]tools.Document, error) {
			return []tools.Document{
				{Content: "real fact", URL: "https://real.test", Title: "Real"},
			}, nil
		},
	}
	gen := &fakeGenerator{
		ReflectFn: func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
			return &llm.Reflection{Thought: "done", CanAnswer: true}, nil
		},
		ComposeFn: func(ctx context.Context, in llm.ComposeInput) (*llm.Composition, error) {
			return &llm.Composition{
				Report:     "report",
				References: []string{"https://real.test", "https://invented.test"},
				Answer: research.AnswerWithCitations{
					Statements: []research.AnswerStatement{
						{Text: "backed", Citation: &research.Citation{URL: "https://real.test", Title: "Real"}},
						{Text: "invented", Citation: &research.Citation{URL: "https://invented.test", Title: "Fake"}},
						{Text: "retitled", Citation: &research.Citation{URL: "https://real.test", Title: "Other Name"}},
					},
				},
			}, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, inv, nil, nil))

	val, err := env.ExecuteActivity("ExecuteResearchTask", taskInput())
	require.NoError(t, err)

	var result SubagentResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, []string{"https://real.test"}, result.References)
	require.Len(t, result.Answer.Statements, 3)
	assert.NotNil(t, result.Answer.Statements[0].Citation)
	assert.Nil(t, result.Answer.Statements[1].Citation, "citation without a backing tool result is stripped")
	assert.Nil(t, result.Answer.Statements[2].Citation, "title must match the gathered document")
}

func TestResearchTaskSurvivesReflectionFailure(t *testing.T) {
	inv := &fakeInvoker{
		RetrieveFn: func(query string, topK int) ([]tools.Document, error) {
			return []tools.Document{
				{Content: "a", URL: "https://a.test", Title: "A"},
				{Content: "b", URL: "https://b.test", Title: "B"},
			}, nil
		},
	}
	gen := &fakeGenerator{
		ReflectFn: func(ctx context.Context, in llm.ReflectionInput) (*llm.Reflection, error) {
			return nil, fmt.Errorf("model unavailable")
		},
		ComposeFn: passthroughCompose,
	}
	env := newActivityEnv(t, NewActivities(gen, inv, nil, nil))

	val, err := env.ExecuteActivity("ExecuteResearchTask", taskInput())
	require.NoError(t, err)

	var result SubagentResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, "enough_sources", result.StopReason)
	assert.Len(t, inv.Notes, 1, "fallback reflection still leaves a note")
}

func TestSearchLoopBookkeepingCountsOnlySearchCalls(t *testing.T) {
	loop := &searchLoop{budget: 3}

	loop.record(toolKindRetrieval, "capital of France", 0)
	loop.record(toolKindWeb, "capital of France", 2)
	loop.record(toolKindNote, "two web sources found, answer within reach", 0)

	assert.Equal(t, 2, loop.searchCalls(), "notes never consume budget")
	require.Len(t, loop.calls, 3)
	assert.Equal(t, ToolCallRecord{Kind: "retrieval", Query: "capital of France", ResultCount: 0}, loop.calls[0])
	assert.Equal(t, ToolCallRecord{Kind: "web_search", Query: "capital of France", ResultCount: 2}, loop.calls[1])
	assert.Equal(t, "note", loop.calls[2].Kind)
}
