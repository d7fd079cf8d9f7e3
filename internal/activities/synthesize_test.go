package activities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscout/orchestrator/internal/research"
)

func synthesisCollection() research.AnswersCollection {
	return research.AnswersCollection{
		Answers: []research.AnswerWithCitations{
			{Statements: []research.AnswerStatement{
				{Text: "Paris is the capital of France.",
					Citation: &research.Citation{URL: "https://a.test", Title: "A"}},
			}},
			{Statements: []research.AnswerStatement{
				{Text: "Paris has about 2.1 million residents.",
					Citation: &research.Citation{URL: "https://b.test", Title: "B"}},
			}},
		},
	}
}

func TestSynthesizeAcceptsFaithfulReport(t *testing.T) {
	gen := &fakeGenerator{
		SynthesizeFn: func(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error) {
			merged := research.Aggregate(in)
			return &merged, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("SynthesizeReport", SynthesizeInput{
		OriginalRequest: "tell me about Paris",
		Collection:      synthesisCollection(),
	})
	require.NoError(t, err)

	var result SynthesizeResult
	require.NoError(t, val.Get(&result))
	assert.Contains(t, result.Markdown, "[A](https://a.test)")
	assert.Contains(t, result.Markdown, "[B](https://b.test)")
	assert.Equal(t, 2, result.Stats.TotalSources)
	assert.Len(t, result.Report.Statements, 2)
}

func TestSynthesizeRetriesOnceAfterIntegrityViolation(t *testing.T) {
	calls := 0
	gen := &fakeGenerator{
		SynthesizeFn: func(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error) {
			calls++
			if calls == 1 {
				return &research.AnswerWithCitations{
					Statements: []research.AnswerStatement{
						{Text: "made up", Citation: &research.Citation{URL: "https://fake.test", Title: "Fake"}},
					},
				}, nil
			}
			merged := research.Aggregate(in)
			return &merged, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("SynthesizeReport", SynthesizeInput{
		OriginalRequest: "tell me about Paris",
		Collection:      synthesisCollection(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	var result SynthesizeResult
	require.NoError(t, val.Get(&result))
	assert.Len(t, result.Report.Statements, 2)
}

func TestSynthesizeFailsAfterSecondViolation(t *testing.T) {
	gen := &fakeGenerator{
		SynthesizeFn: func(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error) {
			// Drops every input citation.
			return &research.AnswerWithCitations{
				Statements: []research.AnswerStatement{{Text: "uncited summary"}},
			}, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	_, err := env.ExecuteActivity("SynthesizeReport", SynthesizeInput{
		OriginalRequest: "tell me about Paris",
		Collection:      synthesisCollection(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "citation integrity")
}

func TestSynthesizeUncitedCollectionPasses(t *testing.T) {
	collection := research.AnswersCollection{
		Answers: []research.AnswerWithCitations{
			{Statements: []research.AnswerStatement{{Text: "general knowledge"}}},
		},
	}
	gen := &fakeGenerator{
		SynthesizeFn: func(ctx context.Context, request string, in research.AnswersCollection) (*research.AnswerWithCitations, error) {
			return &research.AnswerWithCitations{
				Statements: []research.AnswerStatement{{Text: "rewritten general knowledge"}},
			}, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("SynthesizeReport", SynthesizeInput{
		OriginalRequest: "anything",
		Collection:      collection,
	})
	require.NoError(t, err)

	var result SynthesizeResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, "rewritten general knowledge", result.Markdown)
	assert.Zero(t, result.Stats.TotalSources)
}
