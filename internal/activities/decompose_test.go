package activities

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscout/orchestrator/internal/llm"
)

func TestDecomposeComparisonYieldsOneTaskPerEntity(t *testing.T) {
	gen := &fakeGenerator{
		DecomposeFn: func(ctx context.Context, request string) (*llm.Decomposition, error) {
			return &llm.Decomposition{
				Reasoning: "three entities compared on the same axis",
				Topics: []string{
					"economy of France",
					"economy of Germany",
					"economy of Italy",
				},
			}, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("DecomposeRequest", DecomposeInput{
		Request:  "compare the economies of France, Germany and Italy",
		MaxTasks: 3,
	})
	require.NoError(t, err)

	var result DecomposeResult
	require.NoError(t, val.Get(&result))
	require.Len(t, result.Tasks, 3)
	for _, task := range result.Tasks {
		assert.Equal(t, "compare the economies of France, Germany and Italy", task.OriginalRequest)
	}
	assert.Equal(t, "economy of France", result.Tasks[0].Topic)
}

func TestDecomposeSimpleFactYieldsSingleTask(t *testing.T) {
	gen := &fakeGenerator{
		DecomposeFn: func(ctx context.Context, request string) (*llm.Decomposition, error) {
			return &llm.Decomposition{Topics: []string{request}}, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("DecomposeRequest", DecomposeInput{
		Request:  "capital of France",
		MaxTasks: 3,
	})
	require.NoError(t, err)

	var result DecomposeResult
	require.NoError(t, val.Get(&result))
	require.Len(t, result.Tasks, 1)
}

func TestDecomposeKeepsEveryEntityUnderTopicCap(t *testing.T) {
	gen := &fakeGenerator{
		DecomposeFn: func(ctx context.Context, request string) (*llm.Decomposition, error) {
			return &llm.Decomposition{
				Topics: []string{
					"economy of France",
					"economy of Germany",
					"economy of Italy",
					"economy of Spain",
					"economy of Poland",
				},
			}, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("DecomposeRequest", DecomposeInput{
		Request:  "compare the economies of France, Germany, Italy, Spain and Poland",
		MaxTasks: 10,
	})
	require.NoError(t, err)

	var result DecomposeResult
	require.NoError(t, val.Get(&result))
	require.Len(t, result.Tasks, 5, "one task per compared entity")
}

func TestDecomposeClampsAndDeduplicates(t *testing.T) {
	gen := &fakeGenerator{
		DecomposeFn: func(ctx context.Context, request string) (*llm.Decomposition, error) {
			return &llm.Decomposition{
				Topics: []string{"alpha", "Alpha", "beta", " ", "gamma", "delta"},
			}, nil
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("DecomposeRequest", DecomposeInput{
		Request:  "broad request",
		MaxTasks: 3,
	})
	require.NoError(t, err)

	var result DecomposeResult
	require.NoError(t, val.Get(&result))
	require.Len(t, result.Tasks, 3)
	assert.Equal(t, "alpha", result.Tasks[0].Topic)
	assert.Equal(t, "beta", result.Tasks[1].Topic)
	assert.Equal(t, "gamma", result.Tasks[2].Topic)
}

func TestDecomposeDegradesToSingleTaskOnError(t *testing.T) {
	gen := &fakeGenerator{
		DecomposeFn: func(ctx context.Context, request string) (*llm.Decomposition, error) {
			return nil, fmt.Errorf("model unavailable")
		},
	}
	env := newActivityEnv(t, NewActivities(gen, &fakeInvoker{}, nil, nil))

	val, err := env.ExecuteActivity("DecomposeRequest", DecomposeInput{
		Request:  "capital of France",
		MaxTasks: 3,
	})
	require.NoError(t, err)

	var result DecomposeResult
	require.NoError(t, val.Get(&result))
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "capital of France", result.Tasks[0].Topic)
}
