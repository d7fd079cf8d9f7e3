package activities

import (
	"context"
	"strings"

	"go.temporal.io/sdk/activity"
)

// DecomposeRequest asks the generator how to delegate the research: one
// task per clearly separable entity for comparative requests, a single
// task otherwise. The judgment is advisory; the result is clamped so the
// supervisor always has at least one self-contained task.
func (a *Activities) DecomposeRequest(ctx context.Context, in DecomposeInput) (*DecomposeResult, error) {
	logger := activity.GetLogger(ctx)
	maxTasks := in.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}

	decomp, err := a.Gen.Decompose(ctx, in.Request)
	if err != nil {
		// Degrade to a single task covering the whole request rather
		// than failing the pipeline on an advisory call.
		logger.Warn("decomposition failed, using single task", "error", err)
		return &DecomposeResult{
			Tasks: []ResearchTask{{OriginalRequest: in.Request, Topic: in.Request}},
		}, nil
	}

	var tasks []ResearchTask
	seen := make(map[string]struct{})
	for _, topic := range decomp.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		key := strings.ToLower(topic)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tasks = append(tasks, ResearchTask{OriginalRequest: in.Request, Topic: topic})
		if len(tasks) >= maxTasks {
			break
		}
	}
	if len(tasks) == 0 {
		tasks = []ResearchTask{{OriginalRequest: in.Request, Topic: in.Request}}
	}

	logger.Info("request decomposed", "tasks", len(tasks))
	return &DecomposeResult{Tasks: tasks, Reasoning: decomp.Reasoning}, nil
}
