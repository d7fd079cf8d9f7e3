package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/deepscout/orchestrator/internal/activities"
	"github.com/deepscout/orchestrator/internal/research"
)

// supervisorOutcome is the supervisor loop's terminal state: every
// successful worker answer in dispatch order, worker reports for the
// assessment step, and the iteration count consumed.
type supervisorOutcome struct {
	Collection research.AnswersCollection
	Reports    []string
	Iterations int
	TaskCount  int
}

// runSupervisor drives dispatch-collect-assess rounds until the
// assessment says the findings suffice or the iteration budget runs
// out. Worker failures within a round are isolated; a run that never
// produces a single successful worker fails the pipeline.
func runSupervisor(ctx workflow.Context, tasks []activities.ResearchTask, lim Limits) (*supervisorOutcome, error) {
	logger := workflow.GetLogger(ctx)

	assessCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	out := &supervisorOutcome{}
	for {
		out.Iterations++
		out.TaskCount += len(tasks)
		logger.Info("supervisor dispatching round",
			"iteration", out.Iterations,
			"tasks", len(tasks),
		)

		results := dispatchRound(ctx, tasks, lim)

		succeeded := 0
		for _, r := range results {
			if r == nil {
				continue
			}
			succeeded++
			out.Collection.Answers = append(out.Collection.Answers, r.Answer)
			out.Reports = append(out.Reports, r.Report)
		}
		logger.Info("supervisor round collected",
			"iteration", out.Iterations,
			"succeeded", succeeded,
			"failed", len(tasks)-succeeded,
		)
		if succeeded == 0 && len(out.Collection.Answers) == 0 && out.Iterations >= lim.MaxIterations {
			return nil, fmt.Errorf("supervisor: all %d workers failed with no prior findings", len(tasks))
		}

		var assessment activities.AssessmentResult
		err := workflow.ExecuteActivity(assessCtx, activities.AssessResearchActivity,
			activities.AssessmentInput{
				OriginalRequest: tasks[0].OriginalRequest,
				Reports:         out.Reports,
				Iteration:       out.Iterations,
				MaxIterations:   lim.MaxIterations,
				MaxTasks:        lim.MaxTopics,
			}).Get(ctx, &assessment)
		if err != nil {
			return nil, fmt.Errorf("supervisor: assessment: %w", err)
		}
		if assessment.Sufficient {
			logger.Info("supervisor stopping", "reasoning", assessment.Reasoning)
			break
		}
		tasks = assessment.FollowUpTasks
	}

	if len(out.Collection.Answers) == 0 {
		return nil, fmt.Errorf("supervisor: no worker produced findings")
	}
	return out, nil
}

// dispatchRound runs one round of research tasks in parallel under a
// semaphore. Results land in slots indexed by dispatch position so the
// aggregate order never depends on completion order; a failed worker
// leaves a nil slot.
func dispatchRound(ctx workflow.Context, tasks []activities.ResearchTask, lim Limits) []*activities.SubagentResult {
	logger := workflow.GetLogger(ctx)

	sem := workflow.NewSemaphore(ctx, int64(lim.MaxConcurrentUnits))
	futuresChan := workflow.NewChannel(ctx)

	type futureWithIndex struct {
		Index   int
		Future  workflow.Future
		Release workflow.Channel // signalled when the permit may be released
	}

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})

	for i, task := range tasks {
		i := i
		task := task
		workflow.Go(ctx, func(ctx workflow.Context) {
			if err := sem.Acquire(ctx, 1); err != nil {
				logger.Error("failed to acquire worker permit", "index", i, "error", err)
				futuresChan.Send(ctx, futureWithIndex{Index: i})
				return
			}
			rel := workflow.NewChannel(ctx)

			future := workflow.ExecuteActivity(actCtx, activities.ExecuteResearchTaskActivity,
				activities.ResearchTaskInput{
					Task:         task,
					MaxToolCalls: lim.MaxToolCallsPerWorker,
					RetrieveTopK: lim.RetrieveTopK,
				})
			futuresChan.Send(ctx, futureWithIndex{Index: i, Future: future, Release: rel})

			// Hold the permit until the collector has consumed the result.
			var sig struct{}
			rel.Receive(ctx, &sig)
			sem.Release(1)
		})
	}

	results := make([]*activities.SubagentResult, len(tasks))
	sel := workflow.NewSelector(ctx)
	processed := 0

	sel.AddReceive(futuresChan, func(c workflow.ReceiveChannel, more bool) {
		var fwi futureWithIndex
		c.Receive(ctx, &fwi)
		if fwi.Future == nil {
			processed++
			return
		}
		sel.AddFuture(fwi.Future, func(f workflow.Future) {
			var result activities.SubagentResult
			if err := f.Get(ctx, &result); err != nil {
				logger.Error("research worker failed",
					"topic", tasks[fwi.Index].Topic,
					"error", err,
				)
			} else {
				results[fwi.Index] = &result
			}
			processed++
			fwi.Release.Send(ctx, struct{}{})
		})
	})

	for processed < len(tasks) {
		sel.Select(ctx)
	}
	return results
}
