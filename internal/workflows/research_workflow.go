package workflows

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/deepscout/orchestrator/internal/activities"
	"github.com/deepscout/orchestrator/internal/llm"
)

// ResearchWorkflow runs the full research pipeline for one request:
// clarification gate, planner, supervisor fan-out, synthesis, and
// persistence. When the gate needs another user message the workflow
// completes with a Question; the caller appends the user's reply to
// Messages, increments Round, and starts a fresh run. Once Round
// reaches the clarification budget the gate is skipped and the raw
// messages become the search statements.
func ResearchWorkflow(ctx workflow.Context, in ResearchInput) (*ResearchOutput, error) {
	logger := workflow.GetLogger(ctx)
	lim := in.Limits.withDefaults()

	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("research: no user messages")
	}
	logger.Info("research pipeline started",
		"messages", len(in.Messages),
		"round", in.Round,
	)

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	})

	// Clarification gate. The round budget is enforced here, never by
	// the gate itself.
	var statements []string
	if in.Round >= lim.MaxClarificationRounds {
		statements = activities.ForcedStatements(in.Messages, lim.MaxFinalStatements)
		logger.Info("clarification budget exhausted, forcing progression",
			"statements", len(statements),
		)
	} else {
		var decision llm.ClarificationDecision
		err := workflow.ExecuteActivity(actCtx, activities.ClarifyQueryActivity,
			activities.ClarifyInput{
				Messages:           in.Messages,
				Round:              in.Round,
				MaxFinalStatements: lim.MaxFinalStatements,
			}).Get(ctx, &decision)
		if err != nil {
			return nil, fmt.Errorf("research: clarify: %w", err)
		}
		if decision.NeedsClarification {
			return &ResearchOutput{
				Question: decision.Question,
				Round:    in.Round + 1,
			}, nil
		}
		statements = decision.FinalStatements
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("research: no search statements to work with")
	}

	// Planner.
	var plan activities.ResearchPlan
	err := workflow.ExecuteActivity(actCtx, activities.PlanResearchActivity,
		activities.PlanInput{
			RecentMessages: strings.Join(in.Messages, "\n"),
			SearchTopics:   statements,
			MaxTopics:      lim.MaxTopics,
			PlanSteps:      lim.PlanSteps,
		}).Get(ctx, &plan)
	if err != nil {
		return nil, fmt.Errorf("research: plan: %w", err)
	}

	// Delegation judgment: how many workers this request deserves. The
	// fan-out is capped by the topic budget, not the concurrency bound;
	// a comparison naming more entities than available worker slots gets
	// one task per entity and the excess queues on the semaphore.
	request := strings.Join(statements, "; ")
	var decomposed activities.DecomposeResult
	err = workflow.ExecuteActivity(actCtx, activities.DecomposeRequestActivity,
		activities.DecomposeInput{
			Request:  request,
			MaxTasks: lim.MaxTopics,
		}).Get(ctx, &decomposed)
	if err != nil {
		return nil, fmt.Errorf("research: decompose: %w", err)
	}

	// Supervisor loop.
	outcome, err := runSupervisor(ctx, decomposed.Tasks, lim)
	if err != nil {
		return nil, err
	}

	// Synthesis does its own bounded retry on integrity violations, so
	// it gets exactly one attempt here.
	synthCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})
	var synthesized activities.SynthesizeResult
	err = workflow.ExecuteActivity(synthCtx, activities.SynthesizeReportActivity,
		activities.SynthesizeInput{
			OriginalRequest: request,
			Collection:      outcome.Collection,
		}).Get(ctx, &synthesized)
	if err != nil {
		return nil, fmt.Errorf("research: synthesize: %w", err)
	}

	// Best-effort persistence.
	info := workflow.GetInfo(ctx)
	_ = workflow.ExecuteActivity(actCtx, activities.PersistFinalReportActivity,
		activities.PersistReportInput{
			WorkflowID:     info.WorkflowExecution.ID,
			Request:        request,
			Markdown:       synthesized.Markdown,
			Stats:          synthesized.Stats,
			TaskCount:      outcome.TaskCount,
			IterationCount: outcome.Iterations,
		}).Get(ctx, nil)

	logger.Info("research pipeline finished",
		"tasks", outcome.TaskCount,
		"iterations", outcome.Iterations,
		"statements", len(synthesized.Report.Statements),
	)
	return &ResearchOutput{
		Round:      in.Round,
		Plan:       &plan,
		Report:     &synthesized.Report,
		Markdown:   synthesized.Markdown,
		Stats:      synthesized.Stats,
		TaskCount:  outcome.TaskCount,
		Iterations: outcome.Iterations,
	}, nil
}
