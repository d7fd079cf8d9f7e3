package activities

import (
	"context"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/deepscout/orchestrator/internal/llm"
	ometrics "github.com/deepscout/orchestrator/internal/metrics"
)

// AssessResearch decides whether the supervisor should stop or dispatch
// another round. The generator's judgment is advisory; deterministic
// guardrails have the final say:
//
//	Rule 1: iteration at or past the cap always stops.
//	Rule 2: a first round that produced no findings always continues,
//	        re-dispatching the original request.
//	Rule 3: continuing requires follow-up tasks; none means stop.
func (a *Activities) AssessResearch(ctx context.Context, in AssessmentInput) (*AssessmentResult, error) {
	logger := activity.GetLogger(ctx)

	if in.Iteration >= in.MaxIterations {
		ometrics.SupervisorIterations.Observe(float64(in.Iteration))
		return &AssessmentResult{
			Sufficient: true,
			Reasoning:  "iteration budget exhausted",
		}, nil
	}

	haveFindings := false
	for _, r := range in.Reports {
		if strings.TrimSpace(r) != "" {
			haveFindings = true
			break
		}
	}
	if !haveFindings && in.Iteration <= 1 {
		return &AssessmentResult{
			Sufficient: false,
			Reasoning:  "no findings yet, retrying the original request",
			FollowUpTasks: []ResearchTask{
				{OriginalRequest: in.OriginalRequest, Topic: in.OriginalRequest},
			},
		}, nil
	}

	assessment, err := a.Gen.Assess(ctx, llm.AssessInput{
		OriginalRequest: in.OriginalRequest,
		Reports:         in.Reports,
		Iteration:       in.Iteration,
		MaxIterations:   in.MaxIterations,
	})
	if err != nil {
		// An unreadable judgment stops the loop rather than burning
		// iterations on guesswork.
		logger.Warn("assessment failed, stopping with collected findings", "error", err)
		return &AssessmentResult{
			Sufficient: true,
			Reasoning:  "assessment unavailable",
		}, nil
	}

	if assessment.Sufficient {
		ometrics.SupervisorIterations.Observe(float64(in.Iteration))
		return &AssessmentResult{Sufficient: true, Reasoning: assessment.Reasoning}, nil
	}

	tasks := make([]ResearchTask, 0, len(assessment.FollowUpTopics))
	seen := make(map[string]struct{})
	for _, topic := range assessment.FollowUpTopics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		key := strings.ToLower(topic)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tasks = append(tasks, ResearchTask{OriginalRequest: in.OriginalRequest, Topic: topic})
		if in.MaxTasks > 0 && len(tasks) >= in.MaxTasks {
			break
		}
	}
	if len(tasks) == 0 {
		logger.Info("generator asked to continue without follow-up topics, stopping")
		return &AssessmentResult{Sufficient: true, Reasoning: assessment.Reasoning}, nil
	}

	return &AssessmentResult{
		Sufficient:    false,
		Reasoning:     assessment.Reasoning,
		FollowUpTasks: tasks,
	}, nil
}
