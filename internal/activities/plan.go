package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/deepscout/orchestrator/internal/llm"
)

// PlanResearch expands the initial search statements into a topic list
// and a fixed-length research plan. Step count is a correctness invariant
// consumed downstream by the supervisor; an invalid plan is retried once
// and then rejected, never truncated or padded.
func (a *Activities) PlanResearch(ctx context.Context, in PlanInput) (*ResearchPlan, error) {
	logger := activity.GetLogger(ctx)
	maxTopics := in.MaxTopics
	if maxTopics <= 0 {
		maxTopics = 10
	}
	steps := in.PlanSteps
	if steps <= 0 {
		steps = 3
	}

	plan, err := a.planOnce(ctx, in, maxTopics, steps)
	if err != nil {
		var decodeErr *llm.DecodeError
		if !errors.As(err, &decodeErr) {
			return nil, err
		}
		logger.Warn("plan invalid, retrying once", "error", err)
		plan, err = a.planOnce(ctx, in, maxTopics, steps)
		if err != nil {
			return nil, fmt.Errorf("plan: retry failed: %w", err)
		}
	}

	logger.Info("research plan ready",
		"topics", len(plan.ExpandedTopics),
		"steps", len(plan.Steps),
	)
	return plan, nil
}

func (a *Activities) planOnce(ctx context.Context, in PlanInput, maxTopics, steps int) (*ResearchPlan, error) {
	draft, err := a.Gen.Plan(ctx, in.RecentMessages, in.SearchTopics)
	if err != nil {
		return nil, err
	}
	if err := validatePlan(draft, maxTopics, steps); err != nil {
		return nil, err
	}
	return &ResearchPlan{
		ExpandedTopics: draft.ExpandedTopics,
		Steps:          draft.Steps,
	}, nil
}

// validatePlan enforces the planner contract: bounded topic count,
// exactly the required number of steps, and pairwise-distinct steps.
func validatePlan(draft *llm.PlanDraft, maxTopics, steps int) error {
	if len(draft.ExpandedTopics) == 0 {
		return &llm.DecodeError{Template: "plan", Reason: "no expanded topics"}
	}
	if len(draft.ExpandedTopics) > maxTopics {
		return &llm.DecodeError{
			Template: "plan",
			Reason:   fmt.Sprintf("%d topics exceed limit %d", len(draft.ExpandedTopics), maxTopics),
		}
	}
	if len(draft.Steps) != steps {
		return &llm.DecodeError{
			Template: "plan",
			Reason:   fmt.Sprintf("plan has %d steps, want exactly %d", len(draft.Steps), steps),
		}
	}
	for i := 0; i < len(draft.Steps); i++ {
		if strings.TrimSpace(draft.Steps[i]) == "" {
			return &llm.DecodeError{Template: "plan", Reason: fmt.Sprintf("step %d is empty", i+1)}
		}
		for j := i + 1; j < len(draft.Steps); j++ {
			if nearDuplicate(draft.Steps[i], draft.Steps[j]) {
				return &llm.DecodeError{
					Template: "plan",
					Reason:   fmt.Sprintf("steps %d and %d are not distinct", i+1, j+1),
				}
			}
		}
	}
	return nil
}

// nearDuplicate reports whether two step texts are identical after
// normalization or share nearly all of their words. Subject-matter
// distinctness beyond that is enforced by the generation contract.
func nearDuplicate(a, b string) bool {
	na, nb := normalizeStep(a), normalizeStep(b)
	if na == nb {
		return true
	}
	wa, wb := strings.Fields(na), strings.Fields(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		set[w] = struct{}{}
	}
	shared := 0
	for _, w := range wb {
		if _, ok := set[w]; ok {
			shared++
		}
	}
	smaller := len(wa)
	if len(wb) < smaller {
		smaller = len(wb)
	}
	return float64(shared) >= 0.9*float64(smaller)
}

func normalizeStep(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
