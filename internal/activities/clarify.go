package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/deepscout/orchestrator/internal/llm"
	ometrics "github.com/deepscout/orchestrator/internal/metrics"
)

// ClarifyQuery decides whether a clarifying question is needed or emits
// the final search statements. The gate is stateless; the caller tracks
// the round and must not invoke it past the configured round budget.
// A malformed decision is retried once, then surfaced as an error.
func (a *Activities) ClarifyQuery(ctx context.Context, in ClarifyInput) (*llm.ClarificationDecision, error) {
	logger := activity.GetLogger(ctx)
	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("clarify: no user messages")
	}
	maxStatements := in.MaxFinalStatements
	if maxStatements <= 0 {
		maxStatements = 3
	}
	if in.Round == 0 {
		ometrics.ResearchRunsStarted.Inc()
	}

	decision, err := a.clarifyOnce(ctx, in.Messages, maxStatements)
	if err != nil {
		var decodeErr *llm.DecodeError
		if !errors.As(err, &decodeErr) {
			return nil, err
		}
		logger.Warn("clarification decision malformed, retrying once", "error", err)
		decision, err = a.clarifyOnce(ctx, in.Messages, maxStatements)
		if err != nil {
			return nil, fmt.Errorf("clarify: retry failed: %w", err)
		}
	}

	if decision.NeedsClarification {
		ometrics.ResearchRunsCompleted.WithLabelValues("clarification").Inc()
	} else {
		ometrics.ClarificationRounds.Observe(float64(in.Round))
	}
	logger.Info("clarification decision",
		"round", in.Round,
		"needs_clarification", decision.NeedsClarification,
		"statements", len(decision.FinalStatements),
	)
	return decision, nil
}

// clarifyOnce calls the generator and enforces the decision invariant:
// question present iff clarification is needed, statements non-empty and
// bounded iff it is not.
func (a *Activities) clarifyOnce(ctx context.Context, messages []string, maxStatements int) (*llm.ClarificationDecision, error) {
	decision, err := a.Gen.Clarify(ctx, messages)
	if err != nil {
		return nil, err
	}

	if decision.NeedsClarification {
		if strings.TrimSpace(decision.Question) == "" {
			return nil, &llm.DecodeError{Template: "clarify", Reason: "clarification requested without a question"}
		}
		if len(decision.FinalStatements) != 0 {
			return nil, &llm.DecodeError{Template: "clarify", Reason: "clarification requested with final statements"}
		}
		return decision, nil
	}

	if decision.Question != "" {
		return nil, &llm.DecodeError{Template: "clarify", Reason: "question present without clarification request"}
	}
	if len(decision.FinalStatements) == 0 {
		// Zero search targets would deadlock the pipeline; this is a
		// synthesis failure, not a silent pass-through.
		return nil, &llm.DecodeError{Template: "clarify", Reason: "no final statements"}
	}
	if len(decision.FinalStatements) > maxStatements {
		return nil, &llm.DecodeError{
			Template: "clarify",
			Reason:   fmt.Sprintf("%d final statements exceed limit %d", len(decision.FinalStatements), maxStatements),
		}
	}
	return decision, nil
}

// ForcedStatements derives search statements from raw user messages when
// the clarification round budget is exhausted. The newest messages win;
// at most limit statements are returned.
func ForcedStatements(messages []string, limit int) []string {
	if limit <= 0 {
		limit = 3
	}
	var out []string
	for i := len(messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m := strings.TrimSpace(messages[i]); m != "" {
			out = append(out, m)
		}
	}
	// Restore chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
