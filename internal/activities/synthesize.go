package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	ometrics "github.com/deepscout/orchestrator/internal/metrics"
	"github.com/deepscout/orchestrator/internal/research"
)

// SynthesizeReport rewrites the aggregated per-task answers into one
// coherent final report. Citation integrity is non-negotiable: the
// output must carry exactly the citation set of the input, neither
// inventing sources nor dropping them. A violating draft gets one
// retry; a second violation fails the pipeline.
func (a *Activities) SynthesizeReport(ctx context.Context, in SynthesizeInput) (*SynthesizeResult, error) {
	logger := activity.GetLogger(ctx)

	var (
		report  *research.AnswerWithCitations
		lastErr error
	)
	for attempt := 1; attempt <= 2; attempt++ {
		draft, err := a.Gen.Synthesize(ctx, in.OriginalRequest, in.Collection)
		if err != nil {
			lastErr = err
		} else if err := research.VerifyCitationIntegrity(in.Collection, *draft); err != nil {
			lastErr = err
		} else {
			report = draft
			break
		}
		logger.Warn("synthesis attempt rejected",
			"attempt", attempt,
			"error", lastErr,
		)
		if attempt == 1 {
			ometrics.SynthesisRetries.Inc()
		}
	}
	if report == nil {
		ometrics.ResearchRunsCompleted.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("synthesize: %w", lastErr)
	}

	ometrics.ResearchRunsCompleted.WithLabelValues("report").Inc()
	return &SynthesizeResult{
		Report:   research.FinalReport(*report),
		Markdown: report.Render(),
		Stats:    a.citationStats(*report),
	}, nil
}

func (a *Activities) citationStats(report research.AnswerWithCitations) research.CitationStats {
	cfg := a.Credibility
	if cfg == nil {
		cfg = research.DefaultCredibilityConfig()
	}
	return research.Stats(report, cfg)
}
