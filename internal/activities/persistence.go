package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
)

// PersistFinalReport stores the finished report for later retrieval.
// Persistence is best-effort: a missing store or a write failure is
// logged and swallowed so the caller still receives its report.
func (a *Activities) PersistFinalReport(ctx context.Context, in PersistReportInput) error {
	logger := activity.GetLogger(ctx)
	if a.Store == nil {
		logger.Debug("report store not configured, skipping persistence",
			"workflow_id", in.WorkflowID)
		return nil
	}

	err := a.Store.SaveReport(ctx, in.WorkflowID, in.Request, in.Markdown,
		in.Stats, in.TaskCount, in.IterationCount)
	if err != nil {
		logger.Warn("report persistence failed",
			"workflow_id", in.WorkflowID,
			"error", err,
		)
	}
	return nil
}
