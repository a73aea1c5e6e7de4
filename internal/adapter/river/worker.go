package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/nexory/readygate/internal/domain"
)

// EnsureProfileWorker processes profile provisioning jobs. The backend call
// is idempotent, so River's retries are safe.
type EnsureProfileWorker struct {
	river.WorkerDefaults[EnsureProfileArgs]

	backend domain.ReadinessBackend
}

// Work processes a single ensure-profile job.
func (w *EnsureProfileWorker) Work(ctx context.Context, job *river.Job[EnsureProfileArgs]) error {
	slog.InfoContext(ctx, "ensuring profile",
		"user_id", job.Args.UserID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.backend.EnsureProfile(ctx, job.Args.UserID)
}

// PrefetchWorkspaceWorker processes workspace cache-warming jobs. Prefetching
// is pure optimization, so failures are logged and never retried.
type PrefetchWorkspaceWorker struct {
	river.WorkerDefaults[PrefetchWorkspaceArgs]

	backend domain.ReadinessBackend
}

// Work processes a single prefetch-workspace job.
func (w *PrefetchWorkspaceWorker) Work(ctx context.Context, job *river.Job[PrefetchWorkspaceArgs]) error {
	if err := w.backend.FetchWorkspace(ctx, job.Args.WorkspaceID); err != nil {
		slog.WarnContext(ctx, "workspace prefetch failed",
			"user_id", job.Args.UserID,
			"workspace_id", job.Args.WorkspaceID,
			"job_id", job.ID,
			"error", err,
		)
	}
	return nil
}
