package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/nexory/readygate/internal/domain"
)

// Compile-time check: Queue implements domain.TaskQueue.
var _ domain.TaskQueue = (*Queue)(nil)

// EnsureProfileArgs carries the data for a fire-and-forget profile
// provisioning job. River serializes this as JSON into its job queue table.
type EnsureProfileArgs struct {
	UserID string `json:"user_id"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EnsureProfileArgs) Kind() string { return "profile.ensure" }

// PrefetchWorkspaceArgs carries the data for a workspace cache-warming job.
type PrefetchWorkspaceArgs struct {
	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (PrefetchWorkspaceArgs) Kind() string { return "workspace.prefetch" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Queue implements domain.TaskQueue by enqueuing River jobs.
type Queue struct {
	client *Client
}

// NewQueue creates a task queue backed by the given River client.
func NewQueue(client *Client) *Queue {
	return &Queue{client: client}
}

// EnqueueEnsureProfile enqueues a profile provisioning job.
func (q *Queue) EnqueueEnsureProfile(ctx context.Context, userID string) error {
	_, err := q.client.Insert(ctx, EnsureProfileArgs{UserID: userID}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing ensure-profile job: %w", err)
	}
	return nil
}

// EnqueuePrefetchWorkspace enqueues a workspace cache-warming job.
func (q *Queue) EnqueuePrefetchWorkspace(ctx context.Context, userID, workspaceID string) error {
	_, err := q.client.Insert(ctx, PrefetchWorkspaceArgs{UserID: userID, WorkspaceID: workspaceID}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing prefetch-workspace job: %w", err)
	}
	return nil
}
