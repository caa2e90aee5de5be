package handlers

import (
	"context"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/pipeline"
)

// JobService is the job business logic the handlers call into
type JobService interface {
	Create(ctx context.Context, input models.JobInput) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, opts *models.ListOptions) ([]models.Job, int64, error)
	Retry(ctx context.Context, id string) (*models.Job, error)
	Restart(ctx context.Context, id string) (*models.Job, error)
}

// Driver runs pipeline invocations on behalf of triggers and webhooks
type Driver interface {
	Advance(ctx context.Context, jobID string) (pipeline.Outcome, error)
	HandleCallback(ctx context.Context, kind models.OperationKind, raw capability.RawResult) (pipeline.Outcome, error)
}
