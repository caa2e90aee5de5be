// Package driver decides how render jobs advance: one long invocation per
// job, one unit of work per invocation, or one unit per invocation with vendor
// webhooks settling the long-running operations.
package driver

import (
	"context"
	"fmt"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/config"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/logger"
	"github.com/celestiaorg/reelcast/internal/pipeline"
)

// Advancer is the pipeline as seen by the driver
type Advancer interface {
	Advance(ctx context.Context, id string) (pipeline.Outcome, error)
	HandleCallback(ctx context.Context, kind models.OperationKind, raw capability.RawResult) (pipeline.Outcome, string, error)
}

// Trigger schedules a future invocation for a job. Implementations must not
// block on the invocation itself.
type Trigger interface {
	Trigger(ctx context.Context, jobID string) error
}

// Driver runs pipeline invocations according to the configured mode
type Driver struct {
	mode     string
	pipeline Advancer
	trigger  Trigger
}

// New creates a driver
func New(mode string, p Advancer, trigger Trigger) (*Driver, error) {
	switch mode {
	case config.DriverMonolithic, config.DriverChunked, config.DriverCallback:
	default:
		return nil, fmt.Errorf("invalid driver mode %q", mode)
	}
	if trigger == nil {
		return nil, fmt.Errorf("trigger is required")
	}
	return &Driver{mode: mode, pipeline: p, trigger: trigger}, nil
}

// Mode returns the driver mode
func (d *Driver) Mode() string {
	return d.mode
}

// Kick schedules the first invocation of a newly created or retried job
func (d *Driver) Kick(ctx context.Context, jobID string) error {
	return d.trigger.Trigger(ctx, jobID)
}

// Advance runs one invocation. In monolithic mode the invocation keeps going
// until the job settles; otherwise it performs one unit of work and schedules
// the next one.
func (d *Driver) Advance(ctx context.Context, jobID string) (pipeline.Outcome, error) {
	outcome, err := d.pipeline.Advance(ctx, jobID)
	if err != nil {
		return outcome, err
	}

	if d.mode == config.DriverMonolithic {
		for outcome.Continues() {
			if outcome, err = d.pipeline.Advance(ctx, jobID); err != nil {
				return outcome, err
			}
		}
		return outcome, nil
	}

	if outcome.Continues() {
		d.next(ctx, jobID)
	}
	return outcome, nil
}

// HandleCallback settles a webhook delivery and schedules the next step of
// the job it belonged to
func (d *Driver) HandleCallback(ctx context.Context, kind models.OperationKind, raw capability.RawResult) (pipeline.Outcome, error) {
	outcome, jobID, err := d.pipeline.HandleCallback(ctx, kind, raw)
	if err != nil {
		return outcome, err
	}
	if jobID != "" && outcome.Continues() {
		d.next(ctx, jobID)
	}
	return outcome, nil
}

// next schedules the following invocation. A lost trigger is recovered by the
// sweeper, so failures are only logged.
func (d *Driver) next(ctx context.Context, jobID string) {
	if err := d.trigger.Trigger(ctx, jobID); err != nil {
		logger.WarnWithFields("Failed to trigger next step", map[string]interface{}{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}
}
