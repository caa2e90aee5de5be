package driver

import (
	"context"
	"sync"
	"time"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/logger"
)

// LaunchWorker consumes job ids from the local trigger and runs one driver
// invocation for each, until ctx is cancelled
func LaunchWorker(ctx context.Context, wg *sync.WaitGroup, id int, queue *LocalTrigger, d *Driver) {
	defer wg.Done()

	logger.Infof("Worker %d started", id)

	for {
		jobID, ok := queue.Next(ctx)
		if !ok {
			logger.Infof("Worker %d received shutdown signal, stopping...", id)
			return
		}

		outcome, err := d.Advance(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				logger.Infof("Worker %d interrupted while advancing job %s", id, jobID)
				return
			}
			logger.ErrorWithFields("Worker failed to advance job", map[string]interface{}{
				"worker": id,
				"job_id": jobID,
				"error":  err.Error(),
			})
			continue
		}
		logger.DebugWithFields("Worker advanced job", map[string]interface{}{
			"worker":  id,
			"job_id":  jobID,
			"outcome": string(outcome),
		})
	}
}

// StaleLister finds jobs that stopped making progress
type StaleLister interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]models.Job, error)
}

// SweepOptions tunes the sweeper
type SweepOptions struct {
	// Interval between sweeps
	Interval time.Duration
	// StaleAfter is how long a processing job may go without an update
	StaleAfter time.Duration
	// Limit caps the jobs re-triggered per sweep
	Limit int
}

// LaunchSweeper periodically re-triggers processing jobs that have not been
// updated for a while. It recovers lost triggers and crashed invocations.
func LaunchSweeper(ctx context.Context, wg *sync.WaitGroup, jobs StaleLister, trigger Trigger, opts SweepOptions) {
	defer wg.Done()
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}

	logger.Info("Sweeper started")
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Sweeper received shutdown signal, stopping...")
			return
		case <-ticker.C:
			if _, err := Sweep(ctx, jobs, trigger, opts); err != nil {
				logger.Errorf("Sweeper error: %v", err)
			}
		}
	}
}

// Sweep runs one pass and returns how many jobs were re-triggered
func Sweep(ctx context.Context, jobs StaleLister, trigger Trigger, opts SweepOptions) (int, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	stale, err := jobs.ListStale(ctx, time.Now().UTC().Add(-opts.StaleAfter), opts.Limit)
	if err != nil {
		return 0, err
	}

	triggered := 0
	for _, job := range stale {
		if err := trigger.Trigger(ctx, job.ID); err != nil {
			logger.Warnf("Sweeper could not trigger job %s: %v", job.ID, err)
			continue
		}
		triggered++
	}
	if triggered > 0 {
		logger.Infof("Sweeper re-triggered %d stale jobs", triggered)
	}
	return triggered, nil
}
