package services

import (
	"context"

	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/events"
	"github.com/celestiaorg/reelcast/internal/logger"
)

// Subscriber registers event handlers
type Subscriber interface {
	Subscribe(events.EventType, events.Handler)
}

// Credits writes the ledger hooks of the job lifecycle: a charge when an
// attempt starts, a refund when it fails and a settle when the video is ready.
// Entries are idempotent per job, kind and attempt.
type Credits struct {
	repo *repos.CreditRepository
}

// NewCreditsService creates a new credits service
func NewCreditsService(repo *repos.CreditRepository) *Credits {
	return &Credits{repo: repo}
}

// Subscribe wires the ledger hooks to the event bus
func (s *Credits) Subscribe(bus Subscriber) {
	bus.Subscribe(events.EventJobStarted, s.handle(models.CreditKindCharge))
	bus.Subscribe(events.EventJobRetried, s.handle(models.CreditKindCharge))
	bus.Subscribe(events.EventJobFailed, s.handle(models.CreditKindRefund))
	bus.Subscribe(events.EventJobCompleted, s.handle(models.CreditKindSettle))
}

// ListByJob returns the ledger entries of a job
func (s *Credits) ListByJob(ctx context.Context, jobID string) ([]models.CreditEntry, error) {
	return s.repo.ListByJob(ctx, jobID)
}

func (s *Credits) handle(kind models.CreditKind) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		return s.Record(ctx, kind, e)
	}
}

// Record writes one ledger entry for the event's attempt
func (s *Credits) Record(ctx context.Context, kind models.CreditKind, e events.Event) error {
	attempt := e.Attempt
	if attempt < 1 {
		attempt = 1
	}
	entry := &models.CreditEntry{
		JobID:   e.JobID,
		Kind:    kind,
		Attempt: attempt,
		Units:   units(e),
	}
	written, err := s.repo.Record(ctx, entry)
	if err != nil {
		return err
	}
	if written {
		logger.InfoWithFields("Credit entry recorded", map[string]interface{}{
			"job_id":  e.JobID,
			"kind":    kind.String(),
			"attempt": attempt,
			"units":   entry.Units,
		})
	}
	return nil
}

// units is one credit per requested scene
func units(e events.Event) int {
	if e.TotalScenes < 1 {
		return 1
	}
	return e.TotalScenes
}
