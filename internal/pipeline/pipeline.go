// Package pipeline implements the scene-by-scene render state machine. Every
// mutation goes through a versioned compare-and-set on the job row, so any
// number of invocations may race on the same job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/events"
	"github.com/celestiaorg/reelcast/internal/logger"
)

// Outcome describes what a single invocation achieved
type Outcome string

// Outcomes
const (
	// OutcomeStepCompleted means a sub-step settled and the scene still has work left
	OutcomeStepCompleted Outcome = "step_completed"
	// OutcomeSceneCompleted means a scene result was appended
	OutcomeSceneCompleted Outcome = "scene_completed"
	// OutcomeAwaitingCallback means a remote operation was submitted and a webhook will settle it
	OutcomeAwaitingCallback Outcome = "awaiting_callback"
	// OutcomeCompleted means the final video was recorded
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the job transitioned to failed
	OutcomeFailed Outcome = "failed"
	// OutcomeAlreadyProcessing means another invocation owns the in-flight operation
	OutcomeAlreadyProcessing Outcome = "already_processing"
	// OutcomeNoop means nothing was changed: the job is terminal or another writer won
	OutcomeNoop Outcome = "noop"
)

// Continues reports whether the driver should trigger another invocation
func (o Outcome) Continues() bool {
	return o == OutcomeSceneCompleted || o == OutcomeStepCompleted
}

// ErrNotRetryable is returned when retrying a job that has not failed
var ErrNotRetryable = errors.New("only failed jobs can be retried")

// JobStore is the persistence the pipeline needs
type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.Job, error)
	CompareAndSet(ctx context.Context, job *models.Job, expectedVersion uint) error
	FindByPendingHandle(ctx context.Context, kind models.OperationKind, handle string) (*models.Job, error)
}

// Publisher receives lifecycle events
type Publisher interface {
	Publish(events.Event)
}

// Options tunes the pipeline
type Options struct {
	// PollBudget bounds how long one remote operation may take
	PollBudget time.Duration
	// PollInterval is the delay between status queries
	PollInterval time.Duration
	// AbandonGrace is added to PollBudget before an in-flight operation is
	// considered abandoned by its invocation and may be adopted
	AbandonGrace time.Duration
	// Callbacks makes long-running operations wait for a webhook instead of
	// being polled inline
	Callbacks bool
	// CallbackBaseURL is the public URL webhooks are delivered to
	CallbackBaseURL string
	// DefaultMusicTrack is used when music is enabled without a track
	DefaultMusicTrack string
}

// Pipeline advances render jobs
type Pipeline struct {
	jobs      JobStore
	caps      capability.Set
	publisher Publisher
	opts      Options
	now       func() time.Time
}

// New creates a pipeline. publisher may be nil.
func New(jobs JobStore, caps capability.Set, publisher Publisher, opts Options) *Pipeline {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.PollBudget <= 0 {
		opts.PollBudget = 3 * time.Minute
	}
	return &Pipeline{
		jobs:      jobs,
		caps:      caps,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// Advance performs one unit of work on the job: one scene, or the final
// composition. It is safe to call redundantly and concurrently.
func (p *Pipeline) Advance(ctx context.Context, id string) (Outcome, error) {
	job, err := p.jobs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status.IsTerminal() {
		return OutcomeNoop, nil
	}

	if job.Status == models.JobStatusPending {
		if err := p.start(ctx, job); err != nil {
			return p.conflictOr(err)
		}
	}

	for {
		outcome, err := p.step(ctx, job)
		if err != nil || outcome != OutcomeStepCompleted {
			return outcome, err
		}
	}
}

// Retry moves a failed job back to processing. It resumes at the scene
// cursor; completed scenes and a cached narration are kept.
func (p *Pipeline) Retry(ctx context.Context, id string) (*models.Job, error) {
	job, err := p.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusFailed {
		return nil, ErrNotRetryable
	}

	expected := job.Version
	job.Status = models.JobStatusProcessing
	job.Attempt++
	job.ErrorMessage = ""
	job.Pending = models.PendingOperation{}
	job.ProgressMessage = retryMessage(job)
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return nil, err
	}

	p.logJob(job, "Job retried", nil)
	p.publish(job, events.EventJobRetried, nil)
	return job, nil
}

func (p *Pipeline) start(ctx context.Context, job *models.Job) error {
	expected := job.Version
	job.Status = models.JobStatusProcessing
	job.ProgressPercent = SetupPercent
	job.ProgressMessage = "Preparing scenes"
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return err
	}
	p.logJob(job, "Job started", nil)
	p.publish(job, events.EventJobStarted, nil)
	return nil
}

// step performs the next sub-transition of the job
func (p *Pipeline) step(ctx context.Context, job *models.Job) (Outcome, error) {
	if job.Status.IsTerminal() {
		return OutcomeNoop, nil
	}

	if !job.Pending.IsEmpty() {
		if !p.abandoned(job) {
			return OutcomeAlreadyProcessing, nil
		}
		return p.adopt(ctx, job)
	}

	if job.CurrentSceneIndex >= job.TotalScenes {
		return p.compose(ctx, job)
	}

	narration := job.Narration()
	if narration == nil || narration.SceneIndex != job.CurrentSceneIndex {
		return p.narrate(ctx, job)
	}
	if p.wantsWords(job) && !narration.Transcribed {
		return p.transcribe(ctx, job)
	}
	return p.visual(ctx, job)
}

// abandoned reports whether the invocation owning the pending operation is
// presumed dead
func (p *Pipeline) abandoned(job *models.Job) bool {
	if job.Pending.StartedAt == nil {
		return true
	}
	limit := job.Pending.StartedAt.Add(p.opts.PollBudget + p.opts.AbandonGrace)
	return p.now().After(limit)
}

// adopt takes over an abandoned operation. A recorded handle gets one more
// polling window; a slot claimed without a handle cannot be recovered and
// fails its step.
func (p *Pipeline) adopt(ctx context.Context, job *models.Job) (Outcome, error) {
	kind := job.Pending.Kind
	p.logJob(job, "Adopting abandoned operation", map[string]interface{}{
		"operation": kind.String(),
		"handle":    job.Pending.Handle,
	})

	if job.Pending.Handle == "" {
		return p.fail(ctx, job, fmt.Sprintf("%s was interrupted before the vendor acknowledged it", describeOp(job, kind)))
	}

	budget := p.opts.AbandonGrace
	if budget < p.opts.PollInterval {
		budget = p.opts.PollInterval
	}
	h := capability.Handle(job.Pending.Handle)

	switch kind {
	case models.OperationNarration:
		return p.settleNarration(ctx, job, h, awaitWith(ctx, p, p.caps.Narration, h, budget))
	case models.OperationTranscription:
		return p.settleTranscription(ctx, job, h, awaitWith(ctx, p, p.caps.Transcription, h, budget))
	case models.OperationTalkingHead:
		return p.settleTalkingHead(ctx, job, h, awaitWith(ctx, p, p.caps.TalkingHead, h, budget))
	case models.OperationImage:
		return p.settleImage(ctx, job, h, awaitWith(ctx, p, p.caps.Image, h, budget))
	case models.OperationRender:
		return p.settleRender(ctx, job, h, awaitWith(ctx, p, p.caps.Render, h, budget))
	default:
		return p.fail(ctx, job, fmt.Sprintf("unknown pending operation %q", kind))
	}
}

// fail records a failure of the current step. Completed scenes and the
// narration cache survive so a retry resumes where the job stopped.
func (p *Pipeline) fail(ctx context.Context, job *models.Job, reason string) (Outcome, error) {
	expected := job.Version
	job.Status = models.JobStatusFailed
	job.ErrorMessage = reason
	job.ProgressMessage = "Failed"
	job.Pending = models.PendingOperation{}
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return p.conflictOr(err)
	}

	p.logJob(job, "Job failed", map[string]interface{}{"reason": reason})
	p.publish(job, events.EventJobFailed, func(e *events.Event) { e.Reason = reason })
	return OutcomeFailed, nil
}

// conflictOr turns a lost compare-and-set into a quiet no-op
func (p *Pipeline) conflictOr(err error) (Outcome, error) {
	if errors.Is(err, repos.ErrConflict) {
		return OutcomeNoop, nil
	}
	return "", err
}

func (p *Pipeline) publish(job *models.Job, t events.EventType, mutate func(*events.Event)) {
	if p.publisher == nil {
		return
	}
	e := events.Event{
		Type:        t,
		JobID:       job.ID,
		Attempt:     job.Attempt,
		TotalScenes: job.TotalScenes,
		SceneIndex:  job.CurrentSceneIndex,
	}
	if mutate != nil {
		mutate(&e)
	}
	p.publisher.Publish(e)
}

func (p *Pipeline) logJob(job *models.Job, msg string, extra map[string]interface{}) {
	fields := map[string]interface{}{
		"job_id":      job.ID,
		"scene_index": job.CurrentSceneIndex,
		"status":      job.Status.String(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	logger.InfoWithFields(msg, fields)
}

func (p *Pipeline) wantsWords(job *models.Job) bool {
	params := job.Params()
	return params.CaptionsEnabled && params.WordCaptions && p.caps.Transcription != nil
}

func describeOp(job *models.Job, kind models.OperationKind) string {
	if kind == models.OperationRender {
		return "render"
	}
	return fmt.Sprintf("scene %d %s", job.Pending.SceneIndex+1, kind)
}

func retryMessage(job *models.Job) string {
	if job.CurrentSceneIndex >= job.TotalScenes {
		return "Retrying final render"
	}
	return fmt.Sprintf("Retrying scene %d of %d", job.CurrentSceneIndex+1, job.TotalScenes)
}
