package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/events"
)

// progressUpdate is the display state written when an operation is claimed
type progressUpdate struct {
	percent int
	message string
}

// submit claims the pending slot, invokes the capability and records the
// returned handle. The slot is durable before the vendor is called, so a
// competing invocation sees it and backs off.
func submit[In, Out any](ctx context.Context, p *Pipeline, job *models.Job, kind models.OperationKind, c capability.Capability[In, Out], in In, progress progressUpdate) (capability.Handle, error) {
	now := p.now().UTC()
	expected := job.Version
	job.Pending = models.PendingOperation{
		Kind:       kind,
		SceneIndex: job.CurrentSceneIndex,
		StartedAt:  &now,
	}
	job.ProgressPercent = progress.percent
	job.ProgressMessage = progress.message
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return "", err
	}

	h, err := c.Invoke(ctx, in)
	if err != nil {
		var subErr *capability.RemoteSubmissionError
		if !errors.As(err, &subErr) {
			err = &capability.RemoteSubmissionError{Operation: kind.String(), Message: err.Error()}
		}
		return "", err
	}

	expected = job.Version
	job.Pending.Handle = h.String()
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return "", err
	}

	p.logJob(job, "Submitted remote operation", map[string]interface{}{
		"operation": kind.String(),
		"handle":    h.String(),
	})
	p.publish(job, events.EventOperationSubmitted, func(e *events.Event) { e.Operation = kind.String() })
	return h, nil
}

// submitFailed maps an error from submit to an outcome. Vendor rejections
// fail the job immediately.
func (p *Pipeline) submitFailed(ctx context.Context, job *models.Job, err error) (Outcome, error) {
	var subErr *capability.RemoteSubmissionError
	if errors.As(err, &subErr) {
		return p.fail(ctx, job, describeOp(job, job.Pending.Kind)+": "+subErr.Error())
	}
	return p.conflictOr(err)
}

// awaitPending polls the job's pending operation with what remains of its budget
func awaitPending[Out any](ctx context.Context, p *Pipeline, c capability.Poller[Out], job *models.Job) capability.PollResult[Out] {
	budget := p.opts.PollBudget
	if job.Pending.StartedAt != nil {
		budget -= p.now().Sub(*job.Pending.StartedAt)
	}
	return awaitWith(ctx, p, c, capability.Handle(job.Pending.Handle), budget)
}

// pollOnce checks a callback-mode operation right after its handle is
// recorded. A webhook delivered before then found no job waiting on it.
func pollOnce[Out any](ctx context.Context, c capability.Poller[Out], h capability.Handle) (capability.PollResult[Out], bool) {
	res := c.Poll(ctx, h)
	return res, !res.IsPending()
}

func awaitWith[Out any](ctx context.Context, p *Pipeline, c capability.Poller[Out], h capability.Handle, budget time.Duration) capability.PollResult[Out] {
	return capability.Await(ctx, c, h, budget, p.opts.PollInterval)
}

// expects reports whether the job is still waiting on exactly this operation
func expects(job *models.Job, kind models.OperationKind, h capability.Handle) bool {
	return job.Status == models.JobStatusProcessing &&
		job.Pending.Kind == kind &&
		job.Pending.Handle == h.String()
}

// interrupted reports whether a settle should be skipped because this
// invocation is shutting down; the pending slot stays for adoption.
func interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}

// callbackURL returns where the vendor should deliver the result, or "" when
// results are polled inline
func (p *Pipeline) callbackURL(kind models.OperationKind) string {
	if !p.opts.Callbacks || p.opts.CallbackBaseURL == "" {
		return ""
	}
	return strings.TrimRight(p.opts.CallbackBaseURL, "/") + "/" + CallbackSlug(kind)
}

// CallbackSlug is the webhook path segment for an operation kind
func CallbackSlug(kind models.OperationKind) string {
	return strings.ReplaceAll(kind.String(), "_", "-") + "-complete"
}

// ParseCallbackSlug maps a webhook path segment back to its operation kind
func ParseCallbackSlug(slug string) (models.OperationKind, error) {
	trimmed := strings.TrimSuffix(slug, "-complete")
	return models.ParseOperationKind(strings.ReplaceAll(trimmed, "-", "_"))
}
