package pipeline

import (
	"context"
	"fmt"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/events"
)

func (p *Pipeline) compose(ctx context.Context, job *models.Job) (Outcome, error) {
	in := p.RenderInput(job)
	h, err := submit(ctx, p, job, models.OperationRender, p.caps.Render, in, progressUpdate{
		percent: ComposePercent,
		message: "Rendering final video",
	})
	if err != nil {
		return p.submitFailed(ctx, job, err)
	}
	if p.opts.Callbacks {
		if res, settled := pollOnce(ctx, p.caps.Render, h); settled {
			return p.settleRender(ctx, job, h, res)
		}
		return OutcomeAwaitingCallback, nil
	}

	res := awaitPending(ctx, p, p.caps.Render, job)
	if interrupted(ctx) {
		return "", ctx.Err()
	}
	return p.settleRender(ctx, job, h, res)
}

// RenderInput builds the composition request from the completed scenes
func (p *Pipeline) RenderInput(job *models.Job) capability.RenderInput {
	params := job.Params()
	scenes := []models.SceneResult(job.CompletedScenes)
	offsets := SceneOffsets(scenes)

	in := capability.RenderInput{
		Scenes:      make([]capability.RenderScene, 0, len(scenes)),
		AspectRatio: params.AspectRatio,
		CallbackURL: p.callbackURL(models.OperationRender),
	}
	for i, s := range scenes {
		rs := capability.RenderScene{
			ClipURL:          s.ClipURL,
			Start:            offsets[i],
			DurationSeconds:  s.DurationSeconds,
			HasEmbeddedAudio: s.HasEmbeddedAudio,
		}
		if !s.HasEmbeddedAudio {
			rs.AudioURL = s.AudioURL
		}
		in.Scenes = append(in.Scenes, rs)
	}
	if params.CaptionsEnabled {
		in.Captions = BuildCaptions(scenes)
	}
	if params.MusicEnabled {
		in.MusicURL = params.MusicURL
		if in.MusicURL == "" {
			in.MusicURL = p.opts.DefaultMusicTrack
		}
	}
	return in
}

// settleRender finalizes the job with the rendered video
func (p *Pipeline) settleRender(ctx context.Context, job *models.Job, h capability.Handle, res capability.PollResult[capability.RenderOutput]) (Outcome, error) {
	if !expects(job, models.OperationRender, h) || res.IsPending() {
		return OutcomeNoop, nil
	}
	if res.IsFailed() {
		return p.fail(ctx, job, "render: "+res.Reason)
	}
	if res.Value.VideoURL == "" {
		return p.fail(ctx, job, "render: vendor returned no video")
	}

	duration := res.Value.DurationSeconds
	if duration <= 0 {
		duration = TotalDuration(job.CompletedScenes)
	}

	expected := job.Version
	job.Status = models.JobStatusCompleted
	job.ResultVideoURL = res.Value.VideoURL
	job.ResultDuration = duration
	job.ProgressPercent = CompletePercent
	job.ProgressMessage = "Video ready"
	job.Pending = models.PendingOperation{}
	job.SetNarration(nil)
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return p.conflictOr(err)
	}

	p.logJob(job, "Job completed", map[string]interface{}{
		"video_url": job.ResultVideoURL,
		"duration":  fmt.Sprintf("%.2fs", duration),
	})
	p.publish(job, events.EventJobCompleted, nil)
	return OutcomeCompleted, nil
}
