package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/events"
	"github.com/celestiaorg/reelcast/internal/logger"
)

func (p *Pipeline) narrate(ctx context.Context, job *models.Job) (Outcome, error) {
	params := job.Params()
	scene := params.Scenes[job.CurrentSceneIndex]

	in := capability.NarrationInput{Text: scene.Text, VoiceID: params.VoiceID}
	h, err := submit(ctx, p, job, models.OperationNarration, p.caps.Narration, in, progressUpdate{
		percent: ScenePercent(job.CurrentSceneIndex, job.TotalScenes),
		message: fmt.Sprintf("Narrating scene %d of %d", job.CurrentSceneIndex+1, job.TotalScenes),
	})
	if err != nil {
		return p.submitFailed(ctx, job, err)
	}

	res := awaitPending(ctx, p, p.caps.Narration, job)
	if interrupted(ctx) {
		return "", ctx.Err()
	}
	return p.settleNarration(ctx, job, h, res)
}

// settleNarration caches the measured narration of the scene at the cursor
func (p *Pipeline) settleNarration(ctx context.Context, job *models.Job, h capability.Handle, res capability.PollResult[capability.NarrationOutput]) (Outcome, error) {
	if !expects(job, models.OperationNarration, h) || res.IsPending() {
		return OutcomeNoop, nil
	}
	if res.IsFailed() {
		return p.fail(ctx, job, fmt.Sprintf("scene %d narration: %s", job.CurrentSceneIndex+1, res.Reason))
	}
	if res.Value.AudioURL == "" || res.Value.DurationSeconds <= 0 {
		return p.fail(ctx, job, fmt.Sprintf("scene %d narration: vendor returned no measurable audio", job.CurrentSceneIndex+1))
	}

	expected := job.Version
	job.SetNarration(&models.NarrationResult{
		SceneIndex:      job.CurrentSceneIndex,
		AudioURL:        res.Value.AudioURL,
		DurationSeconds: res.Value.DurationSeconds,
	})
	job.Pending = models.PendingOperation{}
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return p.conflictOr(err)
	}
	return OutcomeStepCompleted, nil
}

func (p *Pipeline) transcribe(ctx context.Context, job *models.Job) (Outcome, error) {
	narration := job.Narration()
	in := capability.TranscriptionInput{AudioURL: narration.AudioURL}
	h, err := submit(ctx, p, job, models.OperationTranscription, p.caps.Transcription, in, progressUpdate{
		percent: job.ProgressPercent,
		message: fmt.Sprintf("Transcribing scene %d of %d", job.CurrentSceneIndex+1, job.TotalScenes),
	})
	if err != nil {
		var subErr *capability.RemoteSubmissionError
		if errors.As(err, &subErr) {
			return p.settleTranscription(ctx, job, capability.Handle(job.Pending.Handle),
				capability.Failed[capability.TranscriptionOutput](err.Error()))
		}
		return p.conflictOr(err)
	}

	res := awaitPending(ctx, p, p.caps.Transcription, job)
	if interrupted(ctx) {
		return "", ctx.Err()
	}
	return p.settleTranscription(ctx, job, h, res)
}

// settleTranscription stores word timings on the cached narration. A failed
// transcription is not fatal: the scene falls back to one caption cue.
func (p *Pipeline) settleTranscription(ctx context.Context, job *models.Job, h capability.Handle, res capability.PollResult[capability.TranscriptionOutput]) (Outcome, error) {
	if !expects(job, models.OperationTranscription, h) || res.IsPending() {
		return OutcomeNoop, nil
	}

	narration := job.Narration()
	if narration == nil {
		return p.fail(ctx, job, fmt.Sprintf("scene %d transcription: narration is missing", job.CurrentSceneIndex+1))
	}
	updated := *narration
	updated.Transcribed = true
	if res.IsDone() {
		updated.Words = clampWords(res.Value.Words, narration.DurationSeconds)
	} else {
		logger.WarnWithFields("Transcription failed, using scene captions", map[string]interface{}{
			"job_id":      job.ID,
			"scene_index": job.CurrentSceneIndex,
			"reason":      res.Reason,
		})
		updated.Words = nil
	}

	expected := job.Version
	job.SetNarration(&updated)
	job.Pending = models.PendingOperation{}
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return p.conflictOr(err)
	}
	return OutcomeStepCompleted, nil
}

func (p *Pipeline) visual(ctx context.Context, job *models.Job) (Outcome, error) {
	params := job.Params()
	scene := params.Scenes[job.CurrentSceneIndex]
	progress := progressUpdate{
		percent: ScenePercent(job.CurrentSceneIndex, job.TotalScenes),
		message: fmt.Sprintf("Generating visuals for scene %d of %d", job.CurrentSceneIndex+1, job.TotalScenes),
	}

	switch scene.Kind {
	case models.SceneKindTalkingHead:
		in := capability.TalkingHeadInput{
			IdentityImageURL: params.IdentityImageURL,
			AudioURL:         job.Narration().AudioURL,
			AspectRatio:      params.AspectRatio,
			CallbackURL:      p.callbackURL(models.OperationTalkingHead),
		}
		h, err := submit(ctx, p, job, models.OperationTalkingHead, p.caps.TalkingHead, in, progress)
		if err != nil {
			return p.submitFailed(ctx, job, err)
		}
		if p.opts.Callbacks {
			if res, settled := pollOnce(ctx, p.caps.TalkingHead, h); settled {
				return p.settleTalkingHead(ctx, job, h, res)
			}
			return OutcomeAwaitingCallback, nil
		}
		res := awaitPending(ctx, p, p.caps.TalkingHead, job)
		if interrupted(ctx) {
			return "", ctx.Err()
		}
		return p.settleTalkingHead(ctx, job, h, res)

	case models.SceneKindStaticAsset:
		if scene.AssetURL != "" {
			return p.completeScene(ctx, job, scene.AssetURL, false)
		}
		if scene.ImagePrompt == "" || p.caps.Image == nil {
			return p.completeScene(ctx, job, params.IdentityImageURL, false)
		}
		in := capability.ImageInput{
			Prompt:      scene.ImagePrompt,
			AspectRatio: params.AspectRatio,
			CallbackURL: p.callbackURL(models.OperationImage),
		}
		h, err := submit(ctx, p, job, models.OperationImage, p.caps.Image, in, progress)
		if err != nil {
			return p.submitFailed(ctx, job, err)
		}
		if p.opts.Callbacks {
			if res, settled := pollOnce(ctx, p.caps.Image, h); settled {
				return p.settleImage(ctx, job, h, res)
			}
			return OutcomeAwaitingCallback, nil
		}
		res := awaitPending(ctx, p, p.caps.Image, job)
		if interrupted(ctx) {
			return "", ctx.Err()
		}
		return p.settleImage(ctx, job, h, res)

	default:
		return p.fail(ctx, job, fmt.Sprintf("scene %d has unknown kind %q", job.CurrentSceneIndex+1, scene.Kind))
	}
}

func (p *Pipeline) settleTalkingHead(ctx context.Context, job *models.Job, h capability.Handle, res capability.PollResult[capability.TalkingHeadOutput]) (Outcome, error) {
	if !expects(job, models.OperationTalkingHead, h) || res.IsPending() {
		return OutcomeNoop, nil
	}
	if res.IsFailed() {
		return p.fail(ctx, job, fmt.Sprintf("scene %d talking head: %s", job.CurrentSceneIndex+1, res.Reason))
	}
	if res.Value.VideoURL == "" {
		return p.fail(ctx, job, fmt.Sprintf("scene %d talking head: vendor returned no video", job.CurrentSceneIndex+1))
	}
	return p.completeScene(ctx, job, res.Value.VideoURL, true)
}

func (p *Pipeline) settleImage(ctx context.Context, job *models.Job, h capability.Handle, res capability.PollResult[capability.ImageOutput]) (Outcome, error) {
	if !expects(job, models.OperationImage, h) || res.IsPending() {
		return OutcomeNoop, nil
	}
	if res.IsFailed() {
		return p.fail(ctx, job, fmt.Sprintf("scene %d image: %s", job.CurrentSceneIndex+1, res.Reason))
	}
	if res.Value.ImageURL == "" {
		return p.fail(ctx, job, fmt.Sprintf("scene %d image: vendor returned no image", job.CurrentSceneIndex+1))
	}
	return p.completeScene(ctx, job, res.Value.ImageURL, false)
}

// completeScene appends the scene result at the cursor, clears the pending
// slot and the narration cache, and advances the cursor in one write.
func (p *Pipeline) completeScene(ctx context.Context, job *models.Job, clipURL string, embeddedAudio bool) (Outcome, error) {
	i := job.CurrentSceneIndex
	narration := job.Narration()
	if narration == nil || narration.SceneIndex != i {
		return p.fail(ctx, job, fmt.Sprintf("scene %d: narration is missing", i+1))
	}
	if clipURL == "" {
		return p.fail(ctx, job, fmt.Sprintf("scene %d: no visual is available", i+1))
	}
	for _, done := range job.CompletedScenes {
		if done.Index == i {
			return OutcomeNoop, nil
		}
	}

	scene := job.Params().Scenes[i]
	expected := job.Version
	job.CompletedScenes = append(job.CompletedScenes, models.SceneResult{
		Index:            i,
		Kind:             scene.Kind,
		ClipURL:          clipURL,
		AudioURL:         narration.AudioURL,
		DurationSeconds:  narration.DurationSeconds,
		Text:             scene.Text,
		HasEmbeddedAudio: embeddedAudio,
		Words:            narration.Words,
	})
	job.CurrentSceneIndex = i + 1
	job.SetNarration(nil)
	job.Pending = models.PendingOperation{}
	job.ProgressPercent = ScenePercent(i+1, job.TotalScenes)
	job.ProgressMessage = fmt.Sprintf("Scene %d of %d ready", i+1, job.TotalScenes)
	if err := p.jobs.CompareAndSet(ctx, job, expected); err != nil {
		return p.conflictOr(err)
	}

	p.logJob(job, "Scene completed", map[string]interface{}{"completed_index": i})
	p.publish(job, events.EventSceneCompleted, func(e *events.Event) { e.SceneIndex = i })
	return OutcomeSceneCompleted, nil
}

// clampWords keeps word timings inside the measured narration
func clampWords(words []models.Word, duration float64) []models.Word {
	out := make([]models.Word, 0, len(words))
	for _, w := range words {
		if w.Start >= duration {
			continue
		}
		if w.Start < 0 {
			w.Start = 0
		}
		if w.End > duration {
			w.End = duration
		}
		if w.End < w.Start {
			w.End = w.Start
		}
		out = append(out, w)
	}
	return out
}
