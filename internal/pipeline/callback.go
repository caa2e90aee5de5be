package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/db/repos"
	"github.com/celestiaorg/reelcast/internal/logger"
)

// HandleCallback applies a vendor webhook. The vendor handle is mapped back
// to the job waiting on it and settled exactly like an inline poll would be.
// Unknown handles and jobs that moved on are a quiet no-op.
func (p *Pipeline) HandleCallback(ctx context.Context, kind models.OperationKind, raw capability.RawResult) (Outcome, string, error) {
	job, err := p.jobs.FindByPendingHandle(ctx, kind, raw.ID)
	if errors.Is(err, repos.ErrNotFound) {
		logger.WarnWithFields("Webhook for unknown handle ignored", map[string]interface{}{
			"operation": kind.String(),
			"handle":    raw.ID,
		})
		return OutcomeNoop, "", nil
	}
	if err != nil {
		return "", "", err
	}
	if job.Status.IsTerminal() {
		return OutcomeNoop, job.ID, nil
	}

	h := capability.Handle(raw.ID)
	var outcome Outcome
	switch kind {
	case models.OperationNarration:
		outcome, err = p.settleNarration(ctx, job, h, p.caps.Narration.Decode(raw))
	case models.OperationTranscription:
		outcome, err = p.settleTranscription(ctx, job, h, p.caps.Transcription.Decode(raw))
	case models.OperationTalkingHead:
		outcome, err = p.settleTalkingHead(ctx, job, h, p.caps.TalkingHead.Decode(raw))
	case models.OperationImage:
		outcome, err = p.settleImage(ctx, job, h, p.caps.Image.Decode(raw))
	case models.OperationRender:
		outcome, err = p.settleRender(ctx, job, h, p.caps.Render.Decode(raw))
	default:
		return "", job.ID, fmt.Errorf("unsupported callback operation %q", kind)
	}
	return outcome, job.ID, err
}
