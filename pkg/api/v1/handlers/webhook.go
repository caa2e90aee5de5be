package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
	"github.com/celestiaorg/reelcast/internal/logger"
	"github.com/celestiaorg/reelcast/internal/pipeline"
	"github.com/celestiaorg/reelcast/pkg/types"
)

// WebhookHandler receives vendor completion notifications
type WebhookHandler struct {
	driver Driver
}

// NewWebhookHandler creates a new webhook handler instance
func NewWebhookHandler(driver Driver) *WebhookHandler {
	return &WebhookHandler{driver: driver}
}

// HandleWebhook applies a vendor status document to the job waiting on it.
// Every delivery that cannot be matched to a job is acknowledged with a noop
// so the vendor stops retrying; only storage failures ask for a redelivery.
func (h *WebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	slug := c.Params("operation")
	kind, err := pipeline.ParseCallbackSlug(slug)
	if err != nil {
		return ignoreWebhook(c, "", ErrMsgUnknownOperation, map[string]interface{}{"operation": slug})
	}

	var raw capability.RawResult
	if err := c.BodyParser(&raw); err != nil {
		return ignoreWebhook(c, kind, ErrMsgInvalidReqBody, map[string]interface{}{
			"operation": kind.String(),
			"error":     err.Error(),
		})
	}
	if raw.ID == "" {
		return ignoreWebhook(c, kind, ErrMsgHandleRequired, map[string]interface{}{"operation": kind.String()})
	}

	outcome, err := h.driver.HandleCallback(c.Context(), kind, raw)
	if err != nil {
		logger.ErrorWithFields(ErrMsgWebhookFailed, map[string]interface{}{
			"operation": kind.String(),
			"handle":    raw.ID,
			"error":     err.Error(),
		})
		return c.Status(fiber.StatusInternalServerError).JSON(types.ErrServer(ErrMsgWebhookFailed))
	}

	return c.JSON(types.Success(types.WebhookResponse{Operation: kind, Outcome: outcome}))
}

func ignoreWebhook(c *fiber.Ctx, kind models.OperationKind, reason string, fields map[string]interface{}) error {
	logger.WarnWithFields("Ignoring webhook: "+reason, fields)
	return c.JSON(types.Success(types.WebhookResponse{Operation: kind, Outcome: pipeline.OutcomeNoop}))
}
