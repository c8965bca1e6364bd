package webhook

import (
	"context"

	"go-campaign/internal/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Ingester consumes a raw webhook body.
type Ingester interface {
	Ingest(ctx context.Context, body []byte) (Result, error)
}

type WebhookController struct {
	Ingester Ingester
	verifier *SignatureVerifier
	logger   *zap.Logger
}

func NewWebhookController(pipeline *Pipeline, cfg *config.Config, logger *zap.Logger) (*WebhookController, error) {
	verifier, err := NewSignatureVerifier(cfg.WebhookPublicKey)
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		logger.Warn("webhook signature verification disabled; WEBHOOK_PUBLIC_KEY not set")
	}
	return &WebhookController{
		Ingester: pipeline,
		verifier: verifier,
		logger:   logger.Named("webhook"),
	}, nil
}

// HandleEvents godoc
// @Summary Provider event webhook
// @Description Ingests a batch of delivery and engagement events
// @Tags webhooks
// @Accept json
// @Produce plain
// @Param events body []map[string]interface{} true "Provider events"
// @Success 200 {string} string "OK"
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/sendgrid/webhook [post]
func (ctrl *WebhookController) HandleEvents(c *fiber.Ctx) error {
	body := c.Body()

	if ctrl.verifier != nil {
		if err := ctrl.verifier.Verify(body, c.Get(SignatureHeader), c.Get(TimestampHeader)); err != nil {
			ctrl.logger.Warn("rejected unsigned webhook call", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}

	if _, err := ctrl.Ingester.Ingest(c.UserContext(), body); err != nil {
		ctrl.logger.Error("webhook batch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Webhook error",
			"error":   err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).SendString("OK")
}
