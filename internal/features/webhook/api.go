package webhook

import (
	"go-campaign/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type WebhookApi struct {
	controller *WebhookController
}

func NewWebhookApi(controller *WebhookController) api.Route {
	return &WebhookApi{
		controller: controller,
	}
}

// Setup registers the provider callback. It is authenticated by signature, never by user token.
func (h *WebhookApi) Setup(app *fiber.App) {
	app.Post("/api/sendgrid/webhook", h.controller.HandleEvents)
}
