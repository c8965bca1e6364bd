package campaign

import (
	"go-campaign/internal/common/api"
	"go-campaign/internal/config"
	"go-campaign/internal/features/user"
	"go-campaign/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CampaignApi struct {
	controller  *CampaignController
	userService user.UserService
	config      *config.Config
	logger      *zap.Logger
}

func NewCampaignApi(controller *CampaignController, userService user.UserService, config *config.Config, logger *zap.Logger) api.Route {
	return &CampaignApi{
		controller:  controller,
		userService: userService,
		config:      config,
		logger:      logger,
	}
}

func (h *CampaignApi) Setup(app *fiber.App) {
	campaigns := app.Group("/api/campaigns",
		middleware.AuthMiddleware(h.config.SkipAuth),
		user.SubscriptionMiddleware(h.userService, h.logger),
	)
	campaigns.Post("/", h.controller.CreateCampaign)
	campaigns.Get("/", h.controller.ListCampaigns)
	campaigns.Get("/:id", h.controller.GetCampaign)
	campaigns.Put("/:id", h.controller.UpdateCampaign)
	campaigns.Delete("/:id", h.controller.DeleteCampaign)
	campaigns.Post("/:id/send", h.controller.SendCampaign)
	campaigns.Get("/:id/export", h.controller.ExportCampaign)

	// Readable by anyone holding the id, like the live update topic
	app.Get("/api/metrics/:campaignId", h.controller.GetMetrics)
	app.Get("/api/analytics/:campaignId", h.controller.GetAnalytics)
}
