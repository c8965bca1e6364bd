package user

import (
	"go-campaign/internal/common/api"
	"go-campaign/internal/config"
	"go-campaign/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserApi struct {
	controller *UserController
	service    UserService
	config     *config.Config
	logger     *zap.Logger
}

func NewUserApi(controller *UserController, service UserService, config *config.Config, logger *zap.Logger) api.Route {
	return &UserApi{
		controller: controller,
		service:    service,
		config:     config,
		logger:     logger,
	}
}

func (h *UserApi) Setup(app *fiber.App) {
	users := app.Group("/api/users",
		middleware.AuthMiddleware(h.config.SkipAuth),
		SubscriptionMiddleware(h.service, h.logger),
	)
	users.Get("/me", h.controller.GetMe)
}
