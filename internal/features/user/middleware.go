package user

import (
	"go-campaign/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SubscriptionMiddleware expires lapsed subscriptions for the caller. It never blocks the request.
func SubscriptionMiddleware(service UserService, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := utils.CurrentUserID(c)
		if err != nil {
			return c.Next()
		}
		if _, err := service.ExpireLapsedSubscription(c.UserContext(), id); err != nil {
			logger.Debug("subscription refresh skipped", zap.String("owner_id", id.Hex()), zap.Error(err))
		}
		return c.Next()
	}
}
