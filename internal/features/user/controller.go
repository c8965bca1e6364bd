package user

import (
	"errors"

	"go-campaign/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type UserController struct {
	Service UserService
}

func NewUserController(service UserService) *UserController {
	return &UserController{
		Service: service,
	}
}

// GetMe godoc
// @Summary Current user
// @Description Sender identity and subscription of the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} User
// @Failure 404 {object} map[string]interface{}
// @Router /api/users/me [get]
func (ctrl *UserController) GetMe(c *fiber.Ctx) error {
	id, err := utils.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	u, err := ctrl.Service.GetUserByID(c.UserContext(), id)
	if errors.Is(err, ErrUserNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found."})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(u)
}
