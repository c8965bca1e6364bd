package live

import (
	"go-campaign/internal/common/api"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type LiveApi struct {
	Controller *LiveController
}

func NewLiveApi(controller *LiveController) api.Route {
	return &LiveApi{
		Controller: controller,
	}
}

func (h *LiveApi) Setup(app *fiber.App) {
	app.Get("/api/ws", h.Controller.RequireUpgrade, websocket.New(h.Controller.HandleWebSocket))
}
