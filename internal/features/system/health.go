package system

import (
	"context"
	"time"

	"go-campaign/internal/common/api"
	"go-campaign/internal/database"
	"go-campaign/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type mongoPinger struct {
	db *database.MongodbDB
}

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.db.DB.Client().Ping(ctx, readpref.Primary())
}

func NewMongoPinger(db *database.MongodbDB) Pinger {
	return mongoPinger{db: db}
}

type HealthController struct {
	store Pinger
}

func NewHealthController(store Pinger) *HealthController {
	return &HealthController{store: store}
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Check that the server and its database are up
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthController) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "degraded",
			"database": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

type HealthApi struct {
	Controller *HealthController
	Metrics    *metrics.Metrics
}

func NewHealthApi(controller *HealthController, m *metrics.Metrics) api.Route {
	return &HealthApi{
		Controller: controller,
		Metrics:    m,
	}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.Controller.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(h.Metrics.Handler()))
}
