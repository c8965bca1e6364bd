package main

import (
	"context"
	"fmt"
	"time"

	common_api "go-campaign/internal/common/api"
	"go-campaign/internal/config"
	"go-campaign/internal/database"
	"go-campaign/internal/features/campaign"
	"go-campaign/internal/features/delivery"
	"go-campaign/internal/features/live"
	"go-campaign/internal/features/system"
	"go-campaign/internal/features/user"
	"go-campaign/internal/features/webhook"
	"go-campaign/internal/logger"
	"go-campaign/internal/metrics"
	"go-campaign/internal/middleware"
	"go-campaign/pkg/utils"

	_ "go-campaign/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	return app
}

// AsRoute tags the constructor so Fx adds it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every route in the group.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, log *zap.Logger) {
	log.Info("registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		log.Debug("setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, log *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				log.Info("server listening", zap.String("port", cfg.Port))
				if err := app.Listen(port); err != nil {
					log.Error("server failed to start", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

// StartDelivery runs the scheduler, ensures indexes, and re-arms campaigns scheduled before the last restart.
func StartDelivery(lc fx.Lifecycle, scheduler *delivery.Scheduler, repo campaign.CampaignRepository, service campaign.CampaignService, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := repo.EnsureIndexes(ctx); err != nil {
					log.Warn("failed to ensure campaign indexes", zap.Error(err))
				}
				n, err := service.ResumeScheduled(ctx)
				if err != nil {
					log.Error("failed to resume scheduled campaigns", zap.Error(err))
					return
				}
				log.Info("resumed scheduled campaigns", zap.Int("count", n))
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}

// @title           Campaign API
// @version         1.0
// @description     Bulk email campaigns with scheduled delivery and live engagement analytics.

// @host            localhost:8000
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			metrics.New,
			NewFiberServer,

			// Repositories
			user.NewUserRepository,
			campaign.NewCampaignRepository,

			// Services
			user.NewUserService,
			campaign.NewCampaignService,
			webhook.NewPipeline,
			delivery.NewScheduler,
			delivery.NewExecutor,
			delivery.NewSMTPTransport,
			live.NewHub,
			live.NewRedisRelay,
			live.NewPublisher,
			system.NewMongoPinger,

			// Interface adapters
			func(s *delivery.Scheduler) campaign.Scheduler { return s },
			func(e *delivery.Executor) campaign.Executor { return e },
			func(t *delivery.SMTPTransport) delivery.Transport { return t },
			func(s user.UserService) delivery.SenderLookup { return s },
			func(p *live.Publisher) delivery.Publisher { return p },
			func(p *live.Publisher) webhook.Publisher { return p },

			// Controllers
			user.NewUserController,
			campaign.NewCampaignController,
			webhook.NewWebhookController,
			live.NewLiveController,
			system.NewHealthController,

			// Routes
			AsRoute(user.NewUserApi),
			AsRoute(campaign.NewCampaignApi),
			AsRoute(webhook.NewWebhookApi),
			AsRoute(live.NewLiveApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartDelivery,
			StartServer,
		),
	)

	app.Run()
}
