package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go-campaign/internal/config"
	"go-campaign/internal/database"
	"go-campaign/internal/features/user"
	"go-campaign/internal/logger"
	"go-campaign/internal/middleware"
	"go-campaign/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type seedOptions struct {
	email    string
	name     string
	verified bool
	trial    time.Duration
}

// Seed upserts a sender account and prints a token for it, then stops the app.
func Seed(
	lc fx.Lifecycle,
	cfg *config.Config,
	userRepo user.UserRepository,
	opts seedOptions,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				id, _ := primitive.ObjectIDFromHex(middleware.DevUserID)
				now := time.Now().UTC()
				trialEnds := now.Add(opts.trial)
				sender := &user.User{
					ID:               id,
					Name:             opts.name,
					Email:            opts.email,
					IsSenderVerified: opts.verified,
					Subscription: user.Subscription{
						Status:      user.SubscriptionTrial,
						TrialEndsAt: &trialEnds,
					},
					CreatedAt: now,
				}

				if err := userRepo.Upsert(ctx, sender); err != nil {
					logger.Error("failed to seed sender", zap.Error(err))
					return
				}
				logger.Info("seeded sender",
					zap.String("owner_id", id.Hex()),
					zap.String("email", opts.email),
					zap.Bool("verified", opts.verified),
				)

				utils.SetSecret(cfg.JWTSecret)
				token, err := utils.GenerateToken(id)
				if err != nil {
					logger.Error("failed to issue token", zap.Error(err))
					return
				}
				fmt.Printf("Authorization: Bearer %s\n", token)
			}()
			return nil
		},
	})
}

func main() {
	opts := seedOptions{}
	flag.StringVar(&opts.email, "email", "sender@example.com", "verified sender address")
	flag.StringVar(&opts.name, "name", "Dev Sender", "sender display name")
	flag.BoolVar(&opts.verified, "verified", true, "mark the sender as verified")
	flag.DurationVar(&opts.trial, "trial", 14*24*time.Hour, "trial length")
	flag.Parse()

	app := fx.New(
		fx.Supply(opts),
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			user.NewUserRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}
