package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/server"
	"github.com/pageza/foodgram/backend/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Str("env", string(config.GetEnvironment())).Msg("starting foodgram api")

	db, err := database.Open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.RunMigrations(db, cfg.Database.MigrationsDir); err != nil {
		logging.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	images, err := newImageStore(ctx, cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize image storage")
	}

	// Redis is optional: without it logout does not revoke tokens and the
	// creation limit is enforced per process.
	var (
		redisClient *redis.Client
		revocations service.RevocationStore
	)
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisClient(cfg.Redis)
		if err != nil {
			logging.Warn().Err(err).Msg("redis unavailable, continuing without it")
			redisClient = nil
		} else {
			defer redisClient.Close()
			revocations = service.NewRedisRevocationStore(redisClient)
		}
	}

	limitCfg := middleware.RateLimitConfig{
		Window:    cfg.RateLimit.Window,
		Limit:     cfg.RateLimit.RecipeCreations,
		KeyPrefix: "rate_limit:recipe_creation",
	}
	var limiter middleware.Limiter = middleware.NewLocalLimiter(limitCfg)
	if redisClient != nil {
		limiter = middleware.NewRedisLimiter(redisClient, limitCfg)
	}

	auth := service.NewAuthService(db, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, revocations)
	svc := api.Services{
		Auth:          auth,
		Users:         service.NewUserService(db),
		Catalog:       service.NewCatalogService(db),
		Recipes:       service.NewRecipeService(db, images),
		Favorites:     service.NewFavoriteService(db),
		ShoppingCart:  service.NewShoppingCartService(db),
		ShoppingList:  service.NewShoppingListService(db),
		Subscriptions: service.NewSubscriptionService(db),
	}

	srv := server.NewServer(cfg, db, svc, server.Options{CreateLimiter: limiter})
	if err := srv.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("server error")
	}
	logging.Info().Msg("server stopped")
}

func newImageStore(ctx context.Context, cfg config.StorageConfig) (service.ImageStore, error) {
	if cfg.Driver == "s3" {
		client, err := cfg.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("bucket", cfg.Bucket).Msg("storing recipe images in s3")
		return service.NewS3ImageStore(client, cfg), nil
	}
	logging.Info().Str("dir", cfg.LocalDir).Msg("storing recipe images on local disk")
	return service.NewLocalImageStore(cfg.LocalDir, cfg.BaseURL)
}
