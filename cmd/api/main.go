package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go-resale-dashboard/internal/config"
	"go-resale-dashboard/internal/handler"
	"go-resale-dashboard/internal/middleware"
	"go-resale-dashboard/internal/report"
	"go-resale-dashboard/internal/repository"
	"go-resale-dashboard/internal/service"
	"go-resale-dashboard/internal/worker"
	"go-resale-dashboard/internal/ws"
	"go-resale-dashboard/pkg/database"
	"go-resale-dashboard/pkg/jwt"
	"go-resale-dashboard/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const reconcileQueueSize = 1024

func main() {
	// 1. Load Env
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Setup(cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Setup storage
	var (
		store    repository.EntityStore
		userRepo repository.UserRepository
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store = repository.NewMemoryStore()
		userRepo = repository.NewMemoryUserRepo()
		log.Warn().Msg("using in-memory store, data is lost on restart")
	default:
		db, err := database.ConnectDB(cfg.DatabaseURL, !cfg.IsProduction())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		gormStore := repository.NewGormStore(db)
		if err := gormStore.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate documents")
		}
		if err := repository.MigrateUsers(db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate users")
		}
		store = gormStore
		userRepo = repository.NewUserRepo(db)
	}

	// 3. Setup WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run(ctx)

	// 4. Reconciliation queue
	reconciler := service.NewReconciler(store)
	var queue service.ReconcileQueue
	if cfg.RedisURL != "" {
		rdb, err := worker.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		redisQueue := worker.NewRedisQueue(rdb, reconciler.Handle)
		redisQueue.Start(ctx, cfg.ReconcileWorkers)
		defer redisQueue.Wait()
		queue = redisQueue
	} else {
		localQueue := worker.NewLocalQueue(reconcileQueueSize, reconciler.Handle)
		localQueue.Start(ctx, cfg.ReconcileWorkers)
		defer localQueue.Wait()
		queue = localQueue
	}

	// 5. Dependency Injection (Wiring Layers)
	tokens := jwt.NewManager(cfg.JWTSecret, cfg.JWTExpiration())
	authService := service.NewAuthService(userRepo, tokens)
	invService := service.NewInventoryService(store, queue, wsHub)
	ownerService := service.NewOwnerService(store, wsHub)

	if err := authService.SeedAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Error().Err(err).Msg("failed to seed operator account")
	}
	if n, err := ownerService.SeedDefaults(ctx, cfg.DefaultOwners); err != nil {
		log.Error().Err(err).Msg("failed to seed owners")
	} else if n > 0 {
		log.Info().Int("owners", n).Msg("owner roster seeded")
	}

	feed := service.NewFeed(store)
	feed.OnChange(wsHub.RelaySnapshot)
	if err := feed.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to store")
	}
	dashService := service.NewDashboardService(feed, report.Calendar{Location: cfg.ReportLocation}, nil)

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "Resale Dashboard v1.0",
	})

	app.Use(fiberlogger.New()) // Logging request
	app.Use(recover.New())     // Panic recovery
	app.Use(cors.New())        // CORS

	// 7. Routes
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handler.SetupRoutes(app, handler.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Products:  handler.NewProductHandler(invService),
		Owners:    handler.NewOwnerHandler(ownerService),
		Dashboard: handler.NewDashboardHandler(dashService),
		Health:    handler.NewHealthHandler(cfg.StoreDriver, wsHub),
	}, middleware.RequireAuth(authService))

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		if !wsHub.Join(c) {
			return
		}
		defer wsHub.Leave(c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 8. Graceful Shutdown
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("resale dashboard listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()
	log.Info().Msg("server exited")
}
