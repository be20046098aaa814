package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/wanfrev/machinehub-agent/internal/access"
	"github.com/wanfrev/machinehub-agent/internal/backend"
	"github.com/wanfrev/machinehub-agent/internal/config"
	"github.com/wanfrev/machinehub-agent/internal/handler"
	"github.com/wanfrev/machinehub-agent/internal/middleware"
	"github.com/wanfrev/machinehub-agent/internal/realtime"
	"github.com/wanfrev/machinehub-agent/internal/repository"
	"github.com/wanfrev/machinehub-agent/internal/service"
	"github.com/wanfrev/machinehub-agent/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := config.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	repos := repository.NewRepositories(db, redis)
	if err := repos.Sales.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare sales archive: %v", err)
	}

	backendClient := backend.New(cfg.BackendURL, cfg.BackendToken)
	hub := realtime.NewHub()
	socket := realtime.NewSocket(cfg.BackendWSURL, cfg.BackendToken)

	services := service.NewServices(cfg, repos, backendClient, hub, socket)
	pushWorker := worker.New(backendClient, hub, hub, services.Foreground)
	handlers := handler.NewHandlers(services, pushWorker, hub, cfg)

	go hub.Run(ctx)

	// Prime caches before the event loop starts; the agent still serves with
	// a cold cache when the backend is down.
	if err := services.Machines.Refresh(ctx); err != nil {
		log.Printf("Warning: machine directory unavailable at startup: %v", err)
	}
	if err := services.CoinValues.Load(ctx); err != nil {
		log.Printf("Warning: coin values unavailable at startup: %v", err)
	}
	services.Notifications.Init(ctx)

	if err := services.Push.EnsureSubscribed(ctx); err != nil {
		log.Printf("Warning: push registration failed: %v", err)
	}

	services.Dashboard.Start(ctx)
	defer services.Dashboard.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	setupRoutes(app, handlers, services)

	log.Printf("Agent starting on port %s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupRoutes(app *fiber.App, h *handler.Handlers, services *service.Services) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Backend-facing webhook; authenticated by shared token, not staff JWT.
	app.Post("/api/push/events", h.Push.Events)

	app.Get("/ws", h.WS.Upgrade(), h.WS.Serve())

	api := app.Group("/api", middleware.AuthRequired(services.Auth))

	notifications := api.Group("/notifications")
	notifications.Get("/", h.Notification.List)
	notifications.Get("/unread-count", h.Notification.UnreadCount)
	notifications.Post("/mark-seen", h.Notification.MarkSeen)
	notifications.Get("/preferences", h.Notification.GetPreferences)
	notifications.Put("/preferences", h.Notification.UpdatePreferences)
	notifications.Post("/viewing", h.Notification.SetViewing)

	machines := api.Group("/machines")
	machines.Get("/", h.Machine.List)
	machines.Get("/:id", middleware.RequireMachineAccess("id"), h.Machine.Get)
	machines.Get("/:id/usage", middleware.RequireMachineAccess("id"), h.Machine.Usage)

	api.Get("/dashboard", h.Dashboard.Summary)
	api.Get("/me", h.Dashboard.Me)

	coinValues := api.Group("/coin-values")
	coinValues.Get("/", h.CoinValue.List)
	coinValues.Put("/:type",
		middleware.RequireCapability(func(caps access.Capabilities) bool { return caps.CanEditCoinValues }),
		h.CoinValue.Set)

	sales := api.Group("/sales")
	sales.Get("/daily",
		middleware.RequireCapability(func(caps access.Capabilities) bool { return caps.CanViewReports }),
		h.Sales.Daily)
}
