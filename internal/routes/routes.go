package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/carboncred/carboncred/internal/auth"
	"github.com/carboncred/carboncred/internal/config"
	"github.com/carboncred/carboncred/internal/ledger"
	"github.com/carboncred/carboncred/internal/marketplace"
	"github.com/carboncred/carboncred/internal/middleware"
	"github.com/carboncred/carboncred/internal/notification"
	"github.com/carboncred/carboncred/internal/operator"
	"github.com/carboncred/carboncred/internal/registry"
	"github.com/carboncred/carboncred/internal/settlement"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Backends: Postgres when configured, in-memory otherwise (dev mode).
	ctx := context.Background()

	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB, d.Cfg.AdminAccount)
	} else {
		ledgerBackend = ledger.NewInMemory(d.Cfg.AdminAccount)
	}
	if err := ledgerBackend.EnsureAccount(ctx, ledger.SupplyAccountCode); err != nil {
		return err
	}

	var companyRepo registry.Repository
	if d.DB != nil {
		companyRepo = registry.NewPostgresRepository(d.DB)
	} else {
		companyRepo = registry.NewMemoryRepository()
	}
	var listingRepo marketplace.Repository
	if d.DB != nil {
		listingRepo = marketplace.NewPostgresRepository(d.DB)
	} else {
		listingRepo = marketplace.NewMemoryRepository()
	}
	var operatorRepo operator.Repository
	if d.DB != nil {
		operatorRepo = operator.NewPostgresRepository(d.DB)
	} else {
		operatorRepo = operator.NewMemoryRepository()
	}

	notifier := notification.NewLoggerNotifier(d.Logger)

	registrySvc := registry.NewService(companyRepo, ledgerBackend, d.Cfg.AdminAccount)
	settlementSvc := settlement.NewService(ledgerBackend, companyRepo, notifier)
	marketplaceSvc, err := marketplace.NewService(ctx, ledgerBackend, listingRepo, d.Cfg.EscrowAccount, notifier)
	if err != nil {
		return err
	}
	operatorSvc := operator.NewService(operatorRepo)
	authSvc := auth.NewService(d.Cfg, operatorRepo)

	registryHandler := registry.NewHandler(registrySvc)
	settlementHandler := settlement.NewHandler(settlementSvc)
	marketplaceHandler := marketplace.NewHandler(marketplaceSvc, registrySvc)
	authHandler := auth.NewHandler(operatorSvc, authSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)
	RegisterLeaderboardRoute(api, registrySvc)
	api.Get("/companies", registryHandler.List)
	api.Get("/companies/:name", registryHandler.Get)
	api.Get("/listings", marketplaceHandler.List)

	// Protected routes
	jwtmw := middleware.JWTAuth(d.Cfg, operatorRepo)
	protected := api.Group("", jwtmw)
	RegisterRegistryRoutes(protected, registryHandler)
	RegisterSettlementRoutes(protected, settlementHandler)
	RegisterMarketplaceRoutes(protected, marketplaceHandler)
	protected.Post("/auth/logout", authHandler.Logout)

	return nil
}
