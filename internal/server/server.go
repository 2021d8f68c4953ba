// Package server assembles the fiber application and its routes.
package server

import (
	"strings"
	"time"

	"pantry-backend/internal/audit"
	"pantry-backend/internal/auth"
	"pantry-backend/internal/catalog"
	"pantry-backend/internal/config"
	"pantry-backend/internal/database"
	"pantry-backend/internal/foodlog"
	"pantry-backend/internal/metrics"
	"pantry-backend/internal/stock"
	"pantry-backend/internal/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	Config  *config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Catalog *catalog.Store
	Ledger  *stock.Ledger
	FoodLog *foodlog.Log
	Targets *foodlog.Targets
}

func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "pantry-backend",
		ErrorHandler: web.ErrorHandler(d.Log),
		BodyLimit:    8 * 1024 * 1024,
	})

	origins := strings.Split(d.Config.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + auth.HeaderAPIKey,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
	}))
	app.Use(requestLogger(d.Log))
	app.Use(metrics.Middleware())

	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")
	api.Get("/health", healthHandler(d.DB))

	authn := auth.New(d.Config)
	api.Post("/auth/token", authn.TokenHandler())

	protected := api.Group("", authn.Middleware())

	protected.Get("/catalog", catalog.ListProductsHandler(d.Catalog))
	protected.Post("/catalog", catalog.UpsertProductHandler(d.Catalog))
	protected.Post("/catalog/import", catalog.ImportProductsHandler(d.Catalog))
	protected.Get("/catalog/:id", catalog.GetProductHandler(d.Catalog))
	protected.Delete("/catalog/:id", catalog.DeleteProductHandler(d.Catalog))

	protected.Get("/stock", stock.ListStockHandler(d.Ledger))
	protected.Post("/stock", stock.AddStockHandler(d.Ledger))
	protected.Post("/stock/consume", stock.ConsumeStockHandler(d.Ledger))
	protected.Post("/stock/remove", stock.RemoveStockHandler(d.Ledger))
	protected.Get("/stock/removals", stock.ListRemovalsHandler(d.Ledger))
	protected.Delete("/stock/:token", stock.DeleteStockHandler(d.Ledger))

	protected.Get("/log", foodlog.GetDayHandler(d.FoodLog))
	protected.Get("/log/stats", foodlog.GetStatsHandler(d.FoodLog))
	protected.Get("/log/trash", foodlog.ListTrashHandler(d.FoodLog))
	protected.Post("/log", foodlog.AppendEntryHandler(d.FoodLog))
	protected.Post("/log/undo", foodlog.UndoHandler(d.FoodLog))
	protected.Delete("/log/:id", foodlog.DeleteEntryHandler(d.FoodLog))

	protected.Get("/targets", foodlog.GetTargetsHandler(d.Targets))
	protected.Patch("/targets", foodlog.PatchTargetsHandler(d.Targets))
	protected.Delete("/targets", foodlog.ResetTargetsHandler(d.Targets))
	protected.Delete("/targets/:macro", foodlog.ResetTargetsHandler(d.Targets))

	protected.Get("/audit-logs", audit.ListAuditLogsHandler(d.DB))

	return app
}

// GET /api/health
func healthHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := database.Ping(c.UserContext(), db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "error"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func requestLogger(log *zap.Logger) fiber.Handler {
	log = log.Named("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", web.StatusOf(c, err)),
			zap.Duration("latency", time.Since(start)),
		)
		return err
	}
}
