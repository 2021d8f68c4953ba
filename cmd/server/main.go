package main

import (
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pantry-backend/internal/catalog"
	"pantry-backend/internal/config"
	"pantry-backend/internal/database"
	"pantry-backend/internal/foodlog"
	"pantry-backend/internal/logger"
	"pantry-backend/internal/lookup"
	"pantry-backend/internal/lookup/openfoodfacts"
	"pantry-backend/internal/server"
	"pantry-backend/internal/stock"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.UsesDefaultDSN() {
		zlog.Warn("DATABASE_DSN not set, using the local default")
	}

	db, err := database.Open(cfg.Database, zlog)
	if err != nil {
		zlog.Fatal("could not connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		zlog.Fatal("could not migrate database", zap.Error(err))
	}
	zlog.Info("database ready", zap.String("driver", cfg.Database.Driver))

	var lk lookup.Lookup = lookup.Noop{}
	if cfg.Lookup.Enabled {
		lk = openfoodfacts.New(cfg.Lookup.BaseURL, cfg.Lookup.Timeout)
		zlog.Info("product lookup enabled", zap.String("base_url", cfg.Lookup.BaseURL))
	}

	cat := catalog.NewStore(db, lk, zlog)
	targets := foodlog.NewTargets(db)
	app := server.New(server.Deps{
		Config:  cfg,
		Log:     zlog,
		DB:      db,
		Catalog: cat,
		Ledger:  stock.NewLedger(db, cat, zlog),
		FoodLog: foodlog.NewLog(db, targets, zlog),
		Targets: targets,
	})

	go func() {
		addr := ":" + cfg.HTTPPort
		zlog.Info("listening", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			zlog.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zlog.Info("shutting down", zap.String("signal", sig.String()))

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		zlog.Error("could not close database", zap.Error(err))
	}
}
