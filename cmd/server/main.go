package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/api"
	"github.com/clingen-curation-server/internal/audit"
	"github.com/clingen-curation-server/internal/config"
	"github.com/clingen-curation-server/internal/database"
	"github.com/clingen-curation-server/internal/domain"
	"github.com/clingen-curation-server/internal/repository"
	"github.com/clingen-curation-server/internal/transfer"
	"github.com/clingen-curation-server/pkg/registry"
)

const migrationsPath = "./migrations"

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := setupLogger(&cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting curation server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		users        domain.UserDirectory
		loader       domain.CurationLoader
		finder       domain.InterpretationFinder
		store        domain.ObjectStore
		healthChecks = map[string]api.HealthChecker{}
	)

	if cfg.Registry.Enabled {
		// Registry mode: all data access goes through the curation data
		// service's REST API.
		client := registry.NewResilientClient(&cfg.Registry, logger)
		directory, err := registry.NewCachingDirectory(client, &cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create user directory cache")
		}
		defer directory.Close()

		users = directory
		loader = client
		finder = client
		store = client
		healthChecks["registry"] = client.Health

		logger.WithField("base_url", cfg.Registry.BaseURL).Info("Using registry data backend")
	} else {
		// Direct mode: the curation database is local.
		runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), migrationsPath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create migration runner")
		}
		if err := runner.Up(); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		_ = runner.Close()

		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		users = repository.NewUserRepository(db.Pool, logger)
		curation := repository.NewCurationRepository(db.Pool, logger)
		loader = curation
		finder = curation
		store = repository.NewObjectRepository(db.Pool, logger)
		healthChecks["database"] = db.Health

		logger.WithField("database", cfg.Database.Database).Info("Using direct database backend")
	}

	auditCfg := cfg.Audit
	if auditCfg.Backend == "postgres" && auditCfg.DatabaseURL == "" {
		auditCfg.DatabaseURL = configManager.GetDatabaseURL()
	}
	auditStore, err := audit.NewStore(&auditCfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create audit store")
	}
	defer auditStore.Close()

	engine := transfer.NewEngine(logger, users, loader, finder, store, &cfg.Transfer)
	server := api.NewServer(configManager, engine, auditStore, healthChecks, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func setupLogger(cfg *domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.Output == "file" && cfg.Filename != "" {
		file, err := os.OpenFile(cfg.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.WithError(err).Warn("Failed to open log file, using stdout")
		} else {
			logger.SetOutput(file)
		}
	}

	return logger
}
