package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/baeksung/approval-engine/internal/application/service"
	"github.com/baeksung/approval-engine/internal/config"
	"github.com/baeksung/approval-engine/internal/infrastructure/persistence/repository"
	"github.com/baeksung/approval-engine/internal/infrastructure/persistence/sqlite"
	httpiface "github.com/baeksung/approval-engine/internal/interfaces/http"
	"github.com/baeksung/approval-engine/internal/interfaces/websocket"
	"github.com/baeksung/approval-engine/pkg/database"
	"github.com/baeksung/approval-engine/pkg/utils"
)

func main() {
	// Local overrides for development; missing .env is fine
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting document approval engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	requestRepo := repository.NewRequestRepository(db.DB, logger)
	lineRepo := repository.NewLineRepository(db.DB, logger)
	historyRepo := repository.NewHistoryRepository(db.DB, logger)
	integrityRepo := repository.NewIntegrityRepository(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	templateRepo := repository.NewTemplateRepository(db.DB, logger)
	txManager := sqlite.NewDB(db.DB, logger)

	kvLogger := utils.NewKVLogger(logger)

	// Live event hub doubles as the notification gateway
	hub := websocket.NewHub(logger)
	defer hub.Close()

	// Application services
	notificationService := service.NewNotificationService(hub, lineRepo, kvLogger)
	integrityService := service.NewIntegrityService(
		integrityRepo, requestRepo, lineRepo, historyRepo, userRepo, txManager, kvLogger)
	docNumbers := service.NewDocumentNumberService(requestRepo, kvLogger)
	approvalService := service.NewApprovalService(
		requestRepo, lineRepo, historyRepo, templateRepo, userRepo,
		txManager, service.NewLineEngine(), docNumbers,
		notificationService, integrityService, kvLogger)

	tokens := httpiface.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	server := httpiface.NewServer(
		httpiface.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		approvalService,
		integrityService,
		userRepo,
		tokens,
		hub,
		kvLogger,
	)

	// Shut down on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
