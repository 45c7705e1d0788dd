package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/brickrace/race-server/challonge"
	"github.com/brickrace/race-server/config"
	"github.com/brickrace/race-server/db"
	"github.com/brickrace/race-server/handlers"
	"github.com/brickrace/race-server/middleware"
	"github.com/brickrace/race-server/realtime"
	"github.com/brickrace/race-server/repositories"
	"github.com/brickrace/race-server/routes"
	"github.com/brickrace/race-server/services"
	"github.com/brickrace/race-server/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(dbConn, cfg.MigrationsPath); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// Photo storage is optional; without credentials uploads are refused
	// but everything else runs.
	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, photo uploads disabled")
	}

	challongeClient := challonge.NewHTTPClient(cfg.ChallongeBaseURL, cfg.ChallongeUser, cfg.ChallongeAPIKey)

	hub := realtime.NewHub(logger)
	go hub.Run()
	logger.Info("realtime hub started")

	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	competitorRepo := repositories.NewPostgresCompetitorRepository(dbConn)
	qualifierRepo := repositories.NewPostgresQualifierRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	subRoundRepo := repositories.NewPostgresSubRoundRepository(dbConn)
	syncRepo := repositories.NewPostgresSyncRepository(dbConn)
	withdrawalRepo := repositories.NewPostgresWithdrawalRepository(dbConn)
	operatorRepo := repositories.NewPostgresOperatorRepository(dbConn)

	phaseService := services.NewPhaseService(qualifierRepo, bracketRepo)
	authService := services.NewAuthService(operatorRepo, cfg.JWTSecretKey, logger)
	competitorService := services.NewCompetitorService(competitorRepo, uploader, logger)
	heatService := services.NewHeatService(dbConn, qualifierRepo, bracketRepo, competitorRepo, uploader, hub, logger)
	tournamentService := services.NewTournamentService(dbConn, challongeClient, eventRepo, competitorRepo, qualifierRepo, bracketRepo, tournamentRepo, phaseService, logger)
	bracketService := services.NewBracketService(dbConn, challongeClient, tournamentRepo, bracketRepo, subRoundRepo, syncRepo, competitorRepo, hub, logger)
	syncService := services.NewSyncService(dbConn, challongeClient, bracketRepo, tournamentRepo, syncRepo, logger)
	matchService := services.NewMatchService(dbConn, bracketRepo, subRoundRepo, services.Track1Wins, syncService, hub, logger)
	withdrawalService := services.NewWithdrawalService(dbConn, challongeClient, withdrawalRepo, qualifierRepo, bracketRepo, tournamentRepo, competitorRepo, syncService, hub, logger)

	auth := middleware.NewAuth(cfg.JWTSecretKey, cfg.TimingAPIKey)

	router := routes.InitRoutes(routes.Handlers{
		Auth:       handlers.NewAuthHandler(authService),
		Competitor: handlers.NewCompetitorHandler(competitorService),
		Event:      handlers.NewEventHandler(eventRepo, phaseService, tournamentService),
		Heat:       handlers.NewHeatHandler(heatService),
		Timing:     handlers.NewTimingHandler(heatService, matchService),
		Tournament: handlers.NewTournamentHandler(tournamentService),
		Bracket:    handlers.NewBracketHandler(bracketService, matchService),
		Sync:       handlers.NewSyncHandler(syncService),
		Withdrawal: handlers.NewWithdrawalHandler(withdrawalService),
		WebSocket:  handlers.NewWebSocketHandler(hub, logger),
	}, auth)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")

	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
