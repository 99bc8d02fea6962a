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

	"github.com/google/uuid"

	"github.com/example/smarthome-admin/internal/application"
	"github.com/example/smarthome-admin/internal/config"
	"github.com/example/smarthome-admin/internal/docstore/sqlite"
	httptransport "github.com/example/smarthome-admin/internal/http"
	"github.com/example/smarthome-admin/internal/logging"
	"github.com/example/smarthome-admin/internal/persistence"
)

func main() {
	logger := logging.NewLogger(os.Stdout, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	now := time.Now
	store, err := sqlite.Open(cfg.SQLiteDSN, now)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close document store", "error", cerr)
		}
	}()

	idGenerator := uuid.NewString

	postureRepo := persistence.NewDocumentPostureRepository(store)
	eventRepo := persistence.NewDocumentEventRepository(store)
	activityLog := persistence.NewDocumentActivityLogRepository(store)
	notifications := persistence.NewDocumentNotificationRepository(store)

	securityService := application.NewSecurityServiceWithLogger(postureRepo, activityLog, idGenerator, now, logger)
	securityService.SetPostureCacheTTL(cfg.PostureCacheTTL)

	simulationService := application.NewSimulationService(eventRepo, notifications, activityLog, idGenerator, now, application.SimulationServiceConfig{
		SettleDuration:     cfg.SettleDuration,
		MaxAffectedDevices: cfg.MaxAffectedDevices,
		Logger:             logger,
	})
	defer simulationService.Close()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Security:    httptransport.NewSecurityHandler(securityService, now, logger),
		Simulations: httptransport.NewSimulationHandler(simulationService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireAdminScope(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("smart-home admin API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
