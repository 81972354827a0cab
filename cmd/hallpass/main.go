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

	"github.com/example/hallpass/internal/application"
	"github.com/example/hallpass/internal/config"
	httptransport "github.com/example/hallpass/internal/http"
	"github.com/example/hallpass/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(sqlite.DefaultConfig(cfg.SQLiteDSN))
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := sqlite.Migrate(context.Background(), pool); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := uuid.NewString
	now := time.Now

	userRepo := sqlite.NewUserRepository(pool)
	destinationRepo := sqlite.NewDestinationRepository(pool)
	periodRepo := sqlite.NewPeriodRepository(pool)
	kioskRepo := sqlite.NewKioskRepository(pool)
	passRepo := sqlite.NewPassRepository(pool)
	settingRepo := sqlite.NewSettingRepository(pool)
	auditRepo := sqlite.NewAuditRepository(pool)
	sessionRepo := sqlite.NewSessionRepository(pool)

	settingsService := application.NewSettingsService(settingRepo, auditRepo, idGenerator, logger)
	resolver := application.NewTeacherResolver(periodRepo, kioskRepo, userRepo)
	reconciler := application.NewExpiryReconciler(passRepo, idGenerator, now, logger)
	passService := application.NewPassService(passRepo, destinationRepo, periodRepo, resolver, settingsService, reconciler, idGenerator, now, logger)
	authService := application.NewAuthService(userRepo, sessionRepo, idGenerator, tokenGenerator, now, cfg.SessionTTL, logger)
	userService := application.NewUserService(userRepo, auditRepo, idGenerator, now, logger)
	catalogService := application.NewCatalogService(destinationRepo, auditRepo, idGenerator, logger)
	scheduleService := application.NewScheduleService(periodRepo, userRepo, auditRepo, idGenerator, logger)
	kioskService := application.NewKioskService(kioskRepo, periodRepo, userRepo, auditRepo, idGenerator, tokenGenerator, logger)
	auditService := application.NewAuditService(auditRepo)

	if cfg.SeedDemoData {
		if err := seedDemoData(context.Background(), userRepo, destinationRepo, periodRepo, idGenerator, logger); err != nil {
			logger.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Passes:       httptransport.NewPassHandler(passService, logger),
		Board:        httptransport.NewBoardHandler(passService, kioskRepo, logger),
		Users:        httptransport.NewUserHandler(userService, logger),
		Destinations: httptransport.NewDestinationHandler(catalogService, logger),
		Periods:      httptransport.NewPeriodHandler(scheduleService, logger),
		Kiosks:       httptransport.NewKioskHandler(kioskService, logger),
		Settings:     httptransport.NewSettingsHandler(settingsService, logger),
		Audit:        httptransport.NewAuditHandler(auditService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.RequireSession(authService, logger),
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

	logger.Info("hall-pass API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}
