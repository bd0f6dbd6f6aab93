package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"checador-bot/internal/api"
	"checador-bot/internal/config"
	"checador-bot/internal/connection"
	"checador-bot/internal/database"
	"checador-bot/internal/handlers"
	"checador-bot/internal/identity"
	"checador-bot/internal/services"
	"checador-bot/internal/session"
	"checador-bot/internal/transport"
	"checador-bot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	loggerConfig := &logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	}
	zapLogger, err := logger.New(loggerConfig, logger.DefaultServiceName)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()
	zap.ReplaceGlobals(zapLogger)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		zap.L().Fatal("Invalid TIMEZONE", zap.Error(err))
	}

	store, closeStore, err := openStore(cfg, zapLogger)
	if err != nil {
		zap.L().Fatal("Failed to open storage", zap.Error(err))
	}
	defer closeStore()

	resolver := identity.NewResolver(filepath.Join(cfg.DataDir, "lid_map.json"), zapLogger)
	if err := resolver.Load(); err != nil {
		zap.L().Warn("Identity map load failed, starting empty", zap.Error(err))
	}

	wa := transport.NewWhatsApp(cfg.WADBPath, zapLogger)
	attendance := services.NewAttendanceService(store, loc, zapLogger)
	sessions := session.NewStore()
	router := handlers.NewRouter(store, resolver, sessions, attendance, wa, loc, zapLogger)
	manager := connection.NewManager(wa, router, zapLogger)

	server := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      api.New(manager, zapLogger).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("Control API listening", zap.String("addr", cfg.APIAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := manager.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := manager.Connect(ctx); err != nil {
		// The scheduler keeps retrying; the process stays up either way.
		zap.L().Warn("Initial connect failed", zap.Error(err))
	}

	zap.L().Info("Bot started successfully")

	if err := g.Wait(); err != nil {
		zap.L().Fatal("Bot stopped", zap.Error(err))
	}
	zap.L().Info("Bot stopped gracefully")
}

func openStore(cfg *config.Config, log *zap.Logger) (database.Store, func(), error) {
	if cfg.Storage == config.StoragePostgres {
		db, err := database.New(database.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}

	fs, err := database.NewFileStore(cfg.DataDir, log)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
