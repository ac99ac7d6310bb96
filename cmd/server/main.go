package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/api"
	"github.com/coltonswapp/nest-note-sub009/internal/app"
	"github.com/coltonswapp/nest-note-sub009/internal/app/maintenance"
	"github.com/coltonswapp/nest-note-sub009/internal/database"
	"github.com/coltonswapp/nest-note-sub009/internal/push"
	"github.com/coltonswapp/nest-note-sub009/internal/services"
	"github.com/coltonswapp/nest-note-sub009/internal/store"
	"github.com/coltonswapp/nest-note-sub009/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("nestnote-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Log.Level); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")
	gin.SetMode(cfg.Server.Mode)

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	users, err := store.NewUserGateway(db)
	if err != nil {
		return err
	}
	sessions, err := store.NewSessionGateway(db)
	if err != nil {
		return err
	}

	sender, err := initialiseSender(ctx, cfg, log)
	if err != nil {
		return err
	}

	dispatcher, err := services.NewDispatchService(users, sender,
		services.WithSendConcurrency(cfg.Sweeps.SendConcurrency),
		services.WithTokenExpiryMonths(cfg.Sweeps.TokenExpiryMonths),
	)
	if err != nil {
		return fmt.Errorf("initialise dispatcher: %w", err)
	}

	sweepSvc, err := services.NewSweepService(sessions, dispatcher)
	if err != nil {
		return fmt.Errorf("initialise sweep service: %w", err)
	}

	archivalSvc, err := services.NewArchivalService(sessions,
		services.WithRetention(cfg.Sweeps.Retention),
		services.WithArchiveChunkSize(cfg.Sweeps.ArchiveChunkSize),
	)
	if err != nil {
		return fmt.Errorf("initialise archival service: %w", err)
	}

	scheduler := maintenance.NewScheduler(sweepSvc, archivalSvc,
		maintenance.WithTransitionSchedule(cfg.Sweeps.TransitionSchedule),
		maintenance.WithArchivalSchedule(cfg.Sweeps.ArchivalSchedule),
	)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer scheduler.Stop()

	if cfg.Sweeps.RunOnStart {
		if err := scheduler.RunOnce(ctx); err != nil {
			log.Warn("startup sweep failed", zap.Error(err))
		}
	}

	router, err := api.NewRouter(api.Deps{
		DB:       db,
		Users:    users,
		Sweeps:   sweepSvc,
		Archival: archivalSvc,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(cfg.Database.Driver))))

	return db, nil
}

func initialiseSender(ctx context.Context, cfg *app.Config, log *zap.Logger) (push.Sender, error) {
	if !cfg.Push.Enabled {
		log.Info("push delivery disabled; notifications will be logged only")
		return push.NewLoggingSender(), nil
	}

	sender, err := push.NewFCMSender(ctx, push.FCMConfig{
		ProjectID:       cfg.Push.ProjectID,
		CredentialsFile: cfg.Push.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise fcm sender: %w", err)
	}

	log.Info("push delivery enabled", zap.String("project_id", cfg.Push.ProjectID))
	return sender, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("acquire database handle for close", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}
