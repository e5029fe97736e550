package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/norvik-as/fieldops-api/internal/cache"
	"github.com/norvik-as/fieldops-api/internal/config"
	"github.com/norvik-as/fieldops-api/internal/database"
	"github.com/norvik-as/fieldops-api/internal/engine"
	"github.com/norvik-as/fieldops-api/internal/http/handler"
	"github.com/norvik-as/fieldops-api/internal/http/router"
	"github.com/norvik-as/fieldops-api/internal/jobs"
	"github.com/norvik-as/fieldops-api/internal/logger"
	"github.com/norvik-as/fieldops-api/internal/mutationlog"
	"github.com/norvik-as/fieldops-api/internal/notify"
	"github.com/norvik-as/fieldops-api/internal/remote"
	"github.com/norvik-as/fieldops-api/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging, &cfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
	)

	// Connect to the central row store. The connection is optional: without
	// one every mutation queues durably and the process serves the local
	// dataset.
	var db *gorm.DB
	var store remote.Store
	if cfg.Database.Enabled {
		db, err = database.NewDatabase(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store = repository.NewWorkOrderRepository(db, log)
		log.Info("Central store connected",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name),
		)
	} else {
		log.Info("Central store not configured, running local-only")
	}

	// Open the durable mutation queue
	mlog, err := mutationlog.Open(cfg.LocalStore.Path)
	if err != nil {
		return fmt.Errorf("failed to open local mutation queue: %w", err)
	}
	log.Info("Local mutation queue opened", zap.String("path", cfg.LocalStore.Path))

	// Build the sync engine
	workOrderCache := cache.NewCache()
	notifier := notify.NewEmitter(cfg.Sync.NotificationCap, log)
	eng := engine.New(cfg.App.OrganizationID, store, mlog, workOrderCache, notifier, log, &engine.Options{
		StartOffline: cfg.Sync.StartOffline,
	})
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync engine: %w", err)
	}
	defer eng.Close()

	// Initialize handlers
	workOrderHandler := handler.NewWorkOrderHandler(eng, log)
	notificationHandler := handler.NewNotificationHandler(notifier, log)
	syncHandler := handler.NewSyncHandler(eng, log)

	// Setup router
	rt := router.NewRouter(cfg, log, db, workOrderHandler, notificationHandler, syncHandler)

	// Start the background drain so queued mutations are replayed once
	// connectivity is back, even with no user activity
	var scheduler *jobs.Scheduler
	if store != nil {
		scheduler = jobs.NewScheduler(log)
		if err := jobs.RegisterDrainJob(scheduler, eng, log, cfg.Sync.DrainCron, jobs.DefaultDrainTimeout); err != nil {
			log.Error("Failed to register drain job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with queue drain job",
				zap.String("cron_expr", cfg.Sync.DrainCron))
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
