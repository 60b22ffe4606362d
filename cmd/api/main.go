package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/bookkeeping-service/internal/config"
	"github.com/Dan9191/bookkeeping-service/internal/handler"
	"github.com/Dan9191/bookkeeping-service/internal/ledger"
	"github.com/Dan9191/bookkeeping-service/internal/notify"
	"github.com/Dan9191/bookkeeping-service/internal/repository"
	"github.com/Dan9191/bookkeeping-service/internal/scheduler"
	"github.com/Dan9191/bookkeeping-service/internal/service"
	"github.com/Dan9191/bookkeeping-service/internal/storage"
)

// ledgerStore is what both storage backends provide
type ledgerStore interface {
	service.Store
	ledger.HistoryLog
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStore()

	// Initialize layers
	engine := ledger.NewEngine(store, store, logger, ledger.WithSigningSecret(cfg.HMACSecret))
	var notifier service.Notifier
	if cfg.MailEnabled() {
		notifier = notify.NewSender(cfg, logger)
	}
	svc := service.NewService(store, engine, notifier, logger, cfg)
	h := handler.NewHandler(svc, logger)

	backups, err := scheduler.NewScheduler(cfg.BackupSchedule, cfg.BackupDir, svc, logger)
	if err != nil {
		logger.Fatalf("Failed to set up backups: %v", err)
	}
	backups.Start()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s (storage: %s)", addr, cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	backups.Stop(ctx)
}

func openStore(cfg *config.Config, logger *logrus.Logger) (ledgerStore, func(), error) {
	if cfg.StorageDriver == config.DriverFile {
		store, err := storage.Open(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	repo := repository.NewRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}
