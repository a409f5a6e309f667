package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"object-sync-service/internal/api"
	"object-sync-service/internal/auth"
	"object-sync-service/internal/config"
	"object-sync-service/internal/database"
	"object-sync-service/internal/logger"
	"object-sync-service/internal/notifier"
	"object-sync-service/internal/scheduler"
	"object-sync-service/internal/session"
	"object-sync-service/internal/store"
)

func main() {
	// Load Config
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Init Logger
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Log.Info("Starting object sync service")

	// Init persisted user store
	userStore, err := newUserStore(cfg.Storage)
	if err != nil {
		logger.Log.Fatal("Failed to init user store", zap.Error(err))
	}
	defer userStore.Close()

	// Auth client, sync client, change fan-out, session registry
	authClient := auth.NewClient(cfg.Auth)
	syncClient := session.NewLoopbackClient()
	defer syncClient.Close()
	changes := notifier.New()

	registry := session.NewRegistry(syncClient, authClient, userStore, changes, nil)
	defer registry.Close()

	if persisted, err := registry.Users(context.Background()); err != nil {
		logger.Log.Warn("Failed to load persisted users", zap.Error(err))
	} else if len(persisted) > 0 {
		logger.Log.Info("Loaded persisted users", zap.Int("count", len(persisted)))
	}

	// Proactive token refresh
	refresher := scheduler.New(cfg.Scheduler, registry, authClient, userStore)
	refresher.Start()
	defer refresher.Stop()

	// Init API
	handler := api.NewHandler(registry, cfg.Server)
	router := handler.Routes()

	// Start Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")
	server.Close()
}

func newUserStore(cfg config.StorageConfig) (store.UserStore, error) {
	switch cfg.Type {
	case "mysql":
		db, err := database.NewDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return store.NewMySQLStore(db)
	case "memory", "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
