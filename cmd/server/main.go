package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/solosuccess/competitor-intel/internal/alerts"
	"github.com/solosuccess/competitor-intel/internal/api"
	"github.com/solosuccess/competitor-intel/internal/briefing"
	"github.com/solosuccess/competitor-intel/internal/config"
	"github.com/solosuccess/competitor-intel/internal/metrics"
	"github.com/solosuccess/competitor-intel/internal/notifications"
	"github.com/solosuccess/competitor-intel/internal/repository"
	"github.com/solosuccess/competitor-intel/internal/scheduler"
	"github.com/solosuccess/competitor-intel/internal/scraper"
	"github.com/solosuccess/competitor-intel/internal/storage"
	"github.com/solosuccess/competitor-intel/internal/tracker"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting competitor intelligence service")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	db, err := repository.Connect(startCtx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := repository.Migrate(startCtx, db); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	competitors := repository.NewPostgresCompetitorRepository(db)
	activities := repository.NewPostgresActivityRepository(db)
	users := repository.NewPostgresUserRepository(db)

	alertStore, closeAlerts := newAlertStore(startCtx, cfg)
	defer closeAlerts()

	archive := newArchive(startCtx, cfg)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	webScraper := scraper.NewWebScraper(scraper.Options{
		UserAgent: cfg.ScrapeUserAgent,
		Timeout:   cfg.ScrapeTimeout,
		MinDelay:  cfg.ScrapeMinDelay,
	})

	notificationService := notifications.NewService(cfg)
	alertService := alerts.NewService(activities, competitors, users, notificationService, alertStore, m, cfg.Location())
	trackerService := tracker.NewService(cfg, competitors, activities, users, webScraper, alertService, m)
	briefingService := briefing.NewService(cfg, competitors, activities, users, notificationService, archive, m)

	schedulerService := scheduler.NewService(cfg, trackerService, briefingService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := api.NewServer(cfg, competitors, activities, users, trackerService, alertService, briefingService, m).Router()

	// Cron-triggered tracking runs synchronously, so writes get a long deadline
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newAlertStore uses Redis when configured and falls back to process memory
func newAlertStore(ctx context.Context, cfg *config.Config) (alerts.AlertStore, func()) {
	if cfg.RedisAddr == "" {
		logrus.Warn("REDIS_ADDR not set, in-app alerts are kept in memory")
		return alerts.NewMemoryAlertStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	return alerts.NewRedisAlertStore(client), func() { client.Close() }
}

// newArchive uses Azure Blob Storage when an account is configured
func newArchive(ctx context.Context, cfg *config.Config) storage.StorageInterface {
	if cfg.StorageAccount == "" {
		logrus.Warn("AZURE_STORAGE_ACCOUNT not set, briefing archive is kept in memory")
		return storage.NewMemoryStorage()
	}

	archive, err := storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	return archive
}

