package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/aydetodd/todocerca-tracking/config"
	"github.com/aydetodd/todocerca-tracking/internal/api"
	"github.com/aydetodd/todocerca-tracking/internal/bus"
	"github.com/aydetodd/todocerca-tracking/internal/db"
	"github.com/aydetodd/todocerca-tracking/internal/fanout"
	"github.com/aydetodd/todocerca-tracking/internal/geofence"
	"github.com/aydetodd/todocerca-tracking/internal/notification"
	"github.com/aydetodd/todocerca-tracking/internal/position"
	"github.com/aydetodd/todocerca-tracking/internal/presence"
	"github.com/aydetodd/todocerca-tracking/internal/sink"
	"github.com/aydetodd/todocerca-tracking/internal/store"
	"github.com/aydetodd/todocerca-tracking/internal/tracking"
)

func main() {
	logger := log.New(os.Stdout, "trackerd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	changeBus := bus.New()

	presenceStore := presence.New(appStore, changeBus)
	go presenceStore.Run(ctx)

	// Alert push notifications are optional; without VAPID keys the alerts
	// are still written, only the browser pushes are skipped.
	var webpushOptions *webpush.Options
	var pool *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		pool.Start(ctx)
	} else {
		logger.Println("VAPID keys not configured; alert push delivery disabled")
	}

	var dispatcher geofence.Dispatcher
	if pool != nil {
		dispatcher = pool
	}
	detector := geofence.NewDetector(appStore, changeBus, dispatcher)
	go detector.Run(ctx)

	locationSink := sink.New(appStore, changeBus, cfg.Sink.MinWriteInterval)

	if cfg.Tracking.Enabled {
		if cfg.Tracking.SubjectID == "" {
			logger.Fatalf("tracking.subject_id must be set when tracking is enabled")
		}
		source := position.Detect(&cfg.Source)
		controller := tracking.New(cfg.Tracking, source, locationSink, presenceStore, func(err error) {
			logger.Printf("location access is blocked: %v; grant location permission and restart tracking", err)
		})
		go controller.Run(ctx)
		logger.Printf("tracking agent enabled for subject %s", cfg.Tracking.SubjectID)
	}

	hub := fanout.NewHub(appStore, changeBus, cfg.Fanout)
	go hub.Run(ctx)

	handler := api.NewHandler(appStore, presenceStore, locationSink, hub, webpushOptions)
	router := api.NewRouter(handler, &cfg.Server)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
