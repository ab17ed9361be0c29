// Package main is the entry point for the tour availability sync server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tour-availability/backend/internal/api"
	"github.com/tour-availability/backend/internal/api/handlers"
	"github.com/tour-availability/backend/internal/calendar"
	"github.com/tour-availability/backend/internal/channel"
	"github.com/tour-availability/backend/internal/config"
	"github.com/tour-availability/backend/internal/partner"
	"github.com/tour-availability/backend/internal/storage"
	"github.com/tour-availability/backend/internal/sync"
	"github.com/tour-availability/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	addr := flag.String("addr", ":8080", "HTTP server address")
	dataDir := flag.String("data", "/data", "Data directory for SQLite database")
	staticDir := flag.String("static", "./static", "Directory for static frontend files")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(*addr); err != nil {
			slog.Error("health check failed", "error", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	cfg := config.Load()

	slog.Info("starting tour availability sync server", "version", version, "addr", *addr)

	// Initialize database
	db, err := storage.NewDB(*dataDir + "/tour-availability.db")
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub)

	// Initialize repositories
	sourceRepo := storage.NewSourceRepository(db)
	bookingRepo := storage.NewBookingRepository(db)

	// Initialize domain services
	parser := calendar.NewParser(cfg.FetchTimeout, cfg.DefaultSlotDuration)
	feedWriter := calendar.NewFeedWriter(cfg.DefaultSlotDuration)
	registry := channel.DefaultRegistry()

	partnerClient := partner.NewClient(partner.Config{
		Username: cfg.PartnerUsername,
		Password: cfg.PartnerPassword,
		Sandbox:  cfg.PartnerSandbox,
	})
	occupancyPusher := partner.NewOccupancyPusher(partnerClient, cfg.PartnerProductID, logger)

	// A nil *OccupancyPusher must stay a nil interface so the sync
	// service skips the push entirely.
	var pusher sync.AvailabilityPusher
	if occupancyPusher != nil {
		pusher = occupancyPusher
	}

	syncService := sync.NewService(
		sourceRepo,
		bookingRepo,
		parser,
		broadcaster,
		pusher,
		cfg.FetchTimeout,
		cfg.DefaultSlotDuration,
		logger,
	)

	scheduler := sync.NewScheduler(syncService, int(cfg.SyncInterval.Minutes()), logger)
	if err := scheduler.Start(); err != nil {
		slog.Warn("failed to start sync scheduler", "error", err)
	}

	router := api.NewRouter(api.Deps{
		DB:          db,
		Hub:         hub,
		Broadcaster: broadcaster,
		Sources:     sourceRepo,
		Bookings:    bookingRepo,
		SyncService: syncService,
		FeedWriter:  feedWriter,
		Channels:    registry,
		WebhookCreds: handlers.WebhookCredentials{
			Username: cfg.WebhookUsername,
			Password: cfg.WebhookPassword,
		},
		PartnerClient: partnerClient,
		PartnerPusher: occupancyPusher,
		StaticDir:     *staticDir,
	})

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", *addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
