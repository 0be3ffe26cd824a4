package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adpulse/adpulse/internal/api"
	"github.com/adpulse/adpulse/internal/behavior"
	"github.com/adpulse/adpulse/internal/buildinfo"
	"github.com/adpulse/adpulse/internal/config"
	"github.com/adpulse/adpulse/internal/geolocate"
	"github.com/adpulse/adpulse/internal/retention"
	"github.com/adpulse/adpulse/internal/store"
	"github.com/adpulse/adpulse/internal/tracker"
)

func main() {
	// 1. Load and validate environment config
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	// 2. Open the store and run migrations
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create state dir: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(filepath.Join(cfg.StateDir, "adpulse.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	// 3. Wire the tracking pipeline
	geo := geolocate.NewClient(geolocate.Config{
		APIKey:        cfg.GeolocationAPIKey,
		Endpoint:      cfg.GeolocationEndpoint,
		Timeout:       cfg.GeolocationTimeout,
		CacheCapacity: cfg.GeolocationCacheCapacity,
	})
	trk := tracker.New(st, geo, behavior.NewUpdater(st))

	// 4. Start the retention sweeper
	sweeper := retention.NewService(retention.ServiceConfig{
		Store:    st,
		Schedule: cfg.RetentionSchedule,
		MaxAge:   cfg.RetentionMaxAge,
	})
	sweeper.Start()
	defer sweeper.Stop()

	// 5. Create and start the API server
	srv := api.NewServer(api.ServerConfig{
		ListenAddress:   cfg.ListenAddress,
		Port:            cfg.Port,
		AdminToken:      cfg.AdminToken,
		APIMaxBodyBytes: int64(cfg.APIMaxBodyBytes),
	}, trk)

	go func() {
		log.Printf("AdPulse %s (%s) listening on %s:%d", buildinfo.Version, buildinfo.GitCommit, cfg.ListenAddress, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server error: %v", err)
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %s, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
