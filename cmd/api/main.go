package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skillreel.org/internal/auth"
	"skillreel.org/internal/blob"
	"skillreel.org/internal/config"
	"skillreel.org/internal/httpapi"
	"skillreel.org/internal/obs"
	"skillreel.org/internal/points"
	pgstore "skillreel.org/internal/store/pg"
	"skillreel.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var (
		svc   points.Service
		roles auth.Registry
		db    *sql.DB
	)
	if cfg.PGDSN != "" {
		store, err := pgstore.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		db = store.DB()
		svc = store
		roles = pgstore.NewRoleRegistry(db, cfg.Admins)
	} else {
		log.Printf("no SKILLREEL_PG_DSN set, using in-memory store")
		svc = points.NewInMemory()
		roles = auth.NewInMemoryRegistry(cfg.Admins)
	}

	var blobs *blob.Client
	if cfg.BlobGatewayURL != "" {
		blobs = blob.NewClient(cfg.BlobGatewayURL)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, roles, stream.New(), blobs)
	api.SetLimits(cfg.RateBurst, cfg.RatePerSec, cfg.MaxBodyBytes)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting skillreel-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
