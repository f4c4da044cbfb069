// duunikanban discovery-service
//
// Periodically fetches postings from the configured sources (TheirStack FI,
// TheirStack EMEA, itewiki.fi), filters them for eligibility and reconciles
// the survivors into the job store. Publishes EVENT_JOBS_INGESTED to Redis
// when REDIS_URL is set.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/H3199/duunikanban/internal/config"
	"github.com/H3199/duunikanban/internal/db"
	"github.com/H3199/duunikanban/internal/ingest"
	"github.com/H3199/duunikanban/internal/metrics"
	"github.com/H3199/duunikanban/internal/scheduler"
	"github.com/H3199/duunikanban/internal/scraper"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[discovery-service] Config error: %v", err)
	}
	config.NewLogger(cfg, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := db.OpenStore(ctx, cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		log.Fatalf("[discovery-service] Store: %v", err)
	}
	defer st.Close()
	log.Println("[discovery-service] Store ready ✓")

	pub, closePub, err := db.OpenPublisher(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[discovery-service] Redis: %v", err)
	}
	defer closePub() //nolint:errcheck
	if cfg.RedisURL != "" {
		log.Println("[discovery-service] Redis connected ✓")
	}

	m := metrics.New()
	sources, err := scraper.SourcesFromConfig(cfg, scraper.NewTheirStackFetcher(cfg.TheirStackAPIKey, ""))
	if err != nil {
		// Missing API key only drops the TheirStack sources.
		log.Printf("[discovery-service] %v", err)
	}

	reconciler := ingest.NewReconciler(st, ingest.WithWorkers(cfg.IngestWorkers), ingest.WithMetrics(m))
	worker := scraper.NewWorker(reconciler, pub, m)
	sched := scheduler.New(worker, sources, cfg.ScrapeIntervalHours)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[discovery-service] Scheduler: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.DiscoveryPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[discovery-service] v%s listening on :%s", version, cfg.DiscoveryPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[discovery-service] HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[discovery-service] Shutting down…")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[discovery-service] Shutdown error: %v", err)
	}
	log.Println("[discovery-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "discovery-service",
		"version": version,
	})
}
