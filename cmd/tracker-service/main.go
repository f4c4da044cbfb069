// duunikanban tracker-service
//
// HTTP API over the job store and its append-only state history:
//   - list jobs with their current state, optionally limited to recent new ones
//   - job detail with applied_at, and the full history of a job
//   - record a state change, edit notes
//   - remaining TheirStack credits
//
// Publishes EVENT_JOB_STATE_CHANGED to Redis when REDIS_URL is set and
// serves the gRPC health service when TRACKER_GRPC_PORT is set.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/H3199/duunikanban/internal/config"
	"github.com/H3199/duunikanban/internal/db"
	"github.com/H3199/duunikanban/internal/grpcserver"
	"github.com/H3199/duunikanban/internal/kanban"
	"github.com/H3199/duunikanban/internal/metrics"
	"github.com/H3199/duunikanban/internal/scraper"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[tracker-service] Config error: %v", err)
	}
	config.NewLogger(cfg, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Store ────────────────────────────────────────────────────────────────
	backend, err := db.BackendFor(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[tracker-service] %v", err)
	}
	log.Printf("[tracker-service] Opening %s store…", backend)
	st, err := db.OpenStore(ctx, cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		log.Fatalf("[tracker-service] Store: %v", err)
	}
	defer st.Close()
	log.Printf("[tracker-service] %s store ready ✓", backend)

	// ── Redis (optional) ─────────────────────────────────────────────────────
	pub, closePub, err := db.OpenPublisher(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[tracker-service] Redis: %v", err)
	}
	defer closePub() //nolint:errcheck
	if cfg.RedisURL != "" {
		log.Println("[tracker-service] Redis connected ✓")
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	m := metrics.New()

	var credits kanban.CreditChecker
	if cfg.TheirStackAPIKey != "" {
		credits = scraper.NewTheirStackFetcher(cfg.TheirStackAPIKey, "")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", m.Handler())

	h := kanban.NewHandler(kanban.NewService(st, pub, m), credits, m)
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.TrackerPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	go func() {
		log.Printf("[tracker-service] v%s listening on :%s", version, cfg.TrackerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[tracker-service] HTTP server error: %v", err)
		}
	}()

	// ── gRPC health (optional) ───────────────────────────────────────────────
	var gs *grpcserver.Server
	if cfg.TrackerGRPCPort != "" {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.TrackerGRPCPort))
		if err != nil {
			log.Fatalf("[tracker-service] gRPC listen: %v", err)
		}
		gs = grpcserver.NewServer(st, 15*time.Second)
		go gs.Watch(ctx)
		go func() {
			log.Printf("[tracker-service] gRPC health listening on :%s", cfg.TrackerGRPCPort)
			if err := gs.Serve(lis); err != nil {
				log.Printf("[tracker-service] gRPC server error: %v", err)
			}
		}()
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[tracker-service] Shutting down…")
	cancel()
	if gs != nil {
		gs.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[tracker-service] Shutdown error: %v", err)
	}
	log.Println("[tracker-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "tracker-service",
		"version": version,
	})
}
