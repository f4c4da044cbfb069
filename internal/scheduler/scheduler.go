// Package scheduler wires up the cron job that periodically runs every
// configured discovery source.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/H3199/duunikanban/internal/scraper"
)

// Runner runs one discovery cycle over sources. *scraper.Worker satisfies it.
type Runner interface {
	RunAll(ctx context.Context, sources []scraper.Source)
}

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	sources []scraper.Source
	hours   int
	spec    string // cron spec, e.g. "@every 6h"

	mu      sync.Mutex // serializes cycles; a tick during a long run is skipped
	running sync.WaitGroup
}

// New creates a Scheduler that fires every intervalHours hours.
func New(runner Runner, sources []scraper.Source, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cron.DefaultLogger)),
		runner:  runner,
		sources: sources,
		hours:   intervalHours,
		spec:    fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Spec returns the cron expression the scheduler registers.
func (s *Scheduler) Spec() string { return s.spec }

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so the board is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.hours < 1 {
		return fmt.Errorf("scrape interval must be at least 1h, got %dh", s.hours)
	}
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started, spec: %s", s.spec)

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.runCycle(ctx)
	}()
	return nil
}

// Stop shuts down the scheduler and waits for any running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.running.Wait()
	log.Println("[scheduler] Cron stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.mu.TryLock() {
		log.Println("[scheduler] Previous cycle still running, skipping tick")
		return
	}
	defer s.mu.Unlock()

	if len(s.sources) == 0 {
		log.Println("[scheduler] No sources configured, nothing to scrape")
		return
	}
	log.Printf("[scheduler] Scrape cycle started for %d source(s)", len(s.sources))
	s.runner.RunAll(ctx, s.sources)
	log.Println("[scheduler] Scrape cycle complete")
}
