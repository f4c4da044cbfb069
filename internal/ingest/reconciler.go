// Package ingest reconciles batches of fetched records into the job store.
// Re-ingesting the same batch is a no-op; user-recorded history is never
// touched for jobs that already exist.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/H3199/duunikanban/internal/metrics"
	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store"
)

// Result counts what one Reconcile call did.
type Result struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Malformed int `json:"malformed"`
}

// Reconciler applies record batches to a JobStore.
type Reconciler struct {
	jobs     store.JobStore
	validate *validator.Validate
	workers  int
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithWorkers bounds the number of concurrent upserts. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n < 1 {
			n = 1
		}
		r.workers = n
	}
}

// WithMetrics records per-record outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// WithClock replaces the time source used for seed entries.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler returns a Reconciler over jobs.
func NewReconciler(jobs store.JobStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		jobs:     jobs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		workers:  1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Check normalizes rec and reports ErrMalformedRecord when a required field
// is missing or a coordinate is out of range.
func (r *Reconciler) Check(rec model.Record) (model.Record, error) {
	rec = rec.Normalize()
	if err := r.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return rec, fmt.Errorf("%w: %s failed %q", model.ErrMalformedRecord, verrs[0].Field(), verrs[0].Tag())
		}
		return rec, fmt.Errorf("%w: %v", model.ErrMalformedRecord, err)
	}
	return rec, nil
}

// Reconcile upserts every well-formed record under region. New jobs get a
// seed entry {new, "", now} in the same transaction as the insert.
//
// Records sharing an external id are applied in input order by one worker.
// The first store error stops the batch; work already committed stays, and
// since upserts are idempotent the batch can simply be retried.
func (r *Reconciler) Reconcile(ctx context.Context, region model.Region, records []model.Record) (Result, error) {
	var res Result

	groups := make(map[string][]model.Record)
	var order []string
	for _, raw := range records {
		rec, err := r.Check(raw)
		if err != nil {
			res.Malformed++
			r.count(region, "malformed")
			slog.Debug("skipping malformed record", "region", region, "external_id", rec.ExternalID, "err", err)
			continue
		}
		if _, seen := groups[rec.ExternalID]; !seen {
			order = append(order, rec.ExternalID)
		}
		groups[rec.ExternalID] = append(groups[rec.ExternalID], rec)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, id := range order {
		group := groups[id]
		g.Go(func() error {
			for _, rec := range group {
				seed := &model.Seed{State: model.StateNew, At: r.now()}
				out, err := r.jobs.UpsertJob(gctx, rec.Fields(region), seed)
				if err != nil {
					return fmt.Errorf("upsert %q: %w", rec.ExternalID, err)
				}

				outcome := "unchanged"
				switch {
				case out.Created:
					outcome = "inserted"
				case out.Changed:
					outcome = "updated"
				}
				r.count(region, outcome)

				mu.Lock()
				switch outcome {
				case "inserted":
					res.Inserted++
				case "updated":
					res.Updated++
				default:
					res.Unchanged++
				}
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return res, err
}

func (r *Reconciler) count(region model.Region, outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordsIngested.WithLabelValues(string(region), outcome).Inc()
}
