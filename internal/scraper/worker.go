package scraper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/H3199/duunikanban/internal/events"
	"github.com/H3199/duunikanban/internal/ingest"
	"github.com/H3199/duunikanban/internal/metrics"
)

// Worker runs the full discovery cycle for one source: fetch, filter,
// reconcile into the store, publish a summary event.
type Worker struct {
	reconciler *ingest.Reconciler
	events     events.Publisher
	metrics    *metrics.Metrics
}

// NewWorker constructs a Worker. pub and m may be nil.
func NewWorker(r *ingest.Reconciler, pub events.Publisher, m *metrics.Metrics) *Worker {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Worker{reconciler: r, events: pub, metrics: m}
}

// Run executes one cycle for src. A fetch failure aborts the run before
// anything is written; the next scheduled run retries.
func (w *Worker) Run(ctx context.Context, src Source) (ingest.Result, error) {
	start := time.Now()
	log.Printf("[worker] Starting %s run", src.Name())

	batch, err := src.Fetch(ctx)
	if err != nil {
		w.observe(src.Name(), "fetch_error", start)
		return ingest.Result{}, fmt.Errorf("fetch %s: %w", src.Name(), err)
	}
	for reason, n := range batch.Rejected {
		if w.metrics != nil {
			w.metrics.RecordsFiltered.WithLabelValues(src.Name(), reason).Add(float64(n))
		}
	}
	log.Printf("[worker] %s fetched=%d eligible=%d", src.Name(), batch.Fetched, len(batch.Records))

	res, err := w.reconciler.Reconcile(ctx, src.Region(), batch.Records)
	if err != nil {
		w.observe(src.Name(), "store_error", start)
		return res, fmt.Errorf("reconcile %s: %w", src.Name(), err)
	}
	w.observe(src.Name(), "ok", start)

	log.Printf("[worker] %s done: inserted=%d updated=%d unchanged=%d malformed=%d",
		src.Name(), res.Inserted, res.Updated, res.Unchanged, res.Malformed)

	if err := w.events.Publish(ctx, events.JobsIngested, events.Ingested{
		Type:      events.JobsIngested,
		Source:    src.Name(),
		Region:    string(src.Region()),
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Malformed: res.Malformed,
	}); err != nil {
		log.Printf("[worker] publish %s failed: %v", events.JobsIngested, err)
	}
	return res, nil
}

// RunAll runs every source in turn. A failing source is logged and does not
// stop the others.
func (w *Worker) RunAll(ctx context.Context, sources []Source) {
	for _, src := range sources {
		if _, err := w.Run(ctx, src); err != nil {
			log.Printf("[worker] %v, continuing", err)
		}
	}
}

func (w *Worker) observe(source, result string, start time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.SourceRuns.WithLabelValues(source, result).Inc()
	w.metrics.SourceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
