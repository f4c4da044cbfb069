// Package views joins job postings with their latest history entry into the
// read models served by the tracker API. The builders are pure; Builder
// wires them to a store.
package views

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store"
)

// Window is a "recent new jobs" cutoff. Zero means no window.
type Window time.Duration

var windows = map[string]Window{
	"12h": Window(12 * time.Hour),
	"24h": Window(24 * time.Hour),
	"48h": Window(48 * time.Hour),
	"7d":  Window(7 * 24 * time.Hour),
}

// ErrInvalidWindow is wrapped by ParseWindow.
var ErrInvalidWindow = fmt.Errorf("invalid range")

// ParseWindow accepts 12h, 24h, 48h or 7d. The empty string means no window.
func ParseWindow(s string) (Window, error) {
	if s == "" {
		return 0, nil
	}
	w, ok := windows[s]
	if !ok {
		return 0, fmt.Errorf("%w %q: must be one of 12h, 24h, 48h, 7d", ErrInvalidWindow, s)
	}
	return w, nil
}

// JobView is one row of the list view.
type JobView struct {
	model.Job
	State     model.State `json:"state"`
	Notes     string      `json:"notes"`
	UpdatedAt *time.Time  `json:"updated_at"`
}

// JobDetail is the single-job view.
type JobDetail struct {
	JobView
	AppliedAt *time.Time `json:"applied_at"`
}

// View joins job with its latest history entry. Without history the state
// is new, notes are empty and updated_at is null.
func View(job model.Job, latest *model.HistoryEntry) JobView {
	v := JobView{Job: job, State: model.StateNew}
	if latest != nil {
		v.State = latest.State
		v.Notes = latest.Notes
		if !latest.At.IsZero() {
			at := latest.At
			v.UpdatedAt = &at
		}
	}
	return v
}

// BuildList joins every job with its entry in latest, drops stale "new"
// jobs when a window is set, and sorts by updated_at descending with nulls
// last. Ties are ordered by job id so the output is deterministic.
func BuildList(jobs []model.Job, latest map[string]model.HistoryEntry, w Window, now time.Time) []JobView {
	cutoff := now.Add(-time.Duration(w))

	out := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		var entry *model.HistoryEntry
		if e, ok := latest[j.ID]; ok {
			entry = &e
		}
		v := View(j, entry)

		if w > 0 && v.State == model.StateNew {
			if v.UpdatedAt == nil || v.UpdatedAt.Before(cutoff) {
				continue
			}
		}
		out = append(out, v)
	}

	sort.SliceStable(out, func(i, k int) bool {
		a, b := out[i].UpdatedAt, out[k].UpdatedAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[k].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

// BuildDetail adds applied_at, the time the job first reached "applied".
func BuildDetail(job model.Job, latest, firstApplied *model.HistoryEntry) JobDetail {
	d := JobDetail{JobView: View(job, latest)}
	if firstApplied != nil && !firstApplied.At.IsZero() {
		at := firstApplied.At
		d.AppliedAt = &at
	}
	return d
}

// Builder serves views from a store.
type Builder struct {
	jobs    store.JobStore
	history store.HistoryLog
	now     func() time.Time
}

// NewBuilder returns a Builder reading from s.
func NewBuilder(s store.Store) *Builder {
	return &Builder{jobs: s, history: s, now: time.Now}
}

// List returns the list view for window w.
func (b *Builder) List(ctx context.Context, w Window) ([]JobView, error) {
	jobs, err := b.jobs.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := b.history.LatestHistoryAll(ctx)
	if err != nil {
		return nil, err
	}
	return BuildList(jobs, latest, w, b.now()), nil
}

// Detail returns the detail view, or model.ErrNotFound.
func (b *Builder) Detail(ctx context.Context, id string) (*JobDetail, error) {
	job, err := b.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	latest, err := b.history.LatestHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	applied, err := b.history.FirstWithState(ctx, id, model.StateApplied)
	if err != nil {
		return nil, err
	}
	d := BuildDetail(*job, latest, applied)
	return &d, nil
}
