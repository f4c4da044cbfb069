// Package kanban contains the business logic for the tracker service.
// It is transport-agnostic: the HTTP handler in this package is one caller.
package kanban

import (
	"context"
	"log/slog"

	"github.com/H3199/duunikanban/internal/events"
	"github.com/H3199/duunikanban/internal/metrics"
	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store"
	"github.com/H3199/duunikanban/internal/views"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service records state changes and serves job views.
type Service struct {
	store   store.Store
	views   *views.Builder
	events  events.Publisher
	metrics *metrics.Metrics
}

// NewService returns a configured Service. pub and m may be nil.
func NewService(s store.Store, pub events.Publisher, m *metrics.Metrics) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{store: s, views: views.NewBuilder(s), events: pub, metrics: m}
}

// ─── Business logic ───────────────────────────────────────────────────────────

// ListJobs returns the list view. rangeParam is "" or one of 12h, 24h, 48h, 7d.
func (s *Service) ListJobs(ctx context.Context, rangeParam string) ([]views.JobView, error) {
	w, err := views.ParseWindow(rangeParam)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	return s.views.List(ctx, w)
}

// GetJob returns the detail view, or model.ErrNotFound.
func (s *Service) GetJob(ctx context.Context, id string) (*views.JobDetail, error) {
	return s.views.Detail(ctx, id)
}

// History returns every entry for the job, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]model.HistoryEntry, error) {
	if _, err := s.store.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

// RecordState appends one history entry. A nil state keeps the current
// state (new when the job has no history); nil notes keep the current notes.
// Any other state, including "", must parse or the call fails with
// model.ErrInvalidState before anything is written.
func (s *Service) RecordState(ctx context.Context, jobID string, state, notes *string, actor string) (*model.HistoryEntry, error) {
	var next *model.State
	if state != nil {
		st, err := model.ParseState(*state)
		if err != nil {
			return nil, err
		}
		next = &st
	}

	var from model.State
	entry, err := s.store.AppendHistory(ctx, jobID, func(prev *model.HistoryEntry) (store.EntryInput, error) {
		in := store.EntryInput{State: model.StateNew}
		if prev != nil {
			in.State = prev.State
			in.Notes = prev.Notes
		}
		from = in.State
		if next != nil {
			in.State = *next
		}
		if notes != nil {
			in.Notes = *notes
		}
		if actor != "" {
			in.ActorID = &actor
		}
		return in, nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.HistoryAppends.WithLabelValues(string(entry.State)).Inc()
	}

	// Non-fatal: the entry is already committed.
	if err := s.events.Publish(ctx, events.JobStateChanged, events.StateChanged{
		Type:      events.JobStateChanged,
		JobID:     jobID,
		UserID:    actor,
		From:      string(from),
		To:        string(entry.State),
		NotesOnly: next == nil,
		At:        entry.At,
	}); err != nil {
		slog.Warn("publish EVENT_JOB_STATE_CHANGED failed", "jobId", jobID, "err", err)
	}

	return entry, nil
}

// EditNotes replaces the notes and carries the current state forward.
func (s *Service) EditNotes(ctx context.Context, jobID, notes, actor string) (*model.HistoryEntry, error) {
	return s.RecordState(ctx, jobID, nil, &notes, actor)
}
