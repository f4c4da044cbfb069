// Package store defines the persistence contract for job postings and their
// append-only state history. Backends live in the postgres and sqlite
// subpackages.
package store

import (
	"context"
	"time"

	"github.com/H3199/duunikanban/internal/model"
)

// UpsertResult reports what UpsertJob did with one posting.
type UpsertResult struct {
	Job     model.Job
	Created bool
	Changed bool
}

// EntryInput is the entry an AppendFunc asks the log to write.
type EntryInput struct {
	State   model.State
	Notes   string
	ActorID *string
	// At overrides the write time. Zero means "now", clamped so the new
	// entry is never older than the current latest one.
	At time.Time
}

// AppendFunc builds the next entry from the job's current latest entry,
// which is nil when the job has no history. It runs while the job is locked,
// so reading prev and writing the result is atomic per job.
type AppendFunc func(prev *model.HistoryEntry) (EntryInput, error)

// JobStore holds canonical job postings keyed by external id.
type JobStore interface {
	// UpsertJob inserts or updates the posting identified by f.ExternalID.
	// When a job is created and seed is non-nil, the seed entry is written
	// in the same transaction. Existing jobs never get history written.
	UpsertJob(ctx context.Context, f model.JobFields, seed *model.Seed) (UpsertResult, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetJobByExternalID(ctx context.Context, externalID string) (*model.Job, error)
	ListJobs(ctx context.Context) ([]model.Job, error)
}

// HistoryLog is the append-only ledger of state and notes changes.
type HistoryLog interface {
	AppendHistory(ctx context.Context, jobID string, fn AppendFunc) (*model.HistoryEntry, error)
	LatestHistory(ctx context.Context, jobID string) (*model.HistoryEntry, error)
	FirstWithState(ctx context.Context, jobID string, st model.State) (*model.HistoryEntry, error)
	ListHistory(ctx context.Context, jobID string) ([]model.HistoryEntry, error)
	LatestHistoryAll(ctx context.Context) (map[string]model.HistoryEntry, error)
}

// Store is a complete backend.
type Store interface {
	JobStore
	HistoryLog
	Ping(ctx context.Context) error
	Close() error
}

// Append writes one entry as given, without looking at the previous one.
func Append(ctx context.Context, log HistoryLog, jobID string, in EntryInput) (*model.HistoryEntry, error) {
	return log.AppendHistory(ctx, jobID, func(*model.HistoryEntry) (EntryInput, error) {
		return in, nil
	})
}

// ResolveAt returns the timestamp to store for in following prev.
func ResolveAt(in EntryInput, prev *model.HistoryEntry, now time.Time) time.Time {
	if !in.At.IsZero() {
		return in.At.UTC().Truncate(time.Microsecond)
	}
	return model.NextTimestamp(prev, now)
}

// Validate rejects entries whose state is outside the enumeration.
func Validate(in EntryInput) error {
	_, err := model.ParseState(string(in.State))
	return err
}
