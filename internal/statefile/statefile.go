// Package statefile reads and writes the legacy job_state.json file, a flat
// map from job id to its last state, notes and update time, and moves its
// contents in and out of the history store.
package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store"
	"github.com/H3199/duunikanban/internal/timestamp"
	"github.com/H3199/duunikanban/internal/views"
)

// Entry is one job's record in the file.
type Entry struct {
	State     string  `json:"state"`
	Notes     string  `json:"notes"`
	UpdatedAt *string `json:"updated_at"`
}

// File maps a job's external id to its entry.
type File map[string]Entry

// Load reads path. A missing file is an empty File.
func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	f := File{}
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	return f, nil
}

// Save writes f to path, creating parent directories. The file is replaced
// atomically.
func Save(path string, f File) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// ImportReport summarizes an Import.
type ImportReport struct {
	Imported    int
	Unchanged   int
	UnknownJobs []string          // external ids with no stored job
	Skipped     map[string]string // external id -> state outside the enumeration
}

// Import appends one history entry per file entry to the matching job.
// Entries whose state and notes already match the job's latest entry are
// left alone, so importing the same file twice is a no-op. A legacy
// updated_at older than the latest entry is replaced by the write time so
// the imported state becomes current.
func Import(ctx context.Context, s store.Store, f File) (ImportReport, error) {
	rep := ImportReport{Skipped: map[string]string{}}

	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, extID := range ids {
		e := f[extID]
		st, err := model.ParseState(e.State)
		if err != nil {
			rep.Skipped[extID] = e.State
			slog.Warn("skipping legacy entry", "external_id", extID, "state", e.State)
			continue
		}
		job, err := s.GetJobByExternalID(ctx, extID)
		if errors.Is(err, model.ErrNotFound) {
			rep.UnknownJobs = append(rep.UnknownJobs, extID)
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("look up %s: %w", extID, err)
		}

		_, err = s.AppendHistory(ctx, job.ID, func(prev *model.HistoryEntry) (store.EntryInput, error) {
			if prev != nil && prev.State == st && prev.Notes == e.Notes {
				return store.EntryInput{}, errUnchanged
			}
			in := store.EntryInput{State: st, Notes: e.Notes}
			if at := timestamp.Normalize(e.UpdatedAt); at != nil && (prev == nil || at.After(prev.At)) {
				in.At = *at
			}
			return in, nil
		})
		switch {
		case errors.Is(err, errUnchanged):
			rep.Unchanged++
		case err != nil:
			return rep, fmt.Errorf("import %s: %w", extID, err)
		default:
			rep.Imported++
		}
	}
	return rep, nil
}

var errUnchanged = errors.New("unchanged")

// Export renders the current board as a File keyed by external id.
func Export(ctx context.Context, b *views.Builder) (File, error) {
	list, err := b.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	f := make(File, len(list))
	for _, v := range list {
		e := Entry{State: string(v.State), Notes: v.Notes}
		if v.UpdatedAt != nil {
			s := timestamp.Format(*v.UpdatedAt)
			e.UpdatedAt = &s
		}
		f[v.ExternalID] = e
	}
	return f, nil
}
