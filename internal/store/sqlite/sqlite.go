// Package sqlite is the single-file store backend, the default for local
// deployments. Writes are serialized through one connection; timestamps are
// kept as TEXT and read back through the timestamp package so rows written
// by older tooling stay readable.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/H3199/duunikanban/internal/migrations"
	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store"
	"github.com/H3199/duunikanban/internal/timestamp"
)

// Store implements store.Store on SQLite.
type Store struct {
	db  *sqlx.DB
	mu  sync.Mutex // serializes writers
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at dsn (a file path or ":memory:") and
// applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite connect: %w", err)
	}
	// One connection: SQLite has a single writer anyway, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrations.UpSQLite(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// ─── Rows ────────────────────────────────────────────────────────────────────

const jobColumns = `id, external_id, title, company, url, description, country,
	latitude, longitude, remote, hybrid, region, created_at, updated_at`

type jobRow struct {
	ID          string          `db:"id"`
	ExternalID  string          `db:"external_id"`
	Title       string          `db:"title"`
	Company     string          `db:"company"`
	URL         string          `db:"url"`
	Description string          `db:"description"`
	Country     string          `db:"country"`
	Latitude    sql.NullFloat64 `db:"latitude"`
	Longitude   sql.NullFloat64 `db:"longitude"`
	Remote      bool            `db:"remote"`
	Hybrid      bool            `db:"hybrid"`
	Region      sql.NullString  `db:"region"`
	CreatedAt   string          `db:"created_at"`
	UpdatedAt   string          `db:"updated_at"`
}

func (r jobRow) toJob() model.Job {
	j := model.Job{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Title:       r.Title,
		Company:     r.Company,
		URL:         r.URL,
		Description: r.Description,
		Country:     r.Country,
		Remote:      r.Remote,
		Hybrid:      r.Hybrid,
		Region:      model.Region(r.Region.String),
	}
	if r.Latitude.Valid {
		lat := r.Latitude.Float64
		j.Latitude = &lat
	}
	if r.Longitude.Valid {
		lon := r.Longitude.Float64
		j.Longitude = &lon
	}
	if t := timestamp.Parse(r.CreatedAt); t != nil {
		j.CreatedAt = *t
	}
	if t := timestamp.Parse(r.UpdatedAt); t != nil {
		j.UpdatedAt = *t
	}
	return j
}

const historyColumns = `seq, id, job_id, user_id, state, notes, recorded_at`

type historyRow struct {
	Seq        int64          `db:"seq"`
	ID         string         `db:"id"`
	JobID      string         `db:"job_id"`
	UserID     sql.NullString `db:"user_id"`
	State      string         `db:"state"`
	Notes      sql.NullString `db:"notes"`
	RecordedAt sql.NullString `db:"recorded_at"`
}

func (r historyRow) toEntry() (model.HistoryEntry, error) {
	st, err := model.ParseState(r.State)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("history entry %s: %w", r.ID, err)
	}
	e := model.HistoryEntry{
		ID:    r.ID,
		JobID: r.JobID,
		State: st,
		Notes: r.Notes.String,
		Seq:   r.Seq,
	}
	if r.UserID.Valid {
		uid := r.UserID.String
		e.ActorID = &uid
	}
	if r.RecordedAt.Valid {
		if t := timestamp.Parse(r.RecordedAt.String); t != nil {
			e.At = *t
		}
	}
	return e, nil
}

func toEntries(rows []historyRow) ([]model.HistoryEntry, error) {
	out := make([]model.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

// UpsertJob implements store.JobStore.
func (s *Store) UpsertJob(ctx context.Context, f model.JobFields, seed *model.Seed) (store.UpsertResult, error) {
	if seed != nil {
		if _, err := model.ParseState(string(seed.State)); err != nil {
			return store.UpsertResult{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.now().UTC().Truncate(time.Microsecond)

	var row jobRow
	err = tx.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE external_id = ?`, f.ExternalID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		job := model.NewJob(uuid.NewString(), f, now)
		if err := insertJob(ctx, tx, job); err != nil {
			return store.UpsertResult{}, err
		}
		if seed != nil {
			in := store.EntryInput{State: seed.State, Notes: seed.Notes, At: seed.At}
			if _, err := insertEntry(ctx, tx, job.ID, in, store.ResolveAt(in, nil, now)); err != nil {
				return store.UpsertResult{}, err
			}
		}
		if err := tx.Commit(); err != nil {
			return store.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
		}
		return store.UpsertResult{Job: job, Created: true}, nil
	case err != nil:
		return store.UpsertResult{}, fmt.Errorf("lookup job %q: %w", f.ExternalID, err)
	}

	existing := row.toJob()
	merged, changed := existing.Merge(f)
	if !changed {
		return store.UpsertResult{Job: existing}, nil
	}
	merged.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`UPDATE jobs
		 SET title = ?, company = ?, url = ?, description = ?, country = ?,
		     region = ?, updated_at = ?
		 WHERE id = ?`,
		merged.Title, merged.Company, merged.URL, merged.Description, merged.Country,
		nullableRegion(merged.Region), timestamp.Format(now), merged.ID,
	)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("update job %s: %w", merged.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return store.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return store.UpsertResult{Job: merged, Changed: true}, nil
}

func insertJob(ctx context.Context, tx *sqlx.Tx, j model.Job) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ExternalID, j.Title, j.Company, j.URL, j.Description, j.Country,
		j.Latitude, j.Longitude, j.Remote, j.Hybrid, nullableRegion(j.Region),
		timestamp.Format(j.CreatedAt), timestamp.Format(j.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job %q: %w", j.ExternalID, err)
	}
	return nil
}

func nullableRegion(r model.Region) any {
	if r == "" {
		return nil
	}
	return string(r)
}

// GetJob implements store.JobStore.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
}

// GetJobByExternalID implements store.JobStore.
func (s *Store) GetJobByExternalID(ctx context.Context, externalID string) (*model.Job, error) {
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM jobs WHERE external_id = ?`, externalID)
}

func (s *Store) getJob(ctx context.Context, query, arg string) (*model.Job, error) {
	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	j := row.toJob()
	return &j, nil
}

// ListJobs implements store.JobStore.
func (s *Store) ListJobs(ctx context.Context) ([]model.Job, error) {
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+jobColumns+` FROM jobs`); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]model.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.toJob())
	}
	return jobs, nil
}

// ─── History ─────────────────────────────────────────────────────────────────

// AppendHistory implements store.HistoryLog.
func (s *Store) AppendHistory(ctx context.Context, jobID string, fn store.AppendFunc) (*model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var one int
	if err := tx.GetContext(ctx, &one, `SELECT 1 FROM jobs WHERE id = ?`, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("lookup job %s: %w", jobID, err)
	}

	entries, err := listHistory(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	prev := model.Latest(entries)

	in, err := fn(prev)
	if err != nil {
		return nil, err
	}
	if err := store.Validate(in); err != nil {
		return nil, err
	}

	entry, err := insertEntry(ctx, tx, jobID, in, store.ResolveAt(in, prev, s.now()))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return &entry, nil
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, jobID string, in store.EntryInput, at time.Time) (model.HistoryEntry, error) {
	e := model.HistoryEntry{
		ID:      uuid.NewString(),
		JobID:   jobID,
		ActorID: in.ActorID,
		State:   in.State,
		Notes:   in.Notes,
		At:      at,
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO job_state_history (id, job_id, user_id, state, notes, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.JobID, e.ActorID, string(e.State), e.Notes, timestamp.Format(e.At),
	)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("insert history for job %s: %w", jobID, err)
	}
	if e.Seq, err = res.LastInsertId(); err != nil {
		return model.HistoryEntry{}, fmt.Errorf("history seq: %w", err)
	}
	return e, nil
}

func listHistory(ctx context.Context, q sqlx.QueryerContext, jobID string) ([]model.HistoryEntry, error) {
	var rows []historyRow
	err := sqlx.SelectContext(ctx, q, &rows,
		`SELECT `+historyColumns+` FROM job_state_history WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list history for job %s: %w", jobID, err)
	}
	return toEntries(rows)
}

// LatestHistory implements store.HistoryLog.
func (s *Store) LatestHistory(ctx context.Context, jobID string) (*model.HistoryEntry, error) {
	entries, err := listHistory(ctx, s.db, jobID)
	if err != nil {
		return nil, err
	}
	return model.Latest(entries), nil
}

// FirstWithState implements store.HistoryLog.
func (s *Store) FirstWithState(ctx context.Context, jobID string, st model.State) (*model.HistoryEntry, error) {
	entries, err := listHistory(ctx, s.db, jobID)
	if err != nil {
		return nil, err
	}
	return model.FirstWithState(entries, st), nil
}

// ListHistory implements store.HistoryLog. Entries are returned oldest first.
func (s *Store) ListHistory(ctx context.Context, jobID string) ([]model.HistoryEntry, error) {
	entries, err := listHistory(ctx, s.db, jobID)
	if err != nil {
		return nil, err
	}
	model.SortHistory(entries)
	return entries, nil
}

// LatestHistoryAll implements store.HistoryLog.
func (s *Store) LatestHistoryAll(ctx context.Context) (map[string]model.HistoryEntry, error) {
	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+historyColumns+` FROM job_state_history`); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries, err := toEntries(rows)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]model.HistoryEntry)
	for _, e := range entries {
		if cur, ok := latest[e.JobID]; !ok || e.After(cur) {
			latest[e.JobID] = e
		}
	}
	return latest, nil
}

// DSN converts a sqlite:// URL to a go-sqlite3 data source name.
func DSN(url string) string {
	dsn := strings.TrimPrefix(url, "sqlite://")
	if dsn == "" {
		return ":memory:"
	}
	return dsn
}
