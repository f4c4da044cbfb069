// Package postgres is the server-grade store backend. Appends to one job's
// history are serialized with SELECT ... FOR UPDATE on the job row; writes to
// different jobs proceed in parallel.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/H3199/duunikanban/internal/model"
	"github.com/H3199/duunikanban/internal/store"
)

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns a Store over pool. The schema must already be migrated.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Ping verifies the pool can reach the server.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

const jobColumns = `id::text, external_id, title, company, url, description, country,
	latitude, longitude, remote, hybrid, region, created_at, updated_at`

func scanJob(row pgx.Row) (model.Job, error) {
	var (
		j      model.Job
		region *string
	)
	err := row.Scan(
		&j.ID, &j.ExternalID, &j.Title, &j.Company, &j.URL, &j.Description, &j.Country,
		&j.Latitude, &j.Longitude, &j.Remote, &j.Hybrid, &region, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return model.Job{}, err
	}
	if region != nil {
		j.Region = model.Region(*region)
	}
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return j, nil
}

// UpsertJob implements store.JobStore.
func (s *Store) UpsertJob(ctx context.Context, f model.JobFields, seed *model.Seed) (store.UpsertResult, error) {
	if seed != nil {
		if _, err := model.ParseState(string(seed.State)); err != nil {
			return store.UpsertResult{}, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := s.now().UTC().Truncate(time.Microsecond)
	job := model.NewJob(uuid.NewString(), f, now)

	// ON CONFLICT DO NOTHING makes concurrent first sightings of the same
	// external id race safely: exactly one insert wins.
	tag, err := tx.Exec(ctx,
		`INSERT INTO jobs (id, external_id, title, company, url, description, country,
		                   latitude, longitude, remote, hybrid, region, created_at, updated_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		 ON CONFLICT (external_id) DO NOTHING`,
		job.ID, job.ExternalID, job.Title, job.Company, job.URL, job.Description, job.Country,
		job.Latitude, job.Longitude, job.Remote, job.Hybrid, string(job.Region), now,
	)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("insert job %q: %w", f.ExternalID, err)
	}

	if tag.RowsAffected() == 1 {
		if seed != nil {
			in := store.EntryInput{State: seed.State, Notes: seed.Notes, At: seed.At}
			if _, err := insertEntry(ctx, tx, job.ID, in, store.ResolveAt(in, nil, now)); err != nil {
				return store.UpsertResult{}, err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return store.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
		}
		return store.UpsertResult{Job: job, Created: true}, nil
	}

	existing, err := scanJob(tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE external_id = $1 FOR UPDATE`, f.ExternalID))
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("lock job %q: %w", f.ExternalID, err)
	}

	merged, changed := existing.Merge(f)
	if !changed {
		return store.UpsertResult{Job: existing}, nil
	}
	merged.UpdatedAt = now

	_, err = tx.Exec(ctx,
		`UPDATE jobs
		 SET title = $1, company = $2, url = $3, description = $4, country = $5,
		     region = $6, updated_at = $7
		 WHERE id = $8::uuid`,
		merged.Title, merged.Company, merged.URL, merged.Description, merged.Country,
		nullableRegion(merged.Region), now, merged.ID,
	)
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("update job %s: %w", merged.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return store.UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return store.UpsertResult{Job: merged, Changed: true}, nil
}

func nullableRegion(r model.Region) *string {
	if r == "" {
		return nil
	}
	s := string(r)
	return &s
}

// GetJob implements store.JobStore.
func (s *Store) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.ErrNotFound
	}
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1::uuid`, id)
}

// GetJobByExternalID implements store.JobStore.
func (s *Store) GetJobByExternalID(ctx context.Context, externalID string) (*model.Job, error) {
	return s.getJob(ctx, `SELECT `+jobColumns+` FROM jobs WHERE external_id = $1`, externalID)
}

func (s *Store) getJob(ctx context.Context, query, arg string) (*model.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// ListJobs implements store.JobStore.
func (s *Store) ListJobs(ctx context.Context) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ─── History ─────────────────────────────────────────────────────────────────

const historyColumns = `seq, id::text, job_id::text, user_id, state, notes, recorded_at`

// latestOrder matches model.HistoryEntry.After.
const latestOrder = `ORDER BY recorded_at DESC, seq DESC`

func scanEntry(row pgx.Row) (model.HistoryEntry, error) {
	var (
		e     model.HistoryEntry
		state string
	)
	if err := row.Scan(&e.Seq, &e.ID, &e.JobID, &e.ActorID, &state, &e.Notes, &e.At); err != nil {
		return model.HistoryEntry{}, err
	}
	st, err := model.ParseState(state)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("history entry %s: %w", e.ID, err)
	}
	e.State = st
	e.At = e.At.UTC()
	return e, nil
}

func collectEntries(rows pgx.Rows) ([]model.HistoryEntry, error) {
	defer rows.Close()
	out := make([]model.HistoryEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendHistory implements store.HistoryLog.
func (s *Store) AppendHistory(ctx context.Context, jobID string, fn store.AppendFunc) (*model.HistoryEntry, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, model.ErrNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var locked string
	err = tx.QueryRow(ctx, `SELECT id::text FROM jobs WHERE id = $1::uuid FOR UPDATE`, jobID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("lock job %s: %w", jobID, err)
	}

	prev, err := latest(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}

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
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return &entry, nil
}

func insertEntry(ctx context.Context, q querier, jobID string, in store.EntryInput, at time.Time) (model.HistoryEntry, error) {
	e := model.HistoryEntry{
		ID:      uuid.NewString(),
		JobID:   jobID,
		ActorID: in.ActorID,
		State:   in.State,
		Notes:   in.Notes,
		At:      at,
	}
	err := q.QueryRow(ctx,
		`INSERT INTO job_state_history (id, job_id, user_id, state, notes, recorded_at)
		 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
		 RETURNING seq`,
		e.ID, e.JobID, e.ActorID, string(e.State), e.Notes, e.At,
	).Scan(&e.Seq)
	if err != nil {
		return model.HistoryEntry{}, fmt.Errorf("insert history for job %s: %w", jobID, err)
	}
	return e, nil
}

func latest(ctx context.Context, q querier, jobID string) (*model.HistoryEntry, error) {
	e, err := scanEntry(q.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM job_state_history
		 WHERE job_id = $1::uuid `+latestOrder+` LIMIT 1`, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest history for job %s: %w", jobID, err)
	}
	return &e, nil
}

// LatestHistory implements store.HistoryLog.
func (s *Store) LatestHistory(ctx context.Context, jobID string) (*model.HistoryEntry, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, nil
	}
	return latest(ctx, s.pool, jobID)
}

// FirstWithState implements store.HistoryLog.
func (s *Store) FirstWithState(ctx context.Context, jobID string, st model.State) (*model.HistoryEntry, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, nil
	}
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM job_state_history
		 WHERE job_id = $1::uuid AND state = $2
		 ORDER BY recorded_at ASC, seq ASC LIMIT 1`, jobID, string(st)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first %s for job %s: %w", st, jobID, err)
	}
	return &e, nil
}

// ListHistory implements store.HistoryLog. Entries are returned oldest first.
func (s *Store) ListHistory(ctx context.Context, jobID string) ([]model.HistoryEntry, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return []model.HistoryEntry{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+historyColumns+` FROM job_state_history
		 WHERE job_id = $1::uuid ORDER BY recorded_at ASC, seq ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list history for job %s: %w", jobID, err)
	}
	return collectEntries(rows)
}

// LatestHistoryAll implements store.HistoryLog.
func (s *Store) LatestHistoryAll(ctx context.Context) (map[string]model.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (job_id) `+historyColumns+`
		 FROM job_state_history
		 ORDER BY job_id, recorded_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest history: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.HistoryEntry, len(entries))
	for _, e := range entries {
		out[e.JobID] = e
	}
	return out, nil
}
