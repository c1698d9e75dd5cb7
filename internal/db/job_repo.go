package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"boardpulse/internal/types"
)

// JobRepository provides data access for the jobs table, the persisted task
// queue of the service.
//
// Schema:
//
//	CREATE TABLE jobs (
//	    id         TEXT PRIMARY KEY,
//	    type       TEXT NOT NULL,
//	    status     TEXT NOT NULL DEFAULT 'pending',
//	    subject    TEXT NOT NULL,
//	    data       JSONB NOT NULL DEFAULT '{}',
//	    result     TEXT NOT NULL DEFAULT '',
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE UNIQUE INDEX jobs_active_subject_idx
//	    ON jobs (type, subject) WHERE status IN ('pending', 'executing');
//	CREATE INDEX jobs_due_idx ON jobs (status, created_at);
//
// The partial unique index converts the check-then-create dedup of the
// creation sweeps into a hard database guarantee: two overlapping sweeps
// cannot both insert an active job for the same (type, subject).
type JobRepository struct {
	db DBTX
}

// NewJobRepository creates a JobRepository backed by the given database
// connection (pool or transaction).
func NewJobRepository(db DBTX) *JobRepository {
	return &JobRepository{db: db}
}

// jobColumns is the canonical select list matched by scanJob.
const jobColumns = `id, type, status, subject, data, result, created_at`

func scanJob(row pgx.Row) (types.Job, error) {
	var j types.Job
	err := row.Scan(&j.ID, &j.Type, &j.Status, &j.Subject, &j.Data, &j.Result, &j.CreatedAt)
	return j, err
}

// newJobID mints a prefixed identifier for a job row.
func newJobID() string {
	return "job_" + uuid.NewString()
}

// Create inserts a PENDING job for the given (type, subject) pair, deferring
// to an already-active job when one exists.
//
// The insert carries ON CONFLICT DO NOTHING against the active-subject
// partial index; on conflict the existing active job's id is fetched and
// returned with created=false. This removes the TOCTOU window of a separate
// existence check without changing the caller-visible contract (the same id
// comes back however the race resolves).
func (r *JobRepository) Create(ctx context.Context, jobType types.JobType, subject string, data any) (id string, created bool, err error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal job data", err)
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO jobs (id, type, status, subject, data, created_at)
		 VALUES ($1, $2, 'pending', $3, $4, NOW())
		 ON CONFLICT (type, subject) WHERE status IN ('pending', 'executing')
		 DO NOTHING
		 RETURNING id`,
		newJobID(),
		string(jobType),
		subject,
		payload,
	)
	if err := row.Scan(&id); err == nil {
		return id, true, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to create job", err)
	}

	// Conflict: an active job for this subject already exists; return it.
	existing, ok, err := r.ActiveForSubject(ctx, jobType, subject)
	if err != nil {
		return "", false, err
	}
	if !ok {
		// The active job was finalized between insert and lookup. Rare; let
		// the caller's next sweep recreate it rather than looping here.
		return "", false, types.NewAppError(types.ErrCodeConflictActiveJob, "active job vanished during dedup", nil)
	}
	return existing, false, nil
}

// ActiveForSubject returns the id of the PENDING or EXECUTING job for the
// given (type, subject), if one exists.
func (r *JobRepository) ActiveForSubject(ctx context.Context, jobType types.JobType, subject string) (string, bool, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM jobs
		 WHERE type = $1 AND subject = $2 AND status IN ('pending', 'executing')
		 LIMIT 1`,
		string(jobType),
		subject,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to look up active job", err)
	}
	return id, true, nil
}

// Get fetches a single job by id. Returns (nil, nil) when no row exists.
func (r *JobRepository) Get(ctx context.Context, id string) (*types.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get job", err)
	}
	return &j, nil
}

// JobFilter narrows List results. Zero-valued fields are ignored.
type JobFilter struct {
	Type   types.JobType
	Status types.JobStatus
	Cursor string
	Limit  int
}

// List returns a cursor-paginated page of jobs, newest first, for audit and
// inspection. The next-page token is derived from the sort key of the last
// row so the listing stays stable under concurrent inserts.
func (r *JobRepository) List(ctx context.Context, filter JobFilter) (types.ListResponse[types.Job], error) {
	var resp types.ListResponse[types.Job]

	limit := filter.Limit
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}

	after, err := types.DecodePageToken(filter.Cursor)
	if err != nil {
		return resp, types.NewAppError(types.ErrCodeValidationMissingField, "invalid page cursor", err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []any{}
	n := 0
	if filter.Type != "" {
		n++
		query += fmt.Sprintf(" AND type = $%d", n)
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(filter.Status))
	}
	if !after.IsZero() {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", n+1, n+2)
		args = append(args, after.CreatedAt, after.ID)
		n += 2
	}
	// Fetch one extra row to learn whether another page exists.
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", n+1)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return resp, types.NewAppError(types.ErrCodeInternalDB, "failed to list jobs", err)
	}
	defer rows.Close()

	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return resp, types.NewAppError(types.ErrCodeInternalDB, "failed to scan job row", err)
		}
		resp.Data = append(resp.Data, j)
	}
	if err := rows.Err(); err != nil {
		return resp, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate job rows", err)
	}

	if len(resp.Data) > limit {
		resp.Data = resp.Data[:limit]
		last := resp.Data[len(resp.Data)-1]
		resp.PageInfo = types.PageInfo{
			HasMore:    true,
			NextCursor: types.PageToken{CreatedAt: last.CreatedAt, ID: last.ID}.Encode(),
		}
	}
	return resp, nil
}

// ListDuePending returns up to limit PENDING jobs whose created_at has
// passed, oldest first. The dispatch loop calls this repeatedly until the
// queue drains.
func (r *JobRepository) ListDuePending(ctx context.Context, now time.Time, limit int) ([]types.Job, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE status = 'pending' AND created_at <= $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2`,
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list due jobs", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan job row", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate job rows", err)
	}
	return jobs, nil
}

// Claim atomically transitions a job from PENDING to EXECUTING. Returns true
// if this caller won the claim, false if another dispatcher already took it
// (or it was finalized meanwhile). RowsAffected carries the verdict, the same
// optimistic pattern as a conditional lock upsert.
func (r *JobRepository) Claim(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = 'executing' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim job", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Finalize persists the terminal status and result of an executed job.
// Called unconditionally by the dispatch loop after run returns, succeeds,
// cancels, or fails.
func (r *JobRepository) Finalize(ctx context.Context, id string, status types.JobStatus, result string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $2, result = $3 WHERE id = $1`,
		id,
		string(status),
		result,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finalize job", err)
	}
	return nil
}

// LatestForSubject returns the most recently created job of the given type
// for a subject, regardless of status. The digest sweep uses this to load the
// previous snapshot for delta tracking. Returns (nil, nil) when the subject
// has no job history.
func (r *JobRepository) LatestForSubject(ctx context.Context, jobType types.JobType, subject string) (*types.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE type = $1 AND subject = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		string(jobType),
		subject,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get latest job for subject", err)
	}
	return &j, nil
}
