package db

import (
	"context"
	"time"

	"boardpulse/internal/types"
)

// ActivityRepository provides data access for the activities table, the
// per-project event log consumed by the digest sweep and removed by the
// deletion cascade.
//
// Relevant columns:
//
//	activities(id, project_id, type, created_by, seen_by TEXT[], created_at)
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository creates an ActivityRepository backed by the given
// database connection (pool or transaction).
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// LatestUnseenPerProject returns, for each of the given projects, the single
// newest activity created after since that the user neither authored nor has
// seen. DISTINCT ON keeps only the newest row per project, which is exactly
// the one-entry-per-project snapshot the digest payload stores.
func (r *ActivityRepository) LatestUnseenPerProject(ctx context.Context, userID string, since time.Time, projectIDs []string) ([]types.ActivityRef, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT ON (project_id) id, project_id, type, created_by, created_at
		 FROM activities
		 WHERE project_id = ANY($1)
		   AND created_at > $2
		   AND created_by <> $3
		   AND NOT ($3 = ANY(seen_by))
		 ORDER BY project_id, created_at DESC, id DESC`,
		projectIDs,
		since,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query latest unseen activity", err)
	}
	defer rows.Close()

	var refs []types.ActivityRef
	for rows.Next() {
		var ref types.ActivityRef
		if err := rows.Scan(&ref.ActivityID, &ref.ProjectID, &ref.Type, &ref.CreatedBy, &ref.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan activity row", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate activity rows", err)
	}
	return refs, nil
}

// DeleteForProject removes all activity rows of a project. Part of the
// deletion cascade; idempotent by construction.
func (r *ActivityRepository) DeleteForProject(ctx context.Context, projectID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM activities WHERE project_id = $1`, projectID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete project activities", err)
	}
	return nil
}
