package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"boardpulse/internal/types"
)

// ProjectRepository provides data access for the projects table and the
// per-project cards and columns tables the deletion cascade touches.
//
// Relevant columns:
//
//	projects(id, name, created_by, user_ids TEXT[], created_at)
//	cards(id, project_id, ...)
//	columns(id, project_id, ...)
//
// A user "has" a project when they created it or appear in user_ids; only
// created_by ownership makes a project subject to the deletion cascade.
type ProjectRepository struct {
	db DBTX
}

// NewProjectRepository creates a ProjectRepository backed by the given
// database connection (pool or transaction).
func NewProjectRepository(db DBTX) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, name, created_by, user_ids, created_at`

func scanProject(row pgx.Row) (types.Project, error) {
	var p types.Project
	err := row.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.UserIDs, &p.CreatedAt)
	return p, err
}

// OwnedBy returns a lazy cursor over the projects created by the given user.
// The delete-user-data job walks this cursor while deleting; keyset paging
// makes that safe, and re-issuing the call after a partial failure re-queries
// what is still owned, so the cascade converges under retries.
func (r *ProjectRepository) OwnedBy(ctx context.Context, userID string, pageSize int) *Cursor[types.Project] {
	return NewCursor(func(ctx context.Context, after types.PageToken, limit int) ([]types.Project, types.PageToken, error) {
		query := `SELECT ` + projectColumns + ` FROM projects WHERE created_by = $1`
		args := []any{userID}
		if !after.IsZero() {
			query += fmt.Sprintf(" AND (created_at, id) > ($%d, $%d)", len(args)+1, len(args)+2)
			args = append(args, after.CreatedAt, after.ID)
		}
		query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d", len(args)+1)
		args = append(args, limit)

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return nil, types.PageToken{}, types.NewAppError(types.ErrCodeInternalDB, "failed to query owned projects", err)
		}
		defer rows.Close()

		var projects []types.Project
		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return nil, types.PageToken{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan project row", err)
			}
			projects = append(projects, p)
		}
		if err := rows.Err(); err != nil {
			return nil, types.PageToken{}, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate project rows", err)
		}

		var last types.PageToken
		if len(projects) > 0 {
			tail := projects[len(projects)-1]
			last = types.PageToken{CreatedAt: tail.CreatedAt, ID: tail.ID}
		}
		return projects, last, nil
	}, pageSize)
}

// DeleteCascade removes one project and its cards and columns. Activities are
// deleted separately by the ActivityRepository so the caller controls the
// ordering of the walk. Each statement is idempotent: re-running after a
// partial failure deletes whatever remains and matches nothing else.
func (r *ProjectRepository) DeleteCascade(ctx context.Context, projectID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cards WHERE project_id = $1`, projectID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete project cards", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM columns WHERE project_id = $1`, projectID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete project columns", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete project", err)
	}
	return nil
}

// ForUser returns the projects the user has access to (creator or member),
// optionally restricted to the given project ids. The digest run uses this to
// load names for the email body.
func (r *ProjectRepository) ForUser(ctx context.Context, userID string, projectIDs []string) ([]types.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects
	 WHERE (created_by = $1 OR $1 = ANY(user_ids))`
	args := []any{userID}
	if len(projectIDs) > 0 {
		query += ` AND id = ANY($2)`
		args = append(args, projectIDs)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query user projects", err)
	}
	defer rows.Close()

	var projects []types.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan project row", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate project rows", err)
	}
	return projects, nil
}

// IDsForUser returns just the ids of the projects the user has access to.
func (r *ProjectRepository) IDsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM projects WHERE created_by = $1 OR $1 = ANY(user_ids)`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query user project ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan project id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate project ids", err)
	}
	return ids, nil
}
