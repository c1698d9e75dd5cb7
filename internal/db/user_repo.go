package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"boardpulse/internal/types"
)

// UserRepository provides data access for the users table. The job service
// consumes user rows, it does not own them; the web application writes most
// columns. The three deletion columns are the only ones this service mutates.
//
// Relevant columns:
//
//	id, email, first_name, last_name, email_verified, is_deleted, created_at,
//	delete_prevention_date TIMESTAMPTZ NULL,
//	delete_notification_sent_date TIMESTAMPTZ NULL
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, email_verified, is_deleted,
	created_at, delete_prevention_date, delete_notification_sent_date`

func scanUser(row pgx.Row) (types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.EmailVerified,
		&u.IsDeleted, &u.CreatedAt, &u.DeletePreventionDate, &u.DeleteNotificationSentDate)
	return u, err
}

// Get fetches a single user by id. Returns (nil, nil) when no row exists;
// job runs treat a vanished user as a no-op, not an error.
func (r *UserRepository) Get(ctx context.Context, id string) (*types.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get user", err)
	}
	return &u, nil
}

// ListByIDs fetches the users with the given ids. Missing ids are silently
// absent from the result; the mention job uses this to drop users deleted
// between enqueue and run.
func (r *UserRepository) ListByIDs(ctx context.Context, ids []string) ([]types.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) AND is_deleted = FALSE`,
		ids,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list users", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user row", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate user rows", err)
	}
	return users, nil
}

// userCursor wraps a keyset-paginated user query in a Cursor.
func (r *UserRepository) userCursor(base string, baseArgs []any, pageSize int) *Cursor[types.User] {
	return NewCursor(func(ctx context.Context, after types.PageToken, limit int) ([]types.User, types.PageToken, error) {
		query := base
		args := append([]any(nil), baseArgs...)
		if !after.IsZero() {
			query += fmt.Sprintf(" AND (created_at, id) > ($%d, $%d)", len(args)+1, len(args)+2)
			args = append(args, after.CreatedAt, after.ID)
		}
		query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT $%d", len(args)+1)
		args = append(args, limit)

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			return nil, types.PageToken{}, types.NewAppError(types.ErrCodeInternalDB, "failed to query users", err)
		}
		defer rows.Close()

		var users []types.User
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return nil, types.PageToken{}, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user row", err)
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			return nil, types.PageToken{}, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate user rows", err)
		}

		var last types.PageToken
		if len(users) > 0 {
			tail := users[len(users)-1]
			last = types.PageToken{CreatedAt: tail.CreatedAt, ID: tail.ID}
		}
		return users, last, nil
	}, pageSize)
}

// FindNotificationDue returns a lazy cursor over users due a deletion warning
// email. cutoff is the aging threshold (midnight UTC minus
// MaxUserAgedDays-DaysBetweenNotificationAndDelete days); eligibility
// branches mirror the retention policy:
//
//   - keep-alive stamp exists but is older than the cutoff, and either no
//     warning was ever sent or the last warning is itself a full cycle old;
//   - no keep-alive stamp, account older than the cutoff, and the same rule
//     applied to the last warning date when present.
func (r *UserRepository) FindNotificationDue(ctx context.Context, cutoff time.Time, pageSize int) *Cursor[types.User] {
	base := `SELECT ` + userColumns + ` FROM users
	 WHERE is_deleted = FALSE AND (
	       (delete_prevention_date IS NOT NULL AND delete_prevention_date < $1
	        AND delete_notification_sent_date IS NULL)
	    OR (delete_prevention_date IS NOT NULL AND delete_prevention_date < $1
	        AND delete_notification_sent_date < $1)
	    OR (delete_prevention_date IS NULL AND delete_notification_sent_date IS NOT NULL
	        AND delete_notification_sent_date < $1 AND created_at < $1)
	    OR (delete_prevention_date IS NULL AND delete_notification_sent_date IS NULL
	        AND created_at < $1)
	 )`
	return r.userCursor(base, []any{cutoff}, pageSize)
}

// FindDeletionDue returns a lazy cursor over users whose warning grace window
// has elapsed. The warning date must fall strictly inside
// (deletionOld, notificationOld): notified long enough ago that the grace
// period passed, but not so long ago that an older notification cycle would
// double-match. A keep-alive stamp newer than deletionOld excludes the user.
func (r *UserRepository) FindDeletionDue(ctx context.Context, deletionOld, notificationOld time.Time, pageSize int) *Cursor[types.User] {
	base := `SELECT ` + userColumns + ` FROM users
	 WHERE is_deleted = FALSE
	   AND delete_notification_sent_date IS NOT NULL
	   AND delete_notification_sent_date < $2
	   AND delete_notification_sent_date > $1
	   AND (delete_prevention_date IS NULL OR delete_prevention_date < $1)`
	return r.userCursor(base, []any{deletionOld, notificationOld}, pageSize)
}

// ListActive returns a lazy cursor over all non-deleted users; the digest
// sweep walks this once per trigger.
func (r *UserRepository) ListActive(ctx context.Context, pageSize int) *Cursor[types.User] {
	return r.userCursor(`SELECT `+userColumns+` FROM users WHERE is_deleted = FALSE`, nil, pageSize)
}

// SetDeletionNotified stamps the warning-sent date and clears any keep-alive
// stamp, removing the user from future needs-notification queries until a new
// keep-alive or the next cycle.
func (r *UserRepository) SetDeletionNotified(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users
		 SET delete_prevention_date = NULL, delete_notification_sent_date = $2
		 WHERE id = $1`,
		id,
		sentAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to stamp deletion notification", err)
	}
	return nil
}

// MarkDeleted sets the terminal deletion flag on a user.
func (r *UserRepository) MarkDeleted(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET is_deleted = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark user deleted", err)
	}
	return nil
}
