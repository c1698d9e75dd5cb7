package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"boardpulse/internal/types"
)

// CommentRepository provides data access for the comments table. Comments are
// written by the comment service (which extracts the mention set from the
// text) and re-read by the mention job at run time.
//
// Relevant columns:
//
//	comments(id, project_id, card_id, user_id, text, user_ids TEXT[],
//	         created_at, updated_at TIMESTAMPTZ NULL, deleted_at TIMESTAMPTZ NULL)
type CommentRepository struct {
	db DBTX
}

// NewCommentRepository creates a CommentRepository backed by the given
// database connection (pool or transaction).
func NewCommentRepository(db DBTX) *CommentRepository {
	return &CommentRepository{db: db}
}

const commentColumns = `id, project_id, card_id, user_id, text, user_ids,
	created_at, updated_at, deleted_at`

func scanComment(row pgx.Row) (types.Comment, error) {
	var c types.Comment
	err := row.Scan(&c.ID, &c.ProjectID, &c.CardID, &c.UserID, &c.Text, &c.UserIDs,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

// Get fetches a single comment by id. Returns (nil, nil) when no row exists.
func (r *CommentRepository) Get(ctx context.Context, id string) (*types.Comment, error) {
	c, err := scanComment(r.db.QueryRow(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get comment", err)
	}
	return &c, nil
}

// Create inserts a comment and returns the stored row. The caller supplies
// the mention set (user_ids) extracted from the text.
func (r *CommentRepository) Create(ctx context.Context, c types.Comment) (*types.Comment, error) {
	c.ID = "comment_" + uuid.NewString()
	c.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO comments (id, project_id, card_id, user_id, text, user_ids, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ProjectID, c.CardID, c.UserID, c.Text, c.UserIDs, c.CreatedAt,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create comment", err)
	}
	return &c, nil
}

// UpdateText replaces a comment's text and mention set and stamps updated_at.
func (r *CommentRepository) UpdateText(ctx context.Context, id, text string, userIDs []string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE comments SET text = $2, user_ids = $3, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id, text, userIDs,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update comment", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundComment, "comment not found or deleted", nil)
	}
	return nil
}
