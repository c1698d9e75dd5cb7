package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"boardpulse/internal/types"
)

// CommentService is the write path for card comments. It extracts the mention
// set from the text at write time and eagerly enqueues a mention-notification
// job keyed on the comment id, so an edit while a job is still pending folds
// into the existing one instead of double-notifying.
type CommentService struct {
	jobs     JobStore
	comments CommentDirectory
	logger   *slog.Logger
}

// NewCommentService creates the comment write service.
func NewCommentService(jobs JobStore, comments CommentDirectory, logger *slog.Logger) *CommentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommentService{
		jobs:     jobs,
		comments: comments,
		logger:   logger,
	}
}

// CreateComment stores a new comment and enqueues a mention job when the text
// mentions anyone. A failed enqueue is logged, not returned: the comment
// write must not fail because notification plumbing hiccuped.
func (s *CommentService) CreateComment(ctx context.Context, comment types.Comment) (*types.Comment, error) {
	comment.UserIDs = MentionUserIDs(comment.Text)

	stored, err := s.comments.Create(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.enqueueMentionJob(ctx, stored.ID, stored.UserIDs)
	return stored, nil
}

// UpdateComment replaces a comment's text, refreshes its mention set, and
// enqueues a mention job for any newly mentioned users.
func (s *CommentService) UpdateComment(ctx context.Context, id, text string) error {
	userIDs := MentionUserIDs(text)
	if err := s.comments.UpdateText(ctx, id, text, userIDs); err != nil {
		return fmt.Errorf("updating comment %s: %w", id, err)
	}

	s.enqueueMentionJob(ctx, id, userIDs)
	return nil
}

func (s *CommentService) enqueueMentionJob(ctx context.Context, commentID string, userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	id, created, err := s.jobs.Create(ctx, types.JobTypeMention, commentID,
		types.MentionData{CommentID: commentID})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue mention job",
			"comment_id", commentID,
			"error", err,
		)
		return
	}
	if created {
		s.logger.InfoContext(ctx, "mention job created",
			"job_id", id,
			"comment_id", commentID,
			"mentioned", len(userIDs),
		)
	}
}
