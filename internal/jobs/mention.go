package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"boardpulse/internal/types"
)

// mentionPattern matches the @[Display Name](user_id) markup comments use for
// mentions; the single capture group is the mentioned user's id.
var mentionPattern = regexp.MustCompile(`@\[[^\]]+\]\(([^)]+)\)`)

// MentionUserIDs extracts the mentioned user ids from comment text, deduped
// in order of first appearance.
func MentionUserIDs(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var ids []string
	for _, m := range matches {
		id := m[1]
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// MentionJob owns the mention-notification kind. Jobs are enqueued eagerly by
// the comment service; the run phase re-resolves the comment so an edit or
// delete between enqueue and execution changes who, if anyone, gets emailed.
type MentionJob struct {
	users    UserDirectory
	comments CommentDirectory
	settings SettingDirectory
	mailer   Mailer
	logger   *slog.Logger
}

// NewMentionJob creates the mention-notification job service.
func NewMentionJob(users UserDirectory, comments CommentDirectory, settings SettingDirectory, mailer Mailer, logger *slog.Logger) *MentionJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MentionJob{
		users:    users,
		comments: comments,
		settings: settings,
		mailer:   mailer,
		logger:   logger,
	}
}

// Type implements Kind.
func (j *MentionJob) Type() types.JobType {
	return types.JobTypeMention
}

// Run implements Kind. The current comment text is the source of truth for
// the mention set; users removed from it, deleted users, the comment's own
// author, and users without the mentions opt-in are all skipped.
func (j *MentionJob) Run(ctx context.Context, job types.Job, _ time.Time) (Outcome, error) {
	var data types.MentionData
	if err := json.Unmarshal(job.Data, &data); err != nil {
		return Outcome{}, fmt.Errorf("decoding job data: %w", err)
	}

	comment, err := j.comments.Get(ctx, data.CommentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading comment %s: %w", data.CommentID, err)
	}
	if comment == nil || comment.DeletedAt != nil {
		return Outcome{Status: types.JobCancelled, Result: "comment no longer exists"}, nil
	}

	mentioned := MentionUserIDs(comment.Text)
	if len(mentioned) == 0 {
		return Outcome{Status: types.JobCancelled, Result: "no mentions left in comment"}, nil
	}

	recipients, err := j.users.ListByIDs(ctx, mentioned)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading mentioned users: %w", err)
	}

	authorName := "A teammate"
	if author, err := j.users.Get(ctx, comment.UserID); err != nil {
		return Outcome{}, fmt.Errorf("loading comment author %s: %w", comment.UserID, err)
	} else if author != nil {
		authorName = author.FirstName + " " + author.LastName
	}

	notified := 0
	for _, recipient := range recipients {
		if recipient.ID == comment.UserID || !recipient.EmailVerified {
			continue
		}
		setting, err := j.settings.Get(ctx, recipient.ID)
		if err != nil {
			return Outcome{}, fmt.Errorf("loading settings of user %s: %w", recipient.ID, err)
		}
		if setting == nil || !setting.Mentions {
			continue
		}
		if err := j.mailer.SendMentionNotification(ctx, recipient, authorName, *comment); err != nil {
			return Outcome{}, fmt.Errorf("sending mention notification to user %s: %w", recipient.ID, err)
		}
		notified++
	}

	return Outcome{Result: fmt.Sprintf("notified %d mentioned users", notified)}, nil
}
