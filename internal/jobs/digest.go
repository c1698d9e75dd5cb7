package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"boardpulse/internal/types"
)

// DigestJob owns the project-activity-notification kind: a per-user digest of
// the latest unseen activity in each of their projects.
//
// Delta tracking keeps digests quiet when nothing changed. The creation sweep
// snapshots the newest unseen activity per project and compares it against
// the snapshot stored in the user's previous digest job: entries whose latest
// activity was already reported carry over with sent=true, and a job is only
// created when at least one entry is unsent. The run phase emails exactly the
// unsent entries.
type DigestJob struct {
	jobs       JobStore
	users      UserDirectory
	projects   ProjectDirectory
	activities ActivityDirectory
	settings   SettingDirectory
	mailer     Mailer
	window     time.Duration
	pageSize   int
	logger     *slog.Logger
}

// NewDigestJob creates the project-activity-digest job service. window is
// both the look-back horizon for unseen activity and the staleness cutoff
// past which a pending digest is cancelled instead of sent.
func NewDigestJob(jobs JobStore, users UserDirectory, projects ProjectDirectory, activities ActivityDirectory, settings SettingDirectory, mailer Mailer, window time.Duration, pageSize int, logger *slog.Logger) *DigestJob {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &DigestJob{
		jobs:       jobs,
		users:      users,
		projects:   projects,
		activities: activities,
		settings:   settings,
		mailer:     mailer,
		window:     window,
		pageSize:   pageSize,
		logger:     logger,
	}
}

// Type implements Kind.
func (j *DigestJob) Type() types.JobType {
	return types.JobTypeProjectActivity
}

// CreateJobs sweeps all active users and enqueues a digest job for everyone
// with unreported activity inside the window. Per-user failures are logged
// and skipped so one bad account cannot starve the sweep.
func (j *DigestJob) CreateJobs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	cur := j.users.ListActive(ctx, j.pageSize)
	for cur.Next(ctx) {
		user := cur.Item()
		id, err := j.sweepUser(ctx, user, now)
		if err != nil {
			j.logger.ErrorContext(ctx, "failed to sweep user for digest",
				"user_id", user.ID,
				"error", err,
			)
			continue
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := cur.Err(); err != nil {
		return ids, fmt.Errorf("sweeping users for digests: %w", err)
	}
	return ids, nil
}

// sweepUser evaluates one user and enqueues a digest job when they have
// unreported activity. Returns "" when nothing warrants a digest.
func (j *DigestJob) sweepUser(ctx context.Context, user types.User, now time.Time) (string, error) {
	projectIDs, err := j.projects.IDsForUser(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("listing projects: %w", err)
	}
	if len(projectIDs) == 0 {
		return "", nil
	}

	since := now.Add(-j.window)
	refs, err := j.activities.LatestUnseenPerProject(ctx, user.ID, since, projectIDs)
	if err != nil {
		return "", fmt.Errorf("loading unseen activity: %w", err)
	}
	if len(refs) == 0 {
		return "", nil
	}

	previous, err := j.jobs.LatestForSubject(ctx, types.JobTypeProjectActivity, user.ID)
	if err != nil {
		return "", fmt.Errorf("loading previous digest: %w", err)
	}

	snapshot := markReported(refs, previous)
	unsent := 0
	for _, ref := range snapshot {
		if !ref.Sent {
			unsent++
		}
	}
	if unsent == 0 {
		return "", nil
	}

	id, created, err := j.jobs.Create(ctx, types.JobTypeProjectActivity, user.ID,
		types.ProjectActivityData{UserID: user.ID, LatestActivityPerProject: snapshot})
	if err != nil {
		return "", fmt.Errorf("creating digest job: %w", err)
	}
	if created {
		j.logger.InfoContext(ctx, "digest job created",
			"job_id", id,
			"user_id", user.ID,
			"unsent_projects", unsent,
		)
	}
	return id, nil
}

// markReported flags the entries of a fresh snapshot whose latest activity
// was already covered by the user's previous digest job. An entry carries
// over as sent when the previous snapshot holds the same activity for the
// same project and that activity was either sent by the previous run or
// already marked sent in its snapshot.
func markReported(refs []types.ActivityRef, previous *types.Job) []types.ActivityRef {
	if previous == nil {
		return refs
	}
	var prevData types.ProjectActivityData
	if err := json.Unmarshal(previous.Data, &prevData); err != nil {
		// Unreadable history never suppresses a digest.
		return refs
	}

	prevByProject := make(map[string]types.ActivityRef, len(prevData.LatestActivityPerProject))
	for _, ref := range prevData.LatestActivityPerProject {
		prevByProject[ref.ProjectID] = ref
	}

	out := make([]types.ActivityRef, len(refs))
	for i, ref := range refs {
		prev, ok := prevByProject[ref.ProjectID]
		if ok && prev.ActivityID == ref.ActivityID && (prev.Sent || previous.Status == types.JobFinished) {
			ref.Sent = true
		}
		out[i] = ref
	}
	return out
}

// Run implements Kind. A digest older than the window is cancelled rather
// than sent: its snapshot no longer reflects what the user has seen. Opt-out,
// an unverified email, or no unsent entries finish the job without a send.
func (j *DigestJob) Run(ctx context.Context, job types.Job, now time.Time) (Outcome, error) {
	if now.Sub(job.CreatedAt) > j.window {
		return Outcome{Status: types.JobCancelled, Result: "digest expired before dispatch"}, nil
	}

	var data types.ProjectActivityData
	if err := json.Unmarshal(job.Data, &data); err != nil {
		return Outcome{}, fmt.Errorf("decoding job data: %w", err)
	}

	user, err := j.users.Get(ctx, data.UserID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading user %s: %w", data.UserID, err)
	}
	if user == nil || user.IsDeleted {
		return Outcome{Status: types.JobCancelled, Result: "user no longer exists"}, nil
	}

	var unsent []types.ActivityRef
	for _, ref := range data.LatestActivityPerProject {
		if !ref.Sent {
			unsent = append(unsent, ref)
		}
	}
	if len(unsent) == 0 {
		return Outcome{Result: "skipped: nothing unreported"}, nil
	}

	if !user.EmailVerified {
		return Outcome{Result: "skipped: email not verified"}, nil
	}
	setting, err := j.settings.Get(ctx, user.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading settings of user %s: %w", user.ID, err)
	}
	if setting == nil || !setting.ProjectActivity {
		return Outcome{Result: "skipped: project activity notifications disabled"}, nil
	}

	projectIDs := make([]string, len(unsent))
	for i, ref := range unsent {
		projectIDs[i] = ref.ProjectID
	}
	accessible, err := j.projects.ForUser(ctx, user.ID, projectIDs)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading projects of user %s: %w", user.ID, err)
	}
	nameByID := make(map[string]string, len(accessible))
	for _, p := range accessible {
		nameByID[p.ID] = p.Name
	}

	var entries []types.DigestEntry
	for _, ref := range unsent {
		name, ok := nameByID[ref.ProjectID]
		if !ok {
			// Project deleted or access revoked since the sweep.
			continue
		}
		entries = append(entries, types.DigestEntry{
			ProjectID:    ref.ProjectID,
			ProjectName:  name,
			ActivityType: ref.Type,
			OccurredAt:   ref.CreatedAt,
		})
	}
	if len(entries) == 0 {
		return Outcome{Result: "skipped: no accessible projects left"}, nil
	}

	if err := j.mailer.SendActivityDigest(ctx, *user, entries); err != nil {
		return Outcome{}, fmt.Errorf("sending digest to user %s: %w", user.ID, err)
	}

	return Outcome{Result: fmt.Sprintf("digest sent covering %d projects", len(entries))}, nil
}
