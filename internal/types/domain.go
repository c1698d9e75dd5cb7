// Package types defines the shared domain model for the boardpulse job
// service: the persisted job envelope, the collaborator entities it reads
// (users, projects, activities, comments, notification settings), and the
// cross-cutting error and pagination types.
package types

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a persisted job.
//
// A job is created PENDING, claimed into EXECUTING by the dispatch loop, and
// finalized exactly once into FINISHED, CANCELLED, or FAILED. Job rows are
// never deleted; the table is an append-mostly audit trail.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuting JobStatus = "executing"
	JobFinished  JobStatus = "finished"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// ActiveJobStatuses are the statuses that count toward the one-active-job-per
// (type, subject) invariant. FAILED jobs are deliberately excluded so a
// failed run does not block recreation on the next sweep.
var ActiveJobStatuses = []JobStatus{JobPending, JobExecuting}

// JobType discriminates which job kind owns a job record. The set is closed;
// adding a kind means adding a constant here and an entry in the jobs
// package registry.
type JobType string

const (
	JobTypeDeleteNotification JobType = "data-delete-notification"
	JobTypeDeleteUserData     JobType = "user-data-delete"
	JobTypeMention            JobType = "mention-notification"
	JobTypeProjectActivity    JobType = "project-activity-notification"
)

// Job is the persisted task envelope.
//
// CreatedAt doubles as the earliest-eligible-to-run marker: the dispatch loop
// only claims jobs whose created_at has passed, so a future timestamp defers
// execution. Subject is the dedup key (a user id or comment id, depending on
// the kind); a partial unique index on (type, subject) over active statuses
// makes the at-most-one-active-job invariant a database guarantee.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Status    JobStatus       `json:"status"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	Result    string          `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// UserJobData is the payload shared by the per-user retention jobs,
// data-delete-notification and user-data-delete.
type UserJobData struct {
	UserID string `json:"userId"`
}

// MentionData is the payload for mention-notification jobs.
type MentionData struct {
	CommentID string `json:"commentId"`
}

// ActivityRef is one project's latest-unseen-activity entry inside a digest
// job payload. Sent marks entries already reported by a previous digest so
// the run phase can exclude them from the email.
type ActivityRef struct {
	ActivityID string    `json:"activityId"`
	ProjectID  string    `json:"projectId"`
	Type       string    `json:"type"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	Sent       bool      `json:"sent,omitempty"`
}

// ProjectActivityData is the payload for project-activity-notification jobs.
// LatestActivityPerProject is the delta-tracking snapshot compared against
// the previous digest job for the same user.
type ProjectActivityData struct {
	UserID                   string        `json:"userId"`
	LatestActivityPerProject []ActivityRef `json:"latestActivityPerProject"`
}

// User is the external account entity consumed (not owned) by the job
// subsystem. The three deletion fields drive the retention pipeline:
//
//   - DeletePreventionDate is a keep-alive stamp refreshed whenever the user
//     takes an action that should postpone deletion.
//   - DeleteNotificationSentDate records when the warning email went out.
//   - IsDeleted is terminal.
type User struct {
	ID                         string     `json:"id"`
	Email                      string     `json:"email"`
	FirstName                  string     `json:"first_name"`
	LastName                   string     `json:"last_name"`
	EmailVerified              bool       `json:"email_verified"`
	IsDeleted                  bool       `json:"is_deleted"`
	CreatedAt                  time.Time  `json:"created_at"`
	DeletePreventionDate       *time.Time `json:"delete_prevention_date,omitempty"`
	DeleteNotificationSentDate *time.Time `json:"delete_notification_sent_date,omitempty"`
}

// Project is a board owned by a user and shared with members.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	UserIDs   []string  `json:"user_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity is a timestamped per-project event record. SeenBy lists the users
// who have viewed it; the digest job only reports activity unseen by the
// recipient and not authored by them.
type Activity struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Type      string    `json:"type"`
	CreatedBy string    `json:"created_by"`
	SeenBy    []string  `json:"seen_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a card comment. UserIDs is the mention set extracted from Text
// at write time; the mention job re-extracts from Text at run time so edits
// between enqueue and execution are honored.
type Comment struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	CardID    string     `json:"card_id"`
	UserID    string     `json:"user_id"`
	Text      string     `json:"text"`
	UserIDs   []string   `json:"user_ids"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// DigestEntry is one project line in an outbound activity digest email,
// resolved from an ActivityRef at send time.
type DigestEntry struct {
	ProjectID    string
	ProjectName  string
	ActivityType string
	OccurredAt   time.Time
}

// NotificationSetting holds a user's opt-in flags for outbound email.
// A missing row is treated as everything disabled.
type NotificationSetting struct {
	UserID          string `json:"user_id"`
	Mentions        bool   `json:"mentions"`
	ProjectActivity bool   `json:"project_activity"`
}
