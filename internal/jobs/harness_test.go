package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"boardpulse/internal/db"
	"boardpulse/internal/types"
)

// --- In-memory job store ---

// memJobStore is an in-memory JobStore honoring the same active-subject dedup
// the database enforces with its partial unique index.
type memJobStore struct {
	seq       int
	jobs      []*types.Job
	createErr error
	claimErr  error
	// clock stamps created_at on inserts; tests advance it between sweeps.
	clock time.Time
}

func newMemJobStore(clock time.Time) *memJobStore {
	return &memJobStore{clock: clock}
}

func (s *memJobStore) Create(_ context.Context, jobType types.JobType, subject string, data any) (string, bool, error) {
	if s.createErr != nil {
		return "", false, s.createErr
	}
	for _, j := range s.jobs {
		if j.Type == jobType && j.Subject == subject &&
			(j.Status == types.JobPending || j.Status == types.JobExecuting) {
			return j.ID, false, nil
		}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", false, err
	}
	s.seq++
	job := &types.Job{
		ID:        fmt.Sprintf("job_%d", s.seq),
		Type:      jobType,
		Status:    types.JobPending,
		Subject:   subject,
		Data:      payload,
		CreatedAt: s.clock,
	}
	s.jobs = append(s.jobs, job)
	return job.ID, true, nil
}

func (s *memJobStore) ListDuePending(_ context.Context, now time.Time, limit int) ([]types.Job, error) {
	var due []types.Job
	for _, j := range s.jobs {
		if j.Status == types.JobPending && !j.CreatedAt.After(now) {
			due = append(due, *j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if !due[i].CreatedAt.Equal(due[k].CreatedAt) {
			return due[i].CreatedAt.Before(due[k].CreatedAt)
		}
		return due[i].ID < due[k].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memJobStore) Claim(_ context.Context, id string) (bool, error) {
	if s.claimErr != nil {
		return false, s.claimErr
	}
	for _, j := range s.jobs {
		if j.ID == id && j.Status == types.JobPending {
			j.Status = types.JobExecuting
			return true, nil
		}
	}
	return false, nil
}

func (s *memJobStore) Finalize(_ context.Context, id string, status types.JobStatus, result string) error {
	for _, j := range s.jobs {
		if j.ID == id {
			j.Status = status
			j.Result = result
			return nil
		}
	}
	return fmt.Errorf("job %s not found", id)
}

func (s *memJobStore) LatestForSubject(_ context.Context, jobType types.JobType, subject string) (*types.Job, error) {
	var latest *types.Job
	for _, j := range s.jobs {
		if j.Type != jobType || j.Subject != subject {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memJobStore) byID(id string) *types.Job {
	for _, j := range s.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// --- Directory mocks ---

// cursorOver wraps a snapshot-producing func in a db.Cursor, paging the same
// way the repositories do.
func cursorOver[T any](snapshot func() []T, key func(T) types.PageToken, pageSize int) *db.Cursor[T] {
	return db.NewCursor(func(_ context.Context, after types.PageToken, limit int) ([]T, types.PageToken, error) {
		items := snapshot()
		start := 0
		if !after.IsZero() {
			for i, item := range items {
				if key(item).ID == after.ID {
					start = i + 1
				}
			}
		}
		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		page := items[start:end]
		var last types.PageToken
		if len(page) > 0 {
			last = key(page[len(page)-1])
		}
		return page, last, nil
	}, pageSize)
}

type setNotifiedCall struct {
	UserID string
	SentAt time.Time
}

type mockUsers struct {
	users    map[string]*types.User
	notified []setNotifiedCall
	deleted  []string
}

func newMockUsers(users ...types.User) *mockUsers {
	m := &mockUsers{users: make(map[string]*types.User, len(users))}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUsers) Get(_ context.Context, id string) (*types.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUsers) ListByIDs(_ context.Context, ids []string) ([]types.User, error) {
	var out []types.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok && !u.IsDeleted {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUsers) sorted(match func(*types.User) bool) []types.User {
	var out []types.User
	for _, u := range m.users {
		if !u.IsDeleted && match(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

func userKey(u types.User) types.PageToken {
	return types.PageToken{CreatedAt: u.CreatedAt, ID: u.ID}
}

func (m *mockUsers) FindNotificationDue(_ context.Context, cutoff time.Time, pageSize int) *db.Cursor[types.User] {
	return cursorOver(func() []types.User {
		return m.sorted(func(u *types.User) bool {
			if u.DeleteNotificationSentDate != nil && !u.DeleteNotificationSentDate.Before(cutoff) {
				return false
			}
			if u.DeletePreventionDate != nil {
				return u.DeletePreventionDate.Before(cutoff)
			}
			return u.CreatedAt.Before(cutoff)
		})
	}, userKey, pageSize)
}

func (m *mockUsers) FindDeletionDue(_ context.Context, deletionOld, notificationOld time.Time, pageSize int) *db.Cursor[types.User] {
	return cursorOver(func() []types.User {
		return m.sorted(func(u *types.User) bool {
			sent := u.DeleteNotificationSentDate
			if sent == nil || !sent.After(deletionOld) || !sent.Before(notificationOld) {
				return false
			}
			return u.DeletePreventionDate == nil || u.DeletePreventionDate.Before(deletionOld)
		})
	}, userKey, pageSize)
}

func (m *mockUsers) ListActive(_ context.Context, pageSize int) *db.Cursor[types.User] {
	return cursorOver(func() []types.User {
		return m.sorted(func(*types.User) bool { return true })
	}, userKey, pageSize)
}

func (m *mockUsers) SetDeletionNotified(_ context.Context, id string, sentAt time.Time) error {
	m.notified = append(m.notified, setNotifiedCall{UserID: id, SentAt: sentAt})
	if u, ok := m.users[id]; ok {
		u.DeletePreventionDate = nil
		t := sentAt
		u.DeleteNotificationSentDate = &t
	}
	return nil
}

func (m *mockUsers) MarkDeleted(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if u, ok := m.users[id]; ok {
		u.IsDeleted = true
	}
	return nil
}

type mockProjects struct {
	projects []types.Project
	cascaded []string
}

func (m *mockProjects) OwnedBy(_ context.Context, userID string, pageSize int) *db.Cursor[types.Project] {
	return cursorOver(func() []types.Project {
		var out []types.Project
		for _, p := range m.projects {
			if p.CreatedBy == userID {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, k int) bool {
			if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
				return out[i].CreatedAt.Before(out[k].CreatedAt)
			}
			return out[i].ID < out[k].ID
		})
		return out
	}, func(p types.Project) types.PageToken {
		return types.PageToken{CreatedAt: p.CreatedAt, ID: p.ID}
	}, pageSize)
}

func (m *mockProjects) DeleteCascade(_ context.Context, projectID string) error {
	m.cascaded = append(m.cascaded, projectID)
	kept := m.projects[:0]
	for _, p := range m.projects {
		if p.ID != projectID {
			kept = append(kept, p)
		}
	}
	m.projects = kept
	return nil
}

func (m *mockProjects) ForUser(_ context.Context, userID string, projectIDs []string) ([]types.Project, error) {
	wanted := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}
	var out []types.Project
	for _, p := range m.projects {
		if len(projectIDs) > 0 && !wanted[p.ID] {
			continue
		}
		if p.CreatedBy == userID || contains(p.UserIDs, userID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProjects) IDsForUser(_ context.Context, userID string) ([]string, error) {
	var ids []string
	for _, p := range m.projects {
		if p.CreatedBy == userID || contains(p.UserIDs, userID) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

type mockActivities struct {
	activities []types.Activity
	deletedFor []string
}

func (m *mockActivities) LatestUnseenPerProject(_ context.Context, userID string, since time.Time, projectIDs []string) ([]types.ActivityRef, error) {
	wanted := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}
	latest := make(map[string]types.Activity)
	for _, a := range m.activities {
		if !wanted[a.ProjectID] || !a.CreatedAt.After(since) {
			continue
		}
		if a.CreatedBy == userID || contains(a.SeenBy, userID) {
			continue
		}
		if cur, ok := latest[a.ProjectID]; !ok || a.CreatedAt.After(cur.CreatedAt) {
			latest[a.ProjectID] = a
		}
	}
	var refs []types.ActivityRef
	for _, a := range latest {
		refs = append(refs, types.ActivityRef{
			ActivityID: a.ID,
			ProjectID:  a.ProjectID,
			Type:       a.Type,
			CreatedBy:  a.CreatedBy,
			CreatedAt:  a.CreatedAt,
		})
	}
	sort.Slice(refs, func(i, k int) bool { return refs[i].ProjectID < refs[k].ProjectID })
	return refs, nil
}

func (m *mockActivities) DeleteForProject(_ context.Context, projectID string) error {
	m.deletedFor = append(m.deletedFor, projectID)
	kept := m.activities[:0]
	for _, a := range m.activities {
		if a.ProjectID != projectID {
			kept = append(kept, a)
		}
	}
	m.activities = kept
	return nil
}

type mockComments struct {
	seq      int
	comments map[string]*types.Comment
}

func newMockComments(comments ...types.Comment) *mockComments {
	m := &mockComments{comments: make(map[string]*types.Comment, len(comments))}
	for i := range comments {
		c := comments[i]
		m.comments[c.ID] = &c
	}
	return m
}

func (m *mockComments) Get(_ context.Context, id string) (*types.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockComments) Create(_ context.Context, c types.Comment) (*types.Comment, error) {
	m.seq++
	c.ID = fmt.Sprintf("comment_%d", m.seq)
	c.CreatedAt = time.Now().UTC()
	m.comments[c.ID] = &c
	cp := c
	return &cp, nil
}

func (m *mockComments) UpdateText(_ context.Context, id, text string, userIDs []string) error {
	c, ok := m.comments[id]
	if !ok {
		return fmt.Errorf("comment %s not found", id)
	}
	c.Text = text
	c.UserIDs = userIDs
	return nil
}

type mockSettings struct {
	settings map[string]*types.NotificationSetting
}

func newMockSettings(settings ...types.NotificationSetting) *mockSettings {
	m := &mockSettings{settings: make(map[string]*types.NotificationSetting, len(settings))}
	for i := range settings {
		s := settings[i]
		m.settings[s.UserID] = &s
	}
	return m
}

func (m *mockSettings) Get(_ context.Context, userID string) (*types.NotificationSetting, error) {
	s, ok := m.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// --- Mailer mock ---

type warningMail struct {
	UserID   string
	DeleteAt time.Time
}

type mentionMail struct {
	UserID     string
	AuthorName string
	CommentID  string
}

type digestMail struct {
	UserID  string
	Entries []types.DigestEntry
}

type mockMailer struct {
	warnings []warningMail
	mentions []mentionMail
	digests  []digestMail
	err      error
}

func (m *mockMailer) SendDeletionWarning(_ context.Context, recipient types.User, deleteAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.warnings = append(m.warnings, warningMail{UserID: recipient.ID, DeleteAt: deleteAt})
	return nil
}

func (m *mockMailer) SendMentionNotification(_ context.Context, recipient types.User, authorName string, comment types.Comment) error {
	if m.err != nil {
		return m.err
	}
	m.mentions = append(m.mentions, mentionMail{UserID: recipient.ID, AuthorName: authorName, CommentID: comment.ID})
	return nil
}

func (m *mockMailer) SendActivityDigest(_ context.Context, recipient types.User, entries []types.DigestEntry) error {
	if m.err != nil {
		return m.err
	}
	m.digests = append(m.digests, digestMail{UserID: recipient.ID, Entries: entries})
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// mustJSON marshals a payload for fixture job rows.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
