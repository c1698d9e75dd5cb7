package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"boardpulse/internal/types"
)

func digestFixture(now time.Time) (*memJobStore, *mockUsers, *mockProjects, *mockActivities, *mockSettings, *mockMailer) {
	store := newMemJobStore(now)
	users := newMockUsers(types.User{
		ID:            "user_1",
		Email:         "one@example.com",
		EmailVerified: true,
		CreatedAt:     now.AddDate(0, 0, -100),
	})
	projects := &mockProjects{projects: []types.Project{
		{ID: "project_a", Name: "Alpha", CreatedBy: "user_1", CreatedAt: now.AddDate(0, 0, -30)},
		{ID: "project_b", Name: "Beta", CreatedBy: "user_2", UserIDs: []string{"user_1"}, CreatedAt: now.AddDate(0, 0, -30)},
	}}
	activities := &mockActivities{activities: []types.Activity{
		{ID: "activity_1", ProjectID: "project_a", Type: "CARD_MOVED", CreatedBy: "user_2", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "activity_2", ProjectID: "project_b", Type: "COMMENT_ADDED", CreatedBy: "user_3", CreatedAt: now.Add(-time.Hour)},
	}}
	settings := newMockSettings(types.NotificationSetting{UserID: "user_1", ProjectActivity: true})
	return store, users, projects, activities, settings, &mockMailer{}
}

func newTestDigestJob(store *memJobStore, users *mockUsers, projects *mockProjects, activities *mockActivities, settings *mockSettings, mailer *mockMailer) *DigestJob {
	return NewDigestJob(store, users, projects, activities, settings, mailer, 24*time.Hour, 50, nil)
}

func TestDigestJob_CreateJobs_SnapshotsUnseenActivity(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store, users, projects, activities, settings, mailer := digestFixture(now)
	job := newTestDigestJob(store, users, projects, activities, settings, mailer)

	ids, err := job.CreateJobs(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("created %d jobs, want 1", len(ids))
	}

	var data types.ProjectActivityData
	if err := decodeJobData(store.byID(ids[0]), &data); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if len(data.LatestActivityPerProject) != 2 {
		t.Fatalf("snapshot holds %d entries, want 2: %+v", len(data.LatestActivityPerProject), data)
	}
	for _, ref := range data.LatestActivityPerProject {
		if ref.Sent {
			t.Errorf("entry %s marked sent on first digest", ref.ProjectID)
		}
	}
}

func decodeJobData(job *types.Job, dst any) error {
	return json.Unmarshal(job.Data, dst)
}

func TestDigestJob_CreateJobs_SuppressesUnchangedActivity(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store, users, projects, activities, settings, mailer := digestFixture(now)
	job := newTestDigestJob(store, users, projects, activities, settings, mailer)
	dispatcher := NewDispatcher(store, NewRegistry(job), 100, nil)

	// First cycle: sweep and execute, digest goes out.
	if _, err := job.CreateJobs(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dispatcher.FindAndExecuteJobs(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mailer.digests) != 1 {
		t.Fatalf("first cycle sent %d digests, want 1", len(mailer.digests))
	}

	// Second cycle a few hours later: the same activities are still the
	// newest unseen ones, so no new job may be created.
	later := now.Add(6 * time.Hour)
	store.clock = later
	ids, err := job.CreateJobs(context.Background(), later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("second sweep created %d jobs, want 0 (nothing new)", len(ids))
	}

	// Fresh activity in one project revives the digest for that project only.
	activities.activities = append(activities.activities, types.Activity{
		ID: "activity_3", ProjectID: "project_a", Type: "CARD_ADDED", CreatedBy: "user_2", CreatedAt: later.Add(-time.Minute),
	})
	ids, err = job.CreateJobs(context.Background(), later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("third sweep created %d jobs, want 1", len(ids))
	}
	var data types.ProjectActivityData
	if err := decodeJobData(store.byID(ids[0]), &data); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	unsent := map[string]bool{}
	for _, ref := range data.LatestActivityPerProject {
		if !ref.Sent {
			unsent[ref.ProjectID] = true
		}
	}
	if len(unsent) != 1 || !unsent["project_a"] {
		t.Errorf("unsent projects %v, want only project_a", unsent)
	}
}

func TestDigestJob_Run_EmailsOnlyUnsentEntries(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store, users, projects, activities, settings, mailer := digestFixture(now)
	job := newTestDigestJob(store, users, projects, activities, settings, mailer)

	record := types.Job{
		ID:        "job_x",
		Type:      types.JobTypeProjectActivity,
		Subject:   "user_1",
		CreatedAt: now.Add(-time.Hour),
		Data: mustJSON(types.ProjectActivityData{
			UserID: "user_1",
			LatestActivityPerProject: []types.ActivityRef{
				{ActivityID: "activity_1", ProjectID: "project_a", Type: "CARD_MOVED", CreatedAt: now.Add(-2 * time.Hour), Sent: true},
				{ActivityID: "activity_2", ProjectID: "project_b", Type: "COMMENT_ADDED", CreatedAt: now.Add(-time.Hour)},
			},
		}),
	}
	outcome, err := job.Run(context.Background(), record, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != "" {
		t.Fatalf("got status %q, want empty (finished)", outcome.Status)
	}
	if len(mailer.digests) != 1 {
		t.Fatalf("sent %d digests, want 1", len(mailer.digests))
	}
	entries := mailer.digests[0].Entries
	if len(entries) != 1 || entries[0].ProjectID != "project_b" {
		t.Errorf("digest entries %+v, want only the unsent project_b", entries)
	}
	if entries[0].ProjectName != "Beta" {
		t.Errorf("project name %q, want Beta", entries[0].ProjectName)
	}
}

func TestDigestJob_Run_CancelsWhenStale(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store, users, projects, activities, settings, mailer := digestFixture(now)
	job := newTestDigestJob(store, users, projects, activities, settings, mailer)

	record := types.Job{
		ID:        "job_x",
		Type:      types.JobTypeProjectActivity,
		Subject:   "user_1",
		CreatedAt: now.Add(-25 * time.Hour),
		Data:      mustJSON(types.ProjectActivityData{UserID: "user_1"}),
	}
	outcome, err := job.Run(context.Background(), record, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != types.JobCancelled {
		t.Errorf("got status %q, want cancelled", outcome.Status)
	}
	if len(mailer.digests) != 0 {
		t.Errorf("no digest expected, got %+v", mailer.digests)
	}
}

func TestDigestJob_Run_SkipsWhenSettingDisabled(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store, users, projects, activities, _, mailer := digestFixture(now)
	settings := newMockSettings() // no row: everything off
	job := newTestDigestJob(store, users, projects, activities, settings, mailer)

	record := types.Job{
		ID:        "job_x",
		Type:      types.JobTypeProjectActivity,
		Subject:   "user_1",
		CreatedAt: now.Add(-time.Hour),
		Data: mustJSON(types.ProjectActivityData{
			UserID: "user_1",
			LatestActivityPerProject: []types.ActivityRef{
				{ActivityID: "activity_1", ProjectID: "project_a"},
			},
		}),
	}
	outcome, err := job.Run(context.Background(), record, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != "" {
		t.Errorf("got status %q, want empty (finished skip)", outcome.Status)
	}
	if len(mailer.digests) != 0 {
		t.Errorf("no digest expected, got %+v", mailer.digests)
	}
}

func TestDigestJob_Run_SkipsUnverifiedEmail(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	store, users, projects, activities, settings, mailer := digestFixture(now)
	users.users["user_1"].EmailVerified = false
	job := newTestDigestJob(store, users, projects, activities, settings, mailer)

	record := types.Job{
		ID:        "job_x",
		Type:      types.JobTypeProjectActivity,
		Subject:   "user_1",
		CreatedAt: now.Add(-time.Hour),
		Data: mustJSON(types.ProjectActivityData{
			UserID: "user_1",
			LatestActivityPerProject: []types.ActivityRef{
				{ActivityID: "activity_1", ProjectID: "project_a"},
			},
		}),
	}
	outcome, err := job.Run(context.Background(), record, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != "" {
		t.Errorf("got status %q, want empty (finished skip)", outcome.Status)
	}
	if len(mailer.digests) != 0 {
		t.Errorf("no digest expected, got %+v", mailer.digests)
	}
}
