package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service is the trigger facade the HTTP handlers and the sweeper daemon call
// into. Each trigger runs its creation sweep to completion first and then
// drains the queue, so jobs created by the trigger execute within the same
// invocation.
type Service struct {
	deleteNotification *DeleteNotificationJob
	deleteUserData     *DeleteUserDataJob
	digest             *DigestJob
	dispatcher         *Dispatcher
	autoDelete         bool
	logger             *slog.Logger
}

// NewService wires the trigger facade. autoDelete gates the retention
// trigger; when false TriggerAutoDelete is a logged no-op.
func NewService(deleteNotification *DeleteNotificationJob, deleteUserData *DeleteUserDataJob, digest *DigestJob, dispatcher *Dispatcher, autoDelete bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		deleteNotification: deleteNotification,
		deleteUserData:     deleteUserData,
		digest:             digest,
		dispatcher:         dispatcher,
		autoDelete:         autoDelete,
		logger:             logger,
	}
}

// TriggerDigest sweeps for due activity digests and executes everything in
// the queue. Returns the number of jobs the sweep put in flight and the
// number of jobs executed.
func (s *Service) TriggerDigest(ctx context.Context, now time.Time) (created, executed int, err error) {
	ids, err := s.digest.CreateJobs(ctx, now)
	if err != nil {
		return len(ids), 0, fmt.Errorf("creating digest jobs: %w", err)
	}
	executed, err = s.dispatcher.FindAndExecuteJobs(ctx, now)
	if err != nil {
		return len(ids), executed, fmt.Errorf("dispatching after digest sweep: %w", err)
	}
	return len(ids), executed, nil
}

// TriggerAutoDelete runs the retention pipeline: warning jobs first, then
// deletion jobs for users whose grace window elapsed, then a dispatch pass.
// Disabled deployments get a logged no-op so the endpoint stays safe to call.
func (s *Service) TriggerAutoDelete(ctx context.Context, now time.Time) (created, executed int, err error) {
	if !s.autoDelete {
		s.logger.WarnContext(ctx, "auto-delete trigger called but account auto-deletion is disabled")
		return 0, 0, nil
	}

	notifIDs, err := s.deleteNotification.CreateJobs(ctx, now)
	if err != nil {
		return len(notifIDs), 0, fmt.Errorf("creating delete-notification jobs: %w", err)
	}
	deleteIDs, err := s.deleteUserData.CreateJobs(ctx, now)
	created = len(notifIDs) + len(deleteIDs)
	if err != nil {
		return created, 0, fmt.Errorf("creating delete-user-data jobs: %w", err)
	}

	executed, err = s.dispatcher.FindAndExecuteJobs(ctx, now)
	if err != nil {
		return created, executed, fmt.Errorf("dispatching after retention sweep: %w", err)
	}
	return created, executed, nil
}

// Dispatch drains the queue of due jobs without running any creation sweep.
func (s *Service) Dispatch(ctx context.Context, now time.Time) (int, error) {
	return s.dispatcher.FindAndExecuteJobs(ctx, now)
}
