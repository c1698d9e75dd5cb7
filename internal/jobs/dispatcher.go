package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"boardpulse/internal/types"
)

// Dispatcher drains the queue of due PENDING jobs: claim, execute via the
// registered kind, finalize. Jobs run sequentially; one trigger processes the
// whole backlog in batches.
type Dispatcher struct {
	jobs      JobStore
	registry  *Registry
	batchSize int
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given store and registry.
func NewDispatcher(jobs JobStore, registry *Registry, batchSize int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		jobs:      jobs,
		registry:  registry,
		batchSize: batchSize,
		logger:    logger,
	}
}

// FindAndExecuteJobs claims and runs every job due at the given reference
// time. Returns the number of jobs finalized by this call.
//
// A job whose claim is lost was taken by a concurrent dispatcher and is
// skipped silently. A failing job is finalized FAILED and never blocks the
// rest of the batch. Because executed jobs leave PENDING, each batch query
// naturally advances; the batchSuccesses guard breaks the loop if an entire
// batch makes no progress (claims all lost, or finalize itself failing).
func (d *Dispatcher) FindAndExecuteJobs(ctx context.Context, now time.Time) (int, error) {
	totalExecuted := 0

	for {
		due, err := d.jobs.ListDuePending(ctx, now, d.batchSize)
		if err != nil {
			return totalExecuted, fmt.Errorf("listing due jobs: %w", err)
		}
		if len(due) == 0 {
			break
		}

		d.logger.InfoContext(ctx, "processing job batch",
			"batch_size", len(due),
			"total_so_far", totalExecuted,
		)

		batchSuccesses := 0
		for _, job := range due {
			finalized, err := d.executeOne(ctx, job, now)
			if err != nil {
				d.logger.ErrorContext(ctx, "failed to execute job",
					"job_id", job.ID,
					"job_type", job.Type,
					"error", err,
				)
				continue
			}
			if finalized {
				totalExecuted++
				batchSuccesses++
			}
		}

		if len(due) < d.batchSize {
			break
		}
		if batchSuccesses == 0 {
			d.logger.WarnContext(ctx, "no progress in job batch, breaking to prevent infinite loop",
				"batch_size", len(due),
			)
			break
		}
	}

	d.logger.InfoContext(ctx, "dispatch cycle complete", "total_executed", totalExecuted)
	return totalExecuted, nil
}

// executeOne claims, runs, and finalizes a single job. Returns false without
// error when the claim was lost to a concurrent dispatcher.
func (d *Dispatcher) executeOne(ctx context.Context, job types.Job, now time.Time) (bool, error) {
	claimed, err := d.jobs.Claim(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("claiming job %s: %w", job.ID, err)
	}
	if !claimed {
		return false, nil
	}

	status, result := d.runClaimed(ctx, job, now)

	if err := d.jobs.Finalize(ctx, job.ID, status, result); err != nil {
		// The job is stuck EXECUTING; the active-subject index keeps a
		// duplicate from being created while an operator resolves it.
		return false, fmt.Errorf("finalizing job %s as %s: %w", job.ID, status, err)
	}

	d.logger.InfoContext(ctx, "job executed",
		"job_id", job.ID,
		"job_type", job.Type,
		"status", status,
		"result", result,
	)
	return true, nil
}

// runClaimed resolves the kind and executes it, converting errors, panics,
// and unknown types into a terminal status and result.
func (d *Dispatcher) runClaimed(ctx context.Context, job types.Job, now time.Time) (status types.JobStatus, result string) {
	kind, ok := d.registry.Lookup(job.Type)
	if !ok {
		return types.JobFailed, fmt.Sprintf("no handler registered for job type %q", job.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "job run panicked",
				"job_id", job.ID,
				"job_type", job.Type,
				"panic", r,
			)
			status = types.JobFailed
			result = fmt.Sprintf("panic: %v", r)
		}
	}()

	outcome, err := kind.Run(ctx, job, now)
	if err != nil {
		return types.JobFailed, err.Error()
	}
	if outcome.Status == "" {
		return types.JobFinished, outcome.Result
	}
	return outcome.Status, outcome.Result
}
