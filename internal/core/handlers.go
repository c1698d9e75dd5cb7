package core

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"boardpulse/internal/db"
	"boardpulse/internal/types"
)

// HandleTriggerDigest runs the activity-digest sweep and drains the queue.
// Responds 204; the created/executed counts go to the log, not the caller
// (the caller is a scheduler, not a user).
func (s *Server) HandleTriggerDigest(w http.ResponseWriter, r *http.Request) {
	created, executed, err := s.Triggers.TriggerDigest(r.Context(), s.now())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "digest trigger failed",
			"created", created,
			"executed", executed,
			"error", err,
		)
		Error(w, r, err)
		return
	}

	s.Logger.InfoContext(r.Context(), "digest trigger completed",
		"created", created,
		"executed", executed,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleTriggerAutoDelete runs the retention pipeline (warning jobs, then
// deletion jobs, then a dispatch pass). A deployment with auto-deletion
// disabled still gets a 204; the no-op is logged by the service.
func (s *Server) HandleTriggerAutoDelete(w http.ResponseWriter, r *http.Request) {
	created, executed, err := s.Triggers.TriggerAutoDelete(r.Context(), s.now())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "auto-delete trigger failed",
			"created", created,
			"executed", executed,
			"error", err,
		)
		Error(w, r, err)
		return
	}

	s.Logger.InfoContext(r.Context(), "auto-delete trigger completed",
		"created", created,
		"executed", executed,
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDispatch claims and runs all due PENDING jobs without a creation
// sweep.
func (s *Server) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	executed, err := s.Triggers.Dispatch(r.Context(), s.now())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "dispatch trigger failed",
			"executed", executed,
			"error", err,
		)
		Error(w, r, err)
		return
	}

	s.Logger.InfoContext(r.Context(), "dispatch trigger completed", "executed", executed)
	w.WriteHeader(http.StatusNoContent)
}

// validJobStatuses and validJobTypes whitelist the filter values accepted by
// the listing endpoint so typos fail loudly instead of returning an empty
// page.
var validJobStatuses = map[types.JobStatus]bool{
	types.JobPending:   true,
	types.JobExecuting: true,
	types.JobFinished:  true,
	types.JobCancelled: true,
	types.JobFailed:    true,
}

var validJobTypes = map[types.JobType]bool{
	types.JobTypeDeleteNotification: true,
	types.JobTypeDeleteUserData:     true,
	types.JobTypeMention:            true,
	types.JobTypeProjectActivity:    true,
}

// HandleListJobs serves the cursor-paginated audit listing over the jobs
// table. Query parameters: type, status, cursor, limit.
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.JobFilter{
		Type:   types.JobType(q.Get("type")),
		Status: types.JobStatus(q.Get("status")),
		Cursor: q.Get("cursor"),
	}

	if filter.Type != "" && !validJobTypes[filter.Type] {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"unknown job type: "+string(filter.Type), nil))
		return
	}
	if filter.Status != "" && !validJobStatuses[filter.Status] {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"unknown job status: "+string(filter.Status), nil))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
				"limit must be a positive integer", err))
			return
		}
		filter.Limit = limit
	}

	resp, err := s.Jobs.List(r.Context(), filter)
	if err != nil {
		Error(w, r, err)
		return
	}
	if resp.Data == nil {
		resp.Data = []types.Job{}
	}
	JSON(w, r, http.StatusOK, resp)
}

// HandleGetJob serves a single job record by id.
func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	job, err := s.Jobs.Get(r.Context(), id)
	if err != nil {
		Error(w, r, err)
		return
	}
	if job == nil {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundJob, "job not found", nil))
		return
	}
	JSON(w, r, http.StatusOK, APIResponse{Data: job})
}
