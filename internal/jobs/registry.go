package jobs

import (
	"context"
	"time"

	"boardpulse/internal/types"
)

// Outcome is what a job run reports back to the dispatch loop. A zero Status
// means the run completed normally and the job is finalized FINISHED; a kind
// that declines to do its work sets JobCancelled with a human-readable reason
// in Result.
type Outcome struct {
	Status types.JobStatus
	Result string
}

// Kind is one job implementation. The set of kinds is closed: every type
// discriminator a job row may carry has exactly one Kind registered for it,
// and adding behavior means adding a Kind, not subtyping the job record.
type Kind interface {
	// Type returns the discriminator this kind handles.
	Type() types.JobType
	// Run executes one claimed job. now is the dispatch loop's reference
	// time; kinds use it for staleness checks instead of reading the clock.
	// A returned error finalizes the job FAILED with the error text as
	// result.
	Run(ctx context.Context, job types.Job, now time.Time) (Outcome, error)
}

// Registry maps job type discriminators to their implementations.
type Registry struct {
	kinds map[types.JobType]Kind
}

// NewRegistry builds a registry from the given kinds. Registering two kinds
// for the same type is a wiring bug and panics at startup.
func NewRegistry(kinds ...Kind) *Registry {
	r := &Registry{kinds: make(map[types.JobType]Kind, len(kinds))}
	for _, k := range kinds {
		if _, dup := r.kinds[k.Type()]; dup {
			panic("jobs: duplicate kind registered for type " + string(k.Type()))
		}
		r.kinds[k.Type()] = k
	}
	return r
}

// Lookup returns the kind registered for a type.
func (r *Registry) Lookup(t types.JobType) (Kind, bool) {
	k, ok := r.kinds[t]
	return k, ok
}
