package cron

import "context"

// Job is one nightly sweep task over the item collection.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the sweep jobs in execution order. Order matters: the
// notification reconcile runs before the expiry digest so the digest reads
// freshly reconciled state.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the provided jobs, skipping nils so an
// optional job can be wired conditionally.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		registry.jobs = append(registry.jobs, job)
	}
	return registry
}

// Jobs returns the registered jobs in execution order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names returns the job names in execution order, for startup logging.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
