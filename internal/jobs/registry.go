package jobs

import (
	"context"
	"sort"
)

// Job is a batch task triggered by an external scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry tracks jobs by name.
type Registry struct {
	jobs  []Job
	index map[string]Job
}

// NewRegistry builds a registry preloaded with the provided jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{index: map[string]Job{}}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job. A later job with the same name replaces the earlier one.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	if _, exists := r.index[job.Name()]; exists {
		for i, existing := range r.jobs {
			if existing.Name() == job.Name() {
				r.jobs[i] = job
			}
		}
	} else {
		r.jobs = append(r.jobs, job)
	}
	r.index[job.Name()] = job
}

// Lookup returns the job registered under name.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.index[name]
	return job, ok
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists job names alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.index))
	for name := range r.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
