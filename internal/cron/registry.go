package cron

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Job is a unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Periodic jobs run at most once per Every(). Jobs without it, or with a
// zero cadence, run on every tick.
type Periodic interface {
	Every() time.Duration
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

func cadence(job Job) time.Duration {
	if p, ok := job.(Periodic); ok {
		return p.Every()
	}
	return 0
}

// Registry keeps jobs in registration order. Names are unique; a later job
// with a taken name is ignored.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: make(map[string]struct{})}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register adds job and reports whether it was accepted.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	if r.names == nil {
		r.names = make(map[string]struct{})
	}
	if _, dup := r.names[job.Name()]; dup {
		return false
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return true
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Names lists job names with their cadence for startup logs.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		name := job.Name()
		if every := cadence(job); every > 0 {
			name += "@" + every.String()
		}
		names = append(names, name)
	}
	return names
}
