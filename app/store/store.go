// Package store provides an in-memory registry of migration jobs.
// Jobs are created by the web layer, mutated by the queue worker and read
// concurrently by API pollers; all access goes through a single RWMutex.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a job
type Status string

// job statuses, transitions go forward only: pending -> running -> done|failed
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is a single migration run tracked through its lifecycle.
// LogLines is append-only, UpdatedAt refreshed on every mutation.
type Job struct {
	ID            string
	Mode          string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LogLines      []string
	Error         string
	ResultSummary string
}

// Jobs is a thread-safe in-memory job registry. Lookup by id with a
// secondary insertion-ordered index for listing. Records live for the
// process lifetime; the only removal is backing out a submission that
// never reached the worker.
type Jobs struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // ids in creation order
	now   func() time.Time
}

// NewJobs creates an empty job store
func NewJobs() *Jobs {
	return &Jobs{jobs: map[string]*Job{}, now: time.Now}
}

// Create allocates a new job in pending state and registers it
func (s *Jobs) Create(mode string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	job := &Job{
		ID:        uuid.New().String(),
		Mode:      mode,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return job.snapshot()
}

// Get returns a copy of the job, false if id is unknown
func (s *Jobs) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.snapshot(), true
}

// List returns up to limit most recently created jobs, most recent first.
// limit <= 0 returns all jobs.
func (s *Jobs) List(limit int) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	res := make([]Job, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if job, ok := s.jobs[ids[i]]; ok {
			res = append(res, job.snapshot())
		}
	}
	return res
}

// UpdateOpts carries optional fields for UpdateStatus. Nil fields keep the
// previously recorded value, i.e. a later status change without an error
// never erases an earlier error message.
type UpdateOpts struct {
	Error         *string
	ResultSummary *string
}

// UpdateStatus sets the job status and refreshes UpdatedAt, no-op on unknown id
func (s *Jobs) UpdateStatus(id string, status Status, opts UpdateOpts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.UpdatedAt = s.now()
	if opts.Error != nil {
		job.Error = *opts.Error
	}
	if opts.ResultSummary != nil {
		job.ResultSummary = *opts.ResultSummary
	}
}

// Remove deletes a job record, no-op on unknown id. Only for backing out
// a submission whose enqueue failed; a job the worker has seen is never
// removed, its record must stay observable through the terminal state.
func (s *Jobs) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return
	}
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AppendLog appends a line to the job's log buffer, no-op on unknown id
func (s *Jobs) AppendLog(id, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.LogLines = append(job.LogLines, line)
	job.UpdatedAt = s.now()
}

// snapshot returns a copy safe to hand out to readers, log slice included.
// caller must hold the store lock.
func (j *Job) snapshot() Job {
	res := *j
	res.LogLines = make([]string, len(j.LogLines))
	copy(res.LogLines, j.LogLines)
	return res
}

// Str is a helper making a *string for UpdateOpts
func Str(s string) *string { return &s }
