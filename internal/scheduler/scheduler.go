package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobStatus represents the status of a job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusScheduled JobStatus = "scheduled"
)

// JobInfo contains information about a scheduled job.
type JobInfo struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Status            JobStatus     `json:"status"`
	LastRun           time.Time     `json:"last_run"`
	LastDuration      time.Duration `json:"last_duration"`
	NextRun           time.Time     `json:"next_run"`
	Schedule          string        `json:"schedule"`
	Enabled           bool          `json:"enabled"`
	RunCount          int           `json:"run_count"`
	ErrorCount        int           `json:"error_count"`
	LastError         string        `json:"last_error,omitempty"`
	Singleton         bool          `json:"singleton"`
	InstantAfterStart bool          `json:"instant_after_start,omitempty"`

	job gocron.Job
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

// Scheduler runs crawl jobs on a schedule and keeps their run statistics.
type Scheduler struct {
	gocron gocron.Scheduler
	log    *log.Logger

	mu       sync.RWMutex
	jobs     map[string]*JobInfo
	jobFuncs map[string]JobFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	gocronScheduler, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron:   gocronScheduler,
		log:      log.Default().WithPrefix("scheduler"),
		jobs:     make(map[string]*JobInfo),
		jobFuncs: make(map[string]JobFunc),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start starts the scheduler. Jobs added with instantAfterStart are triggered right away.
func (s *Scheduler) Start() {
	s.log.Info("starting job scheduler")
	s.gocron.Start()

	var instant []string
	s.mu.Lock()
	for id, info := range s.jobs {
		s.refreshNextRun(info)
		if info.InstantAfterStart {
			instant = append(instant, id)
		}
	}
	s.mu.Unlock()

	slices.Sort(instant)
	for _, id := range instant {
		s.log.Info("running job immediately after start", "id", id)
		if err := s.RunJobNow(id); err != nil {
			s.log.Error("failed to run job immediately after start", "id", id, "error", err)
		}
	}
}

// Stop cancels running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.log.Info("stopping job scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// AddJob adds a job that may overlap with its own previous run.
func (s *Scheduler) AddJob(id, name, description, schedule string, jobDef gocron.JobDefinition, jobFunc JobFunc, instantAfterStart bool) error {
	return s.addJob(id, name, description, schedule, jobDef, jobFunc, false, instantAfterStart)
}

// AddSingletonJob adds a job of which at most one run is active at a time.
// A run that becomes due while the previous one is active is rescheduled.
func (s *Scheduler) AddSingletonJob(id, name, description, schedule string, jobDef gocron.JobDefinition, jobFunc JobFunc, instantAfterStart bool) error {
	return s.addJob(id, name, description, schedule, jobDef, jobFunc, true, instantAfterStart)
}

func (s *Scheduler) addJob(
	id, name, description, schedule string,
	jobDef gocron.JobDefinition,
	jobFunc JobFunc,
	singleton, instantAfterStart bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("job %s already exists", id)
	}

	info := &JobInfo{
		ID:                id,
		Name:              name,
		Description:       description,
		Status:            JobStatusScheduled,
		Schedule:          schedule,
		Enabled:           true,
		Singleton:         singleton,
		InstantAfterStart: instantAfterStart,
	}

	var opts []gocron.JobOption
	opts = append(opts, gocron.WithName(id))
	if singleton {
		opts = append(opts, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	}

	job, err := s.gocron.NewJob(jobDef, gocron.NewTask(s.wrapJobFunc(id, jobFunc)), opts...)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	info.job = job

	s.jobs[id] = info
	s.jobFuncs[id] = jobFunc
	s.log.Info("added job to scheduler", "id", id, "name", name, "schedule", schedule, "singleton", singleton)
	return nil
}

// RunJobNow triggers a job immediately. Singleton jobs still never overlap.
func (s *Scheduler) RunJobNow(id string) error {
	s.mu.RLock()
	info, exists := s.jobs[id]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	s.log.Info("manually triggering job", "id", id, "name", info.Name)
	if err := info.job.RunNow(); err != nil {
		return fmt.Errorf("failed to trigger job %s: %w", id, err)
	}
	return nil
}

// GetJobs returns a copy of all job information sorted by id.
func (s *Scheduler) GetJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, info := range s.jobs {
		jobs = append(jobs, *info)
	}
	slices.SortFunc(jobs, func(a, b JobInfo) int { return strings.Compare(a.ID, b.ID) })
	return jobs
}

// GetJob returns a copy of the information about a specific job.
func (s *Scheduler) GetJob(id string) (JobInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.jobs[id]
	if !exists {
		return JobInfo{}, false
	}
	return *info, true
}

// EnableJob enables a job.
func (s *Scheduler) EnableJob(id string) error {
	return s.setEnabled(id, true)
}

// DisableJob disables a job. Scheduled runs of a disabled job are skipped.
func (s *Scheduler) DisableJob(id string) error {
	return s.setEnabled(id, false)
}

func (s *Scheduler) setEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	info.Enabled = enabled
	s.refreshNextRun(info)
	s.log.Info("changed job state", "id", id, "enabled", enabled)
	return nil
}

// refreshNextRun must be called with s.mu held.
func (s *Scheduler) refreshNextRun(info *JobInfo) {
	if info.job == nil {
		return
	}
	if nextRun, err := info.job.NextRun(); err == nil {
		info.NextRun = nextRun
	} else {
		s.log.Debug("failed to get next run time", "id", info.ID, "error", err)
	}
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(id string, jobFunc JobFunc) func() {
	return func() {
		s.mu.Lock()
		info := s.jobs[id]
		if info == nil {
			s.mu.Unlock()
			s.log.Error("job info not found", "id", id)
			return
		}
		if !info.Enabled {
			s.mu.Unlock()
			s.log.Debug("job is disabled, skipping", "id", id)
			return
		}
		info.Status = JobStatusRunning
		info.LastRun = time.Now()
		info.RunCount++
		s.refreshNextRun(info)
		name := info.Name
		s.mu.Unlock()

		s.log.Info("starting job", "id", id, "name", name)
		start := time.Now()
		err := jobFunc(s.ctx)
		took := time.Since(start)

		s.mu.Lock()
		defer s.mu.Unlock()
		info.LastDuration = took
		if err != nil {
			s.log.Error("job failed", "id", id, "name", name, "took", took, "error", err)
			info.Status = JobStatusFailed
			info.ErrorCount++
			info.LastError = err.Error()
			return
		}
		s.log.Info("job completed", "id", id, "name", name, "took", took)
		info.Status = JobStatusCompleted
		info.LastError = ""
	}
}
