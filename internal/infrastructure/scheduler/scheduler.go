// Package scheduler runs the periodic background jobs: the invoice lock sweep
// and the reconciliation scan. Each tick takes a job lock so only one
// replica does the work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobStatus is the outcome of one run
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Job is a named function run every Interval
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobRun records one execution of a job
type JobRun struct {
	Job         string
	Status      JobStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
}

// Config holds scheduler configuration
type Config struct {
	// LockTTL bounds how long a crashed replica can block a job
	LockTTL time.Duration
	// JobTimeout cancels a run that takes too long
	JobTimeout time.Duration
	// RunOnStart runs every job once right after Start
	RunOnStart bool
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		LockTTL:    time.Minute,
		JobTimeout: 5 * time.Minute,
	}
}

// Scheduler runs registered jobs on their own tickers
type Scheduler struct {
	config Config
	locker JobLocker
	logger *zap.Logger
	now    func() time.Time

	jobs []Job

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRuns  map[string]JobRun
}

// New creates a scheduler. A nil locker means single-replica local locking.
func New(cfg Config, locker JobLocker, logger *zap.Logger) *Scheduler {
	defaults := DefaultConfig()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:   cfg,
		locker:   locker,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		lastRuns: make(map[string]JobRun),
	}
}

// Register adds a job. Jobs can only be added before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Interval <= 0 || job.Run == nil {
		return fmt.Errorf("%w: %q", ErrInvalidJob, job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateJob, job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches one loop per job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info("Scheduler started",
		zap.Int("jobs", len(jobs)),
		zap.Duration("lock_ttl", s.config.LockTTL),
	)
	return nil
}

// Stop cancels the loops and waits for running jobs until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		s.execute(ctx, job)
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, job)
		}
	}
}

// RunNow executes the named job immediately, still under its lock
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobRun, error) {
	s.mu.Lock()
	var found *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			found = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return JobRun{}, fmt.Errorf("%w: %q", ErrJobNotFound, name)
	}
	return s.execute(ctx, *found), nil
}

// LastRun returns the most recent run of a job
func (s *Scheduler) LastRun(name string) (JobRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.lastRuns[name]
	return run, ok
}

func (s *Scheduler) execute(ctx context.Context, job Job) JobRun {
	run := JobRun{Job: job.Name, Status: JobStatusRunning, StartedAt: s.now()}

	unlock, err := s.locker.TryLock(ctx, job.Name, s.config.LockTTL)
	if err != nil {
		run.CompletedAt = s.now()
		if errors.Is(err, ErrLockNotObtained) {
			run.Status = JobStatusSkipped
			s.logger.Debug("Job skipped, lock held elsewhere", zap.String("job", job.Name))
		} else {
			run.Status = JobStatusFailed
			run.Error = err.Error()
			s.logger.Error("Job lock failed", zap.String("job", job.Name), zap.Error(err))
		}
		s.record(run)
		return run
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Job unlock failed", zap.String("job", job.Name), zap.Error(err))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	err = s.safeRun(jobCtx, job)
	run.CompletedAt = s.now()
	if err != nil {
		run.Status = JobStatusFailed
		run.Error = err.Error()
		s.logger.Error("Job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", run.CompletedAt.Sub(run.StartedAt)),
			zap.Error(err),
		)
	} else {
		run.Status = JobStatusSuccess
		s.logger.Debug("Job completed",
			zap.String("job", job.Name),
			zap.Duration("duration", run.CompletedAt.Sub(run.StartedAt)),
		)
	}
	s.record(run)
	return run
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) record(run JobRun) {
	s.mu.Lock()
	s.lastRuns[run.Job] = run
	s.mu.Unlock()
}
