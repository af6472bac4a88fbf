package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobInfo describes a registered job and its last outcome
type JobInfo struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*JobInfo
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*JobInfo),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with a cron schedule (seconds field included)
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	if _, exists := s.jobs[job.Name()]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %q already registered", job.Name())
	}
	info := &JobInfo{Name: job.Name(), Schedule: schedule}
	s.jobs[job.Name()] = info
	s.mu.Unlock()

	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		s.mu.Lock()
		delete(s.jobs, job.Name())
		s.mu.Unlock()
		return fmt.Errorf("failed to register job %q: %w", job.Name(), err)
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.runJob(job)
}

// Jobs returns a snapshot of registered jobs
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, info := range s.jobs {
		out = append(out, *info)
	}
	return out
}

func (s *Scheduler) runJob(job Job) error {
	start := time.Now()
	err := job.Run()
	elapsed := time.Since(start)

	s.mu.Lock()
	if info, ok := s.jobs[job.Name()]; ok {
		now := start
		info.LastRun = &now
		if err != nil {
			info.LastError = err.Error()
		} else {
			info.LastError = ""
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration_ms", elapsed).
			Msg("Job failed")
		return err
	}

	s.log.Debug().
		Str("job", job.Name()).
		Dur("duration_ms", elapsed).
		Msg("Job completed")
	return nil
}
