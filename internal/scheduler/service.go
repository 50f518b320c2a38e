// Package scheduler runs periodic housekeeping jobs: sweeping idle
// sessions and expired in-memory rate-limit windows.
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pensionflow/pkg/logger"
)

// Job is a housekeeping task run every Interval.
type Job struct {
	ID       string
	Name     string
	Interval time.Duration
	Run      func()
	NextRun  time.Time
	Status   string // "active", "paused"
}

type Scheduler struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	logger logger.Logger
	tick   time.Duration
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewScheduler checks for due jobs every tick.
func NewScheduler(tick time.Duration, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	if tick <= 0 {
		tick = time.Second
	}
	return &Scheduler{
		jobs:   make(map[string]*Job),
		logger: log,
		tick:   tick,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Schedule registers a job and returns its id.
func (s *Scheduler) Schedule(job *Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.NextRun.IsZero() {
		job.NextRun = time.Now().Add(job.Interval)
	}
	job.Status = "active"

	s.jobs[job.ID] = job
	s.logger.Info("Scheduled housekeeping job", map[string]interface{}{
		"id":       job.ID,
		"name":     job.Name,
		"interval": job.Interval.String(),
	})
	return job.ID
}

// Pause stops a job from running until Resume.
func (s *Scheduler) Pause(id string) bool {
	return s.setStatus(id, "paused")
}

func (s *Scheduler) Resume(id string) bool {
	return s.setStatus(id, "active")
}

func (s *Scheduler) setStatus(id, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if ok {
		job.Status = status
	}
	return ok
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.tick)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ticker.C:
				s.processJobs()
			case <-s.stop:
				ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("Housekeeping scheduler started", nil)
}

// Stop ends the loop and waits for a running pass to finish. It must
// only be called after Start.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Scheduler) processJobs() {
	now := time.Now()

	s.mu.Lock()
	var due []*Job
	for _, job := range s.jobs {
		if job.Status == "active" && !now.Before(job.NextRun) {
			due = append(due, job)
			job.NextRun = now.Add(job.Interval)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.execute(job)
	}
}

func (s *Scheduler) execute(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Housekeeping job panicked", map[string]interface{}{
				"id":    job.ID,
				"name":  job.Name,
				"panic": r,
			})
		}
	}()
	s.logger.Debug("Running housekeeping job", map[string]interface{}{"name": job.Name})
	job.Run()
}
