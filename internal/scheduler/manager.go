package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named background task run on a cron schedule (with seconds field).
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Manager runs registered jobs on their cron schedules.
type Manager struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	jobs    map[string]Job
	logger  *zap.Logger
	mu      sync.RWMutex
	running bool
}

// JobStatus represents the status of a scheduled job
type JobStatus struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run"`
}

const defaultJobTimeout = 30 * time.Minute

var specParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		cron:    cron.New(cron.WithParser(specParser)),
		entries: make(map[string]cron.EntryID),
		jobs:    make(map[string]Job),
		logger:  logger,
	}
}

// AddJob registers job, replacing any job with the same name.
func (m *Manager) AddJob(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if err := ValidateCronExpression(job.Spec); err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", job.Name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.entries[job.Name]; ok {
		m.cron.Remove(entryID)
	}

	entryID, err := m.cron.AddFunc(job.Spec, func() {
		if err := m.execute(context.Background(), job); err != nil {
			m.logger.Error("scheduled job failed", zap.String("job", job.Name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	m.entries[job.Name] = entryID
	m.jobs[job.Name] = job

	m.logger.Info("Added job",
		zap.String("job", job.Name),
		zap.String("cron", job.Spec))
	return nil
}

// RemoveJob removes a job from the manager
func (m *Manager) RemoveJob(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entryID, ok := m.entries[name]; ok {
		m.cron.Remove(entryID)
		delete(m.entries, name)
		delete(m.jobs, name)

		m.logger.Info("Removed job", zap.String("job", name))
	}
}

// RunNow executes a registered job immediately, outside its schedule.
func (m *Manager) RunNow(ctx context.Context, name string) error {
	m.mu.RLock()
	job, ok := m.jobs[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return m.execute(ctx, job)
}

func (m *Manager) execute(ctx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	m.logger.Info("Job finished",
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("ok", err == nil))
	return err
}

// Start starts the cron scheduler
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("scheduler already running")
	}
	m.running = true

	m.logger.Info("Starting scheduler", zap.Int("jobs", len(m.jobs)))
	m.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.logger.Info("Stopping scheduler")
	<-m.cron.Stop().Done()
}

// GetActiveJobs returns the number of registered jobs
func (m *Manager) GetActiveJobs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// GetJobStatus returns the status of a scheduled job
func (m *Manager) GetJobStatus(name string) (*JobStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entryID, ok := m.entries[name]
	if !ok {
		return nil, fmt.Errorf("job %s not found", name)
	}

	entry := m.cron.Entry(entryID)
	return &JobStatus{
		Name:    name,
		Spec:    m.jobs[name].Spec,
		NextRun: entry.Next,
		PrevRun: entry.Prev,
	}, nil
}

// ValidateCronExpression validates a six field cron expression or a descriptor such as @daily.
func ValidateCronExpression(expr string) error {
	_, err := specParser.Parse(expr)
	return err
}
