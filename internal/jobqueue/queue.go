package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carplateapi/carplate-go/internal/logging"
)

// defaultExecutionTimeout bounds a single job attempt.
const defaultExecutionTimeout = 30 * time.Second

// JobQueue manages a queue of jobs that can be retried
type JobQueue struct {
	jobs               []*Job
	mu                 sync.Mutex
	stats              JobStats
	stopCh             chan struct{}
	runningJobs        sync.WaitGroup // Track running jobs for graceful shutdown
	isRunning          bool
	maxJobs            int // Maximum number of pending jobs in the queue
	processCancel      context.CancelFunc
	processingInterval time.Duration // Interval for the processing ticker
	execTimeout        time.Duration // Timeout for a single job attempt
	logger             *slog.Logger
}

// NewJobQueue creates a new job queue with default settings
func NewJobQueue() *JobQueue {
	return NewJobQueueWithOptions(100, time.Second)
}

// NewJobQueueWithOptions creates a new job queue with custom settings
func NewJobQueueWithOptions(maxJobs int, processingInterval time.Duration) *JobQueue {
	return &JobQueue{
		jobs:               make([]*Job, 0),
		stopCh:             make(chan struct{}),
		maxJobs:            maxJobs,
		processingInterval: processingInterval,
		execTimeout:        defaultExecutionTimeout,
		logger:             logging.ForService("jobqueue"),
		stats: JobStats{
			ActionStats: make(map[string]ActionStats),
		},
	}
}

// SetProcessingInterval sets the processing interval, primarily for tests.
func (q *JobQueue) SetProcessingInterval(interval time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processingInterval = interval
}

// SetExecutionTimeout sets the per-attempt timeout, primarily for tests.
func (q *JobQueue) SetExecutionTimeout(timeout time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.execTimeout = timeout
}

func (q *JobQueue) executionTimeout() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.execTimeout
}

// Start starts the job queue processing
func (q *JobQueue) Start() {
	q.StartWithContext(context.Background())
}

// StartWithContext starts the job queue processing with a context
func (q *JobQueue) StartWithContext(ctx context.Context) {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return
	}
	q.isRunning = true
	q.stopCh = make(chan struct{}) // Ensure we have a fresh stop channel

	processCtx, cancel := context.WithCancel(ctx)
	q.processCancel = cancel
	q.mu.Unlock()

	go q.processJobs(processCtx)
}

// Stop stops the job queue processing
func (q *JobQueue) Stop() error {
	return q.StopWithTimeout(10 * time.Second)
}

// StopWithTimeout stops the job queue processing with a timeout
func (q *JobQueue) StopWithTimeout(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false

	if q.processCancel != nil {
		q.processCancel()
		q.processCancel = nil
	}

	close(q.stopCh)
	q.mu.Unlock()

	// Wait for all running jobs to complete with timeout
	c := make(chan struct{})
	go func() {
		q.runningJobs.Wait()
		close(c)
	}()

	select {
	case <-c:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out waiting for jobs to complete after %v", timeout)
	}
}

// Enqueue adds a job to the queue
func (q *JobQueue) Enqueue(action Action, data any, config RetryConfig) (*Job, error) {
	if action == nil {
		return nil, ErrNilAction
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return nil, ErrQueueStopped
	}

	actionType := fmt.Sprintf("%T", action)

	// Check if queue is full
	if len(q.jobs) >= q.maxJobs {
		q.stats.DroppedJobs++
		stats := q.stats.ActionStats[actionType]
		stats.Dropped++
		q.stats.ActionStats[actionType] = stats

		return nil, fmt.Errorf("%w: maximum queue size (%d) reached", ErrQueueFull, q.maxJobs)
	}

	maxAttempts := 1
	if config.Enabled {
		maxAttempts = config.MaxRetries + 1
	}

	job := &Job{
		ID:          uuid.NewString(),
		Action:      action,
		Data:        data,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now(),
		NextRetryAt: time.Now(), // Ready to run immediately
		Status:      JobStatusPending,
		Config:      config,
	}

	q.jobs = append(q.jobs, job)
	q.stats.TotalJobs++

	stats := q.stats.ActionStats[actionType]
	stats.Attempted++
	q.stats.ActionStats[actionType] = stats

	return job, nil
}

// processJobs is the main job processing loop
func (q *JobQueue) processJobs(ctx context.Context) {
	q.mu.Lock()
	interval := q.processingInterval
	q.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			if q.logger != nil {
				q.logger.Debug("Job queue processing stopped via stop channel")
			}
			return
		case <-ctx.Done():
			if q.logger != nil {
				q.logger.Debug("Job queue processing stopped via context", "error", ctx.Err())
			}
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			q.cleanupFinishedJobs()
			q.processDueJobs(ctx)
		}
	}
}

// cleanupFinishedJobs drops completed and permanently failed jobs from the queue
func (q *JobQueue) cleanupFinishedJobs() {
	q.mu.Lock()
	defer q.mu.Unlock()

	activeJobs := q.jobs[:0]
	for _, job := range q.jobs {
		if job.Status != JobStatusCompleted && job.Status != JobStatusFailed {
			activeJobs = append(activeJobs, job)
		}
	}
	q.jobs = activeJobs
}

// calculateBackoffDelay calculates the delay before the next retry attempt
func calculateBackoffDelay(config RetryConfig, attemptNum int) time.Duration {
	backoff := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attemptNum))

	// Add some jitter (±10%)
	jitterFactor := 0.9 + 0.2*float64(time.Now().Nanosecond())/1e9
	backoff *= jitterFactor

	if backoff > float64(config.MaxDelay) {
		backoff = float64(config.MaxDelay)
	}

	return time.Duration(backoff)
}

// processDueJobs processes jobs that are due for execution
func (q *JobQueue) processDueJobs(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	q.mu.Lock()

	var dueJobs []*Job
	now := time.Now()

	for _, job := range q.jobs {
		if (job.Status == JobStatusPending || job.Status == JobStatusRetrying) && !job.NextRetryAt.After(now) {
			dueJobs = append(dueJobs, job)
			job.Status = JobStatusRunning
		}
	}

	q.mu.Unlock()

	for _, job := range dueJobs {
		if ctx.Err() != nil {
			// Context was cancelled, revert job status and return
			q.mu.Lock()
			for _, j := range dueJobs {
				if j.Status == JobStatusRunning {
					if j.Attempts > 0 {
						j.Status = JobStatusRetrying
					} else {
						j.Status = JobStatusPending
					}
				}
			}
			q.mu.Unlock()
			return
		}

		q.runningJobs.Add(1)
		go func(j *Job) {
			defer q.runningJobs.Done()
			q.executeJob(ctx, j)
		}(job)
	}
}

// executeJob executes a job and handles retries if needed
func (q *JobQueue) executeJob(ctx context.Context, job *Job) {
	job.Attempts++

	actionType := fmt.Sprintf("%T", job.Action)
	if job.Attempts > 1 {
		q.mu.Lock()
		q.stats.RetryAttempts++
		q.mu.Unlock()

		if q.logger != nil {
			q.logger.Info("Retrying job",
				"job_id", job.ID,
				"action", job.Action.GetDescription(),
				"attempt", job.Attempts,
				"max_attempts", job.MaxAttempts)
		}
	}

	timeout := q.executionTimeout()
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Execute the job with panic recovery so a misbehaving action cannot
	// take down the queue. The result travels through a buffered channel so
	// an action finishing after a timeout cannot race with the timeout error.
	resultCh := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- fmt.Errorf("job execution panicked: %v", r)
			}
		}()

		resultCh <- job.Action.Execute(execCtx, job.Data)
	}()

	var err error
	select {
	case err = <-resultCh:
	case <-execCtx.Done():
		ctxErr := execCtx.Err()
		if ctxErr == context.DeadlineExceeded {
			err = fmt.Errorf("job execution timed out after %v: %w", timeout, ctxErr)
		} else {
			err = fmt.Errorf("job execution was cancelled: %w", ctxErr)
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		job.LastError = err

		if job.Attempts >= job.MaxAttempts {
			job.Status = JobStatusFailed

			q.stats.FailedJobs++
			stats := q.stats.ActionStats[actionType]
			stats.Failed++
			q.stats.ActionStats[actionType] = stats

			if q.logger != nil {
				q.logger.Error("Job permanently failed",
					"job_id", job.ID,
					"action", job.Action.GetDescription(),
					"attempts", job.Attempts,
					"error", err)
			}
		} else {
			job.Status = JobStatusRetrying

			delay := calculateBackoffDelay(job.Config, job.Attempts)
			job.NextRetryAt = time.Now().Add(delay)

			if q.logger != nil {
				q.logger.Warn("Job failed, scheduling retry",
					"job_id", job.ID,
					"action", job.Action.GetDescription(),
					"retry_in", delay,
					"attempt", job.Attempts,
					"max_attempts", job.MaxAttempts,
					"error", err)
			}
		}
		return
	}

	job.Status = JobStatusCompleted

	q.stats.SuccessfulJobs++
	stats := q.stats.ActionStats[actionType]
	stats.Successful++
	q.stats.ActionStats[actionType] = stats
}

// ProcessImmediately triggers an immediate processing pass, bypassing the
// ticker. Used by tests and by callers that need prompt dispatch.
func (q *JobQueue) ProcessImmediately(ctx context.Context) {
	q.cleanupFinishedJobs()
	q.processDueJobs(ctx)
}

// GetStats returns a snapshot of the current job statistics
func (q *JobQueue) GetStats() JobStatsSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	actionStats := make(map[string]ActionStats, len(q.stats.ActionStats))
	for k, v := range q.stats.ActionStats {
		actionStats[k] = v
	}

	return JobStatsSnapshot{
		TotalJobs:      q.stats.TotalJobs,
		SuccessfulJobs: q.stats.SuccessfulJobs,
		FailedJobs:     q.stats.FailedJobs,
		DroppedJobs:    q.stats.DroppedJobs,
		RetryAttempts:  q.stats.RetryAttempts,
		PendingJobs:    len(q.jobs),
		MaxQueueSize:   q.maxJobs,
		ActionStats:    actionStats,
	}
}
