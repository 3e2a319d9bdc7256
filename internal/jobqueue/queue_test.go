package jobqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testAction is a configurable action for queue tests
type testAction struct {
	executions atomic.Int32
	failUntil  int32 // attempts up to and including this count fail
	lastData   atomic.Value
}

func (a *testAction) Execute(ctx context.Context, data any) error {
	count := a.executions.Add(1)
	if data != nil { // atomic.Value.Store panics on nil
		a.lastData.Store(data)
	}
	if count <= a.failUntil {
		return assert.AnError
	}
	return nil
}

func (a *testAction) GetDescription() string {
	return "test action"
}

func startTestQueue(t *testing.T) *JobQueue {
	t.Helper()
	q := NewJobQueueWithOptions(10, 10*time.Millisecond)
	q.Start()
	t.Cleanup(func() {
		require.NoError(t, q.Stop())
	})
	return q
}

func TestEnqueueAndExecute(t *testing.T) {
	q := startTestQueue(t)

	action := &testAction{}
	job, err := q.Enqueue(action, "ABC123", NoRetry())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.MaxAttempts, "retry-disabled jobs get a single attempt")

	require.Eventually(t, func() bool {
		return action.executions.Load() == 1
	}, 2*time.Second, 10*time.Millisecond, "job should execute")

	assert.Equal(t, "ABC123", action.lastData.Load())

	require.Eventually(t, func() bool {
		return q.GetStats().SuccessfulJobs == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSingleAttemptFailureIsTerminal(t *testing.T) {
	q := startTestQueue(t)

	action := &testAction{failUntil: 100}
	_, err := q.Enqueue(action, nil, NoRetry())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.GetStats().FailedJobs == 1
	}, 2*time.Second, 10*time.Millisecond, "job should fail permanently")

	// Give the queue a few more ticks: a no-retry job must not run again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), action.executions.Load(), "failed no-retry job must not be retried")
}

func TestRetryEventuallySucceeds(t *testing.T) {
	q := startTestQueue(t)

	action := &testAction{failUntil: 2}
	config := RetryConfig{
		Enabled:      true,
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	_, err := q.Enqueue(action, nil, config)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.GetStats().SuccessfulJobs == 1
	}, 5*time.Second, 10*time.Millisecond, "job should succeed after retries")

	assert.Equal(t, int32(3), action.executions.Load())
}

func TestEnqueueNilAction(t *testing.T) {
	q := startTestQueue(t)

	_, err := q.Enqueue(nil, nil, NoRetry())
	assert.ErrorIs(t, err, ErrNilAction)
}

func TestEnqueueOnStoppedQueue(t *testing.T) {
	q := NewJobQueueWithOptions(10, 10*time.Millisecond)

	_, err := q.Enqueue(&testAction{}, nil, NoRetry())
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestQueueFull(t *testing.T) {
	q := NewJobQueueWithOptions(2, time.Hour) // interval long enough to keep jobs pending
	q.Start()
	t.Cleanup(func() {
		require.NoError(t, q.Stop())
	})

	action := &testAction{}
	_, err := q.Enqueue(action, nil, NoRetry())
	require.NoError(t, err)
	_, err = q.Enqueue(action, nil, NoRetry())
	require.NoError(t, err)

	_, err = q.Enqueue(action, nil, NoRetry())
	require.ErrorIs(t, err, ErrQueueFull)

	stats := q.GetStats()
	assert.Equal(t, 1, stats.DroppedJobs)
	assert.Equal(t, 2, stats.PendingJobs)
}

func TestStopWaitsForRunningJobs(t *testing.T) {
	q := NewJobQueueWithOptions(10, 10*time.Millisecond)
	q.Start()

	action := &testAction{}
	_, err := q.Enqueue(action, nil, NoRetry())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return action.executions.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, q.Stop())

	// Enqueue after stop is rejected.
	_, err = q.Enqueue(action, nil, NoRetry())
	assert.ErrorIs(t, err, ErrQueueStopped)
}

// blockingAction blocks until its release channel is closed.
type blockingAction struct {
	release chan struct{}
}

func (a *blockingAction) Execute(ctx context.Context, data any) error {
	<-a.release
	return nil
}

func (a *blockingAction) GetDescription() string {
	return "blocking action"
}

func TestExecutionTimeoutFailsStuckJob(t *testing.T) {
	q := NewJobQueueWithOptions(10, 10*time.Millisecond)
	q.SetExecutionTimeout(20 * time.Millisecond)
	q.Start()

	action := &blockingAction{release: make(chan struct{})}
	t.Cleanup(func() { close(action.release) })

	job, err := q.Enqueue(action, nil, NoRetry())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return q.GetStats().FailedJobs == 1
	}, 2*time.Second, 10*time.Millisecond, "stuck job should fail once the timeout elapses")

	require.NoError(t, q.Stop())

	require.Error(t, job.LastError)
	assert.Contains(t, job.LastError.Error(), "timed out")
}
