package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/entity"
)

const (
	defaultTick         = 500 * time.Millisecond
	defaultInitialDelay = 5 * time.Second
)

type memoryJob struct {
	id           string
	email        entity.Email
	attemptsLeft int
	nextDelay    time.Duration
}

// Memory is a single-node FIFO backend. A periodic tick dispatches queued
// jobs up to the concurrency ceiling; failed jobs are requeued after a
// doubling delay by independent timers until the retry budget runs out.
type Memory struct {
	logger *logrus.Logger

	mu         sync.Mutex
	jobs       []*memoryJob
	inProgress int
	timers     map[*time.Timer]struct{}
	closed     bool

	concurrency  int
	maxAttempts  int
	tick         time.Duration
	initialDelay time.Duration

	processor Processor
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMemory constructs the FIFO backend with default settings.
func NewMemory(logger *logrus.Logger) *Memory {
	return NewMemoryWith(logger, DefaultConcurrency, DefaultMaxAttempts, defaultTick, defaultInitialDelay)
}

// NewMemoryWith constructs the FIFO backend with explicit settings.
func NewMemoryWith(logger *logrus.Logger, concurrency, maxAttempts int, tick, initialDelay time.Duration) *Memory {
	return &Memory{
		logger:       logger,
		timers:       make(map[*time.Timer]struct{}),
		concurrency:  concurrency,
		maxAttempts:  maxAttempts,
		tick:         tick,
		initialDelay: initialDelay,
	}
}

func (q *Memory) AddJob(_ context.Context, email entity.Email, jobID string) error {
	if jobID == "" {
		jobID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, &memoryJob{
		id:           jobID,
		email:        email,
		attemptsLeft: q.maxAttempts,
		nextDelay:    q.initialDelay,
	})
	return nil
}

func (q *Memory) Start(ctx context.Context, processor Processor) {
	ctx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.processor = processor
	q.cancel = cancel
	q.done = make(chan struct{})
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		ticker := time.NewTicker(q.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.dispatch(ctx)
			}
		}
	}()
}

// dispatch pops jobs while capacity remains and runs them concurrently.
func (q *Memory) dispatch(ctx context.Context) {
	for {
		q.mu.Lock()
		if q.inProgress >= q.concurrency || len(q.jobs) == 0 {
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.inProgress++
		q.mu.Unlock()

		go q.process(ctx, job)
	}
}

func (q *Memory) process(ctx context.Context, job *memoryJob) {
	defer func() {
		q.mu.Lock()
		q.inProgress--
		q.mu.Unlock()
	}()

	err := q.processor(ctx, Job{
		ID:           job.id,
		Email:        job.email,
		AttemptsMade: q.maxAttempts - job.attemptsLeft,
	})
	if err == nil {
		q.logger.WithField("job_id", job.id).Info("job completed")
		return
	}

	q.logger.WithField("job_id", job.id).WithError(err).Error("job failed")

	if job.attemptsLeft <= 1 {
		q.logger.WithField("job_id", job.id).Error("job exhausted its retry budget")
		return
	}

	job.attemptsLeft--
	job.nextDelay *= 2

	// Each requeue has its own delayed trigger, independent of the tick.
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(job.nextDelay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.timers, timer)
		if q.closed {
			return
		}
		q.jobs = append(q.jobs, job)
	})
	q.timers[timer] = struct{}{}
	q.mu.Unlock()
}

func (q *Memory) Close() error {
	q.mu.Lock()
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = make(map[*time.Timer]struct{})
	q.jobs = nil
	cancel := q.cancel
	done := q.done
	q.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}
