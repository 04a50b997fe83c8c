package queue

import (
	"context"

	"github.com/relayq/relayq/app/entity"
)

// Job is what the queue hands to the processor. The job ID equals the
// idempotency key, so status lookups work uniformly across backends.
// Processors treat the job as read-only input.
type Job struct {
	ID           string
	Email        entity.Email
	AttemptsMade int
}

// Processor handles one dispatched job. A returned error makes the backend
// reschedule the job until its retry budget runs out.
type Processor func(ctx context.Context, job Job) error

// Queue is the work-queue contract shared by the in-memory FIFO and the
// Redis stream backends. The backend is a startup-time configuration
// choice and never leaks into caller code.
type Queue interface {
	// AddJob enqueues an email under jobID. An empty jobID gets a generated one.
	AddJob(ctx context.Context, email entity.Email, jobID string) error
	// Start begins dispatching jobs to the processor until Close or ctx end.
	Start(ctx context.Context, processor Processor)
	// Close stops dispatching and drops pending retry triggers.
	Close() error
}

const (
	// DefaultMaxAttempts is the per-job retry budget.
	DefaultMaxAttempts = 10
	// DefaultConcurrency caps in-flight jobs per worker.
	DefaultConcurrency = 10
)
