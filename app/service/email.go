package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/cache"
	"github.com/relayq/relayq/app/entity"
	"github.com/relayq/relayq/app/idempotency"
	"github.com/relayq/relayq/app/queue"
	"github.com/relayq/relayq/app/repository"
)

var ErrStatusNotFound = errors.New("status record not found")

// TerminalRecordTTL is how long sent/failed records stay queryable.
const TerminalRecordTTL = 24 * time.Hour

// Sender is the delivery engine the job processor drives.
type Sender interface {
	Send(ctx context.Context, email *entity.Email) error
}

// Enqueuer is the slice of the queue contract Submit needs.
type Enqueuer interface {
	AddJob(ctx context.Context, email entity.Email, jobID string) error
}

// EmailService owns the job lifecycle: queued, processing, then sent or
// failed. Every transition is persisted to the cache under the job's
// idempotency key. A failed write is a lifecycle snapshot, not a retry
// suppression; the queue keeps retrying within its budget.
type EmailService struct {
	logger *logrus.Logger
	cache  cache.Cache
	queue  Enqueuer
	sender Sender
	audit  *repository.DeliveryLog
}

// NewEmailService builds the orchestration service. audit may be nil when
// the delivery log is not configured.
func NewEmailService(logger *logrus.Logger, store cache.Cache, enq Enqueuer, sender Sender, audit *repository.DeliveryLog) *EmailService {
	return &EmailService{
		logger: logger,
		cache:  store,
		queue:  enq,
		sender: sender,
		audit:  audit,
	}
}

// Submit enqueues the email under the idempotency key and returns the
// current status record. An enqueue failure is terminal; the job never
// entered the queue, so the failure is recorded synchronously.
func (s *EmailService) Submit(ctx context.Context, email entity.Email, key string) (*entity.StatusRecord, error) {
	if err := s.queue.AddJob(ctx, email, key); err != nil {
		s.logger.WithField("key", key).WithError(err).Error("enqueue failed")
		record, writeErr := s.updateStatus(ctx, key, email.SenderEmail, entity.StatusFailed, "Failed to queue email: "+err.Error(), entity.CodeFailed)
		if writeErr != nil {
			return nil, fmt.Errorf("enqueue failed: %v; status write failed: %w", err, writeErr)
		}
		return record, nil
	}

	record, err := s.getRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ProcessJob is the queue's processor. The returned error is re-raised on
// failure so the backend's own retry bookkeeping triggers.
func (s *EmailService) ProcessJob(ctx context.Context, job queue.Job) error {
	s.logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"attempt": job.AttemptsMade,
	}).Debug("processing email job")

	email := job.Email
	if _, err := s.updateStatus(ctx, job.ID, email.SenderEmail, entity.StatusProcessing, "Email is being processed", entity.CodeAccepted); err != nil {
		return fmt.Errorf("update status to processing: %w", err)
	}

	if err := s.sender.Send(ctx, &email); err != nil {
		if _, writeErr := s.updateStatus(ctx, job.ID, email.SenderEmail, entity.StatusFailed, err.Error(), entity.CodeFailed); writeErr != nil {
			return fmt.Errorf("send failed: %v; status write failed: %w", err, writeErr)
		}
		s.recordAudit(ctx, job.ID, &email, entity.StatusFailed, err.Error())
		return err
	}

	if _, err := s.updateStatus(ctx, job.ID, email.SenderEmail, entity.StatusSent, "Email sent successfully", entity.CodeSent); err != nil {
		return fmt.Errorf("update status to sent: %w", err)
	}
	s.recordAudit(ctx, job.ID, &email, entity.StatusSent, "")
	return nil
}

// GetStatus returns the raw stored record. Requester authorization is the
// caller's responsibility.
func (s *EmailService) GetStatus(ctx context.Context, key string) (*entity.StatusRecord, error) {
	return s.getRecord(ctx, key)
}

func (s *EmailService) getRecord(ctx context.Context, key string) (*entity.StatusRecord, error) {
	data, err := s.cache.Get(ctx, idempotency.CacheKey(key))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, err
	}

	var record entity.StatusRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode status record: %w", err)
	}
	return &record, nil
}

// updateStatus overwrites the record in place, preserving the requester,
// request hash and creation time set at reservation.
func (s *EmailService) updateStatus(ctx context.Context, key, sender, status, message string, statusCode int) (*entity.StatusRecord, error) {
	record, err := s.getRecord(ctx, key)
	if errors.Is(err, ErrStatusNotFound) {
		// Reservation expired while the job was still in flight; rebuild
		// from the job payload so the outcome stays queryable by its
		// requester. The request hash is gone for good.
		record = &entity.StatusRecord{SenderEmail: sender, CreatedAt: time.Now().UTC()}
	} else if err != nil {
		return nil, err
	}

	record.Status = status
	record.Message = message
	record.StatusCode = statusCode

	value, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, idempotency.CacheKey(key), value, TerminalRecordTTL); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *EmailService) recordAudit(ctx context.Context, key string, email *entity.Email, status, message string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, key, email, status, message); err != nil {
		// The audit log is advisory; delivery state lives in the cache.
		s.logger.WithField("key", key).WithError(err).Warn("delivery log write failed")
	}
}
