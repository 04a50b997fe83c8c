package queue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/entity"
)

const StreamName = "relayq:email:jobs"
const ConsumerGroup = "email-workers"

// RedisStream is a durable backend over a Redis stream and consumer group.
// Retries stay inside the stream: a failed entry is acked and re-published
// with a bumped attempt counter after a doubling delay.
type RedisStream struct {
	client       *redis.Client
	logger       *logrus.Logger
	consumerName string
	maxAttempts  int
	initialDelay time.Duration

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedisStream constructs the Redis stream backend.
func NewRedisStream(client *redis.Client, logger *logrus.Logger, consumerName string) *RedisStream {
	return NewRedisStreamWith(client, logger, consumerName, DefaultMaxAttempts, defaultInitialDelay)
}

// NewRedisStreamWith constructs the backend with explicit retry settings.
func NewRedisStreamWith(client *redis.Client, logger *logrus.Logger, consumerName string, maxAttempts int, initialDelay time.Duration) *RedisStream {
	return &RedisStream{
		client:       client,
		logger:       logger,
		consumerName: consumerName,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		timers:       make(map[*time.Timer]struct{}),
	}
}

func (q *RedisStream) AddJob(ctx context.Context, email entity.Email, jobID string) error {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	return q.publish(ctx, email, jobID, 0)
}

func (q *RedisStream) publish(ctx context.Context, email entity.Email, jobID string, attemptsMade int) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]interface{}{
			"job_id":       jobID,
			"email_id":     email.ID,
			"sender_email": email.SenderEmail,
			"sender_name":  email.SenderName,
			"recipient":    email.RecipientEmail,
			"subject":      email.Subject,
			"body":         email.Body,
			"attempts":     strconv.Itoa(attemptsMade),
		},
	}).Err()
}

// Start launches the consumer loop. It first drains messages left pending
// by a previous worker, then switches to reading new ones.
func (q *RedisStream) Start(ctx context.Context, processor Processor) {
	ctx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.cancel = cancel
	q.done = make(chan struct{})
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		if err := q.run(ctx, processor); err != nil {
			q.logger.WithError(err).Error("consumer stopped")
		}
	}()
}

func (q *RedisStream) run(ctx context.Context, processor Processor) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	q.logger.WithFields(logrus.Fields{
		"consumer": q.consumerName,
		"stream":   StreamName,
	}).Info("consumer started")

	startID := "0"
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("consumer shutting down")
			return nil
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    ConsumerGroup,
			Consumer: q.consumerName,
			Streams:  []string{StreamName, startID},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				if startID == "0" {
					startID = ">"
				}
				continue
			}
			if ctx.Err() != nil {
				q.logger.Info("consumer shutting down")
				return nil
			}
			q.logger.WithError(err).Error("xreadgroup failed")
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			if len(stream.Messages) == 0 && startID == "0" {
				startID = ">"
				continue
			}
			for _, msg := range stream.Messages {
				q.processMessage(ctx, msg, processor)
			}
		}
	}
}

func (q *RedisStream) processMessage(ctx context.Context, msg redis.XMessage, processor Processor) {
	job := jobFromMessage(msg)

	log := q.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"job_id":     job.ID,
		"attempt":    job.AttemptsMade,
	})
	log.Debug("processing job")

	if err := processor(ctx, job); err != nil {
		log.WithError(err).Error("job failed")
		q.reschedule(job, msg.ID)
		return
	}

	log.Info("job completed")
	if err := q.client.XAck(ctx, StreamName, ConsumerGroup, msg.ID).Err(); err != nil {
		log.WithError(err).Error("xack failed")
	}
}

// reschedule acks the stale entry and re-publishes the job with a bumped
// attempt counter after its backoff delay, or drops it once the budget is
// spent. Uses a background context so shutdown does not lose the ack.
func (q *RedisStream) reschedule(job Job, messageID string) {
	ctx := context.Background()
	if err := q.client.XAck(ctx, StreamName, ConsumerGroup, messageID).Err(); err != nil {
		q.logger.WithError(err).Error("xack failed")
	}

	next := job.AttemptsMade + 1
	if next >= q.maxAttempts {
		q.logger.WithField("job_id", job.ID).Error("job exhausted its retry budget")
		return
	}

	delay := q.initialDelay << uint(next)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		if err := q.publish(context.Background(), job.Email, job.ID, next); err != nil {
			q.logger.WithField("job_id", job.ID).WithError(err).Error("requeue failed")
		}
	})
	q.timers[timer] = struct{}{}
}

func (q *RedisStream) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, StreamName, ConsumerGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (q *RedisStream) Close() error {
	q.mu.Lock()
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = make(map[*time.Timer]struct{})
	cancel := q.cancel
	done := q.done
	q.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func jobFromMessage(msg redis.XMessage) Job {
	str := func(field string) string {
		value, _ := msg.Values[field].(string)
		return value
	}
	attempts, _ := strconv.Atoi(str("attempts"))

	return Job{
		ID:           str("job_id"),
		AttemptsMade: attempts,
		Email: entity.Email{
			ID:             str("email_id"),
			SenderEmail:    str("sender_email"),
			SenderName:     str("sender_name"),
			RecipientEmail: str("recipient"),
			Subject:        str("subject"),
			Body:           str("body"),
			Status:         entity.StatusQueued,
		},
	}
}
