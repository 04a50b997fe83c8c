package failover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/breaker"
	"github.com/relayq/relayq/app/entity"
	"github.com/relayq/relayq/app/provider"
	"github.com/relayq/relayq/app/ratelimit"
)

// ErrAllProvidersFailed is returned once every configured provider has been
// skipped or has exhausted its attempts. It wraps the last transport error.
var ErrAllProvidersFailed = errors.New("all providers failed")

const (
	// DefaultMaxAttempts caps tries per provider before moving on.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay seeds the exponential backoff between attempts.
	DefaultBaseDelay = time.Second
)

// Engine tries providers in priority order. Each provider is gated by its
// own circuit breaker and the shared rate limiter, and retried with
// exponential backoff up to the attempt cap. Breaker state is owned by the
// engine instance, constructed once at startup.
type Engine struct {
	logger      *logrus.Logger
	providers   []provider.MailSender
	breakers    map[string]*breaker.Breaker
	limiter     *ratelimit.Limiter
	maxAttempts int
	baseDelay   time.Duration
}

// New constructs an engine with one fresh breaker per provider and the
// default attempt cap and backoff.
func New(logger *logrus.Logger, providers []provider.MailSender, limiter *ratelimit.Limiter) *Engine {
	return NewWith(logger, providers, limiter, DefaultMaxAttempts, DefaultBaseDelay)
}

// NewWith constructs an engine with explicit retry settings.
func NewWith(logger *logrus.Logger, providers []provider.MailSender, limiter *ratelimit.Limiter, maxAttempts int, baseDelay time.Duration) *Engine {
	breakers := make(map[string]*breaker.Breaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = breaker.New()
	}
	return &Engine{
		logger:      logger,
		providers:   providers,
		breakers:    breakers,
		limiter:     limiter,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// Send attempts delivery on every configured provider unless the breaker or
// limiter skips one. Per-provider attempts are capped; failures feed the
// provider's breaker. The aggregate error surfaces only after exhaustion.
func (e *Engine) Send(ctx context.Context, email *entity.Email) error {
	var lastErr error

	for _, p := range e.providers {
		name := p.Name()
		br := e.breakers[name]

		if !br.Allow() {
			e.logger.WithField("provider", name).Warn("circuit open, skipping provider")
			continue
		}

		allowed, err := e.limiter.Allow(ctx, name)
		if err != nil {
			return fmt.Errorf("rate limit check for %s: %w", name, err)
		}
		if !allowed {
			e.logger.WithField("provider", name).Warn("rate limit exceeded, skipping provider")
			continue
		}

		for attempt := 1; attempt <= e.maxAttempts; attempt++ {
			err := p.SendEmail(ctx, email)
			if err == nil {
				br.RecordSuccess()
				e.logger.WithFields(logrus.Fields{
					"provider":  name,
					"recipient": email.RecipientEmail,
				}).Info("email sent")
				return nil
			}

			br.RecordFailure()
			lastErr = err
			e.logger.WithFields(logrus.Fields{
				"provider": name,
				"attempt":  attempt,
			}).WithError(err).Warn("send attempt failed")

			// Backoff applies to every failure, the provider's last
			// attempt included, so failover to the next provider is
			// also delayed.
			if err := sleep(ctx, e.backoff(attempt)); err != nil {
				return err
			}
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
	}
	return ErrAllProvidersFailed
}

// backoff returns 2^attempt * baseDelay.
func (e *Engine) backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * e.baseDelay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
