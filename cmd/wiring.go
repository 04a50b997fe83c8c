package cmd

import (
	"context"
	"database/sql"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/relayq/relayq/app/cache"
	"github.com/relayq/relayq/app/failover"
	"github.com/relayq/relayq/app/provider"
	"github.com/relayq/relayq/app/ratelimit"
	"github.com/relayq/relayq/app/repository"
	"github.com/relayq/relayq/config"
)

// newRedisClient connects and pings the shared Redis instance.
func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// buildCache selects the cache backend from the startup tag. The Redis
// client is shared with the queue when both are Redis-backed.
func buildCache(cfg *config.Config, rdb *redis.Client) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return cache.NewMemory(), nil
	case config.BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis cache requires a redis connection")
		}
		return cache.NewRedis(rdb), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.CacheBackend)
	}
}

// buildProviders constructs the ordered transport list from config tags.
func buildProviders(cfg *config.Config) ([]provider.MailSender, error) {
	var senders []provider.MailSender
	for _, tag := range cfg.Providers {
		switch tag {
		case "ses":
			awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			senders = append(senders, provider.NewSES(awsCfg, cfg.SESSourceEmail))
		case "smtp":
			senders = append(senders, provider.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SESSourceEmail))
		case "mock":
			senders = append(senders, provider.NewMock("mock"))
		default:
			return nil, fmt.Errorf("unsupported provider: %s", tag)
		}
	}
	return senders, nil
}

// buildEngine wires providers, breakers and the shared limiter.
func buildEngine(cfg *config.Config, logger *logrus.Logger, store cache.Cache) (*failover.Engine, error) {
	senders, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(store, cfg.RateLimitMax, cfg.RateLimitWindow)
	return failover.New(logger, senders, limiter), nil
}

// buildAudit opens the optional delivery log. A missing DSN disables it.
func buildAudit(cfg *config.Config) (*repository.DeliveryLog, *sql.DB, error) {
	if cfg.MySQLDSN == "" {
		return nil, nil, nil
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpen)
	db.SetMaxIdleConns(cfg.MySQLMaxIdle)
	db.SetConnMaxLifetime(cfg.MySQLMaxLife)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping mysql: %w", err)
	}
	return repository.NewDeliveryLog(db), db, nil
}
