package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relayq/relayq/app/logging"
	"github.com/relayq/relayq/app/queue"
	"github.com/relayq/relayq/app/service"
	"github.com/relayq/relayq/config"
)

var consumeCmd = &cobra.Command{
	Use:   "consume [consumer_name]",
	Short: "Start a delivery worker on the Redis stream queue",
	Long:  "Start a worker that reads email jobs from the Redis stream and drives the provider failover engine.",
	Args:  cobra.ExactArgs(1),
	Run:   runConsume,
}

// init registers the consume command.
func init() {
	rootCmd.AddCommand(consumeCmd)
}

// runConsume starts the email queue worker.
func runConsume(_ *cobra.Command, args []string) {
	consumerName := args[0]

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	rdb, err := newRedisClient(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	store, err := buildCache(cfg, rdb)
	if err != nil {
		logger.Fatalf("Failed to build cache: %v", err)
	}

	engine, err := buildEngine(cfg, logger, store)
	if err != nil {
		logger.Fatalf("Failed to build failover engine: %v", err)
	}

	audit, auditDB, err := buildAudit(cfg)
	if err != nil {
		logger.Fatalf("Failed to open delivery log: %v", err)
	}
	if auditDB != nil {
		defer auditDB.Close()
	}

	jobQueue := queue.NewRedisStream(rdb, logger, consumerName)
	emailService := service.NewEmailService(logger, store, jobQueue, engine, audit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobQueue.Start(ctx, emailService.ProcessJob)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Received shutdown signal, stopping worker...")
	if err := jobQueue.Close(); err != nil {
		logger.Errorf("Worker shutdown error: %v", err)
	}
	logger.Info("Worker stopped")
}
