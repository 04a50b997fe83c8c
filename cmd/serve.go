package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relayq/relayq/app/auth"
	"github.com/relayq/relayq/app/cache"
	"github.com/relayq/relayq/app/controller"
	"github.com/relayq/relayq/app/idempotency"
	"github.com/relayq/relayq/app/logging"
	"github.com/relayq/relayq/app/queue"
	"github.com/relayq/relayq/app/ratelimit"
	"github.com/relayq/relayq/app/service"
	"github.com/relayq/relayq/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and delivery worker",
	Long:  "Start the HTTP API. With the in-memory queue the delivery worker runs in-process; with the Redis queue submissions are published for separate consume workers.",
	Run:   runServe,
}

// init registers the serve command.
func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires dependencies and runs until interrupted.
func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(cfg.LogLevel)

	var rdb *redis.Client
	if cfg.CacheBackend == config.BackendRedis || cfg.QueueBackend == config.BackendRedis {
		rdb, err = newRedisClient(cfg)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
	}

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

	var jobQueue queue.Queue
	switch cfg.QueueBackend {
	case config.BackendRedis:
		logger.Info("using Redis stream queue")
		hostname, _ := os.Hostname()
		jobQueue = queue.NewRedisStream(rdb, logger, fmt.Sprintf("serve-%s", hostname))
	default:
		logger.Info("using in-memory FIFO queue")
		jobQueue = queue.NewMemory(logger)
	}
	defer jobQueue.Close()

	emailService := service.NewEmailService(logger, store, jobQueue, engine, audit)

	// The submit API never blocks on delivery: the in-memory backend runs
	// its worker here, while the Redis backend leaves consumption to
	// dedicated consume processes.
	if cfg.QueueBackend == config.BackendMemory {
		jobQueue.Start(context.Background(), emailService.ProcessJob)
	}

	e := setupHTTPServer(cfg, logger, store, controller.NewEmailController(logger, emailService))

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
		logger.Infof("Starting HTTP server on %s", httpAddr)
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}

	logger.Info("Server stopped")
}

// setupHTTPServer configures the Echo HTTP server and routes.
func setupHTTPServer(cfg *config.Config, logger *logrus.Logger, store cache.Cache, emailController *controller.EmailController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	email := e.Group("/email", ratelimit.Middleware(cfg.HTTPRateLimitMax, cfg.HTTPRateLimitWindow), auth.Middleware())
	email.POST("/send", emailController.SendEmail, idempotency.Middleware(logger, store))
	email.GET("/status/:key", emailController.GetStatus)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	return e
}
