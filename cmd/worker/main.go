package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	appconfig "projectportal/config"
	"projectportal/internal/repository"
	"projectportal/internal/worker"
	"projectportal/pkg/db"
	"projectportal/pkg/logger"
	"projectportal/pkg/mq"
	"projectportal/pkg/otel"
	"projectportal/pkg/outbox"
	redisclient "projectportal/pkg/redis"
	"projectportal/pkg/util"
)

func main() {
	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logger.NewLogger(cfg.Env)
	defer logger.Sync()

	logger.Info("Starting worker service...")

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName: cfg.Otel.ServiceName + "-worker",
		Endpoint:    cfg.Otel.Endpoint,
		Enabled:     cfg.Otel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Outbox dispatcher
	outboxRepo := outbox.NewRepository(dbConn)
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger).
		WithInterval(cfg.Worker.OutboxInterval).
		WithBatchSize(cfg.Worker.OutboxBatchSize)
	go dispatcher.Start(ctx)

	// Overdue sweep
	progressRepo := repository.NewProgressRepository(dbConn, outboxRepo, logger)
	deduper := util.NewDeduper(rdb, 30*24*time.Hour, logger)
	sweeper := worker.NewOverdueSweeper(progressRepo, publisher, deduper, logger)

	c := cron.New()
	if _, err := sweeper.Schedule(c, cfg.Worker.OverdueSchedule, cfg.Worker.OverdueTimeout); err != nil {
		logger.Fatal("Invalid overdue schedule",
			zap.String("schedule", cfg.Worker.OverdueSchedule),
			zap.Error(err),
		)
	}
	c.Start()
	logger.Info("Overdue sweep scheduled", zap.String("schedule", cfg.Worker.OverdueSchedule))

	// Health endpoint
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if !publisher.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}
		if err := dbConn.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{Addr: ":" + cfg.Worker.HealthPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	// 等待正在运行的 sweep 结束
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("Worker stopped")
}
