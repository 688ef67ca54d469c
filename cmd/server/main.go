package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	appconfig "projectportal/config"
	mqcontract "projectportal/contracts/mq"
	"projectportal/internal/chat"
	"projectportal/internal/handler"
	"projectportal/internal/httpserver"
	"projectportal/internal/mqhandler"
	"projectportal/internal/progress"
	"projectportal/internal/project"
	"projectportal/internal/repository"
	"projectportal/internal/service"
	"projectportal/internal/template"
	"projectportal/pkg/db"
	"projectportal/pkg/logger"
	"projectportal/pkg/mq"
	"projectportal/pkg/otel"
	"projectportal/pkg/outbox"
	redisclient "projectportal/pkg/redis"
	"projectportal/pkg/util"
)

const serviceVersion = "1.0.0"

func main() {
	// 1. Load config
	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logger.NewLogger(cfg.Env)
	defer logger.Sync()

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    cfg.Otel.ServiceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("OpenTelemetry initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Init DB and Redis
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redisclient.Ping(ctx, rdb); err != nil {
		logger.Warn("Redis not reachable at startup", zap.Error(err))
	}

	// 3. Init MQ publisher (outbox replay)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// 4. Init repositories
	outboxRepo := outbox.NewRepository(dbConn)
	userRepo := repository.NewUserRepository(dbConn)
	allocationRepo := repository.NewAllocationRepository(dbConn)
	templateRepo := repository.NewTemplateRepository(dbConn)
	progressRepo := repository.NewProgressRepository(dbConn, outboxRepo, logger)
	projectRepo := repository.NewProjectRepository(dbConn, outboxRepo, logger)
	chatRepo := repository.NewChatRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn, logger)

	// 5. Init services
	templateSvc := template.NewService(templateRepo, logger)
	if _, err := templateSvc.SeedDefaults(ctx); err != nil {
		logger.Fatal("Failed to seed default templates", zap.Error(err))
	}
	engine := progress.NewEngine(progressRepo, templateSvc, logger)
	allocationSvc := service.NewAllocationService(allocationRepo, userRepo, logger)
	projectSvc := project.NewService(projectRepo, allocationSvc, engine, logger)
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL, logger)

	// 6. Chat: hub + fan-out
	hub := chat.NewHub(logger)
	var fanout chat.Fanout = chat.NewLocalFanout(hub)
	if cfg.Chat.RedisFanout {
		rf := chat.NewRedisFanout(rdb, hub, logger).WithChannel(cfg.Chat.FanoutChannel)
		go func() {
			if err := rf.Run(ctx); err != nil {
				logger.Error("chat fan-out subscriber stopped", zap.Error(err))
			}
		}()
		fanout = rf
	}
	chatRouter := chat.NewRouter(chatRepo, fanout, logger)
	history := chat.NewHistory(chatRepo, allocationRepo, cfg.Chat.HistoryLimit)
	notificationSvc := service.NewNotificationService(notificationRepo, fanout, logger)

	// 7. Init consumers
	deduper := util.NewDeduper(rdb, 24*time.Hour, logger)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)
	approvedHandler := mqhandler.NewProjectApprovedHandler(engine, deduper, logger)
	notifyHandler := mqhandler.NewMilestoneNotificationHandler(notificationSvc, allocationRepo, logger)

	bindings := []struct {
		queue      string
		routingKey string
		handle     mq.MessageHandler
	}{
		{"project.approved.autocomplete.q", mqcontract.RoutingProjectApproved, approvedHandler.Handle},
		{"milestone.completed.notify.q", mqcontract.RoutingMilestoneCompleted, notifyHandler.HandleCompleted},
		{"milestone.unlocked.notify.q", mqcontract.RoutingMilestoneUnlocked, notifyHandler.HandleUnlocked},
		{"milestone.overdue.notify.q", mqcontract.RoutingMilestoneOverdue, notifyHandler.HandleOverdue},
	}

	var consumers []*mq.Consumer
	var wg sync.WaitGroup
	for _, b := range bindings {
		consumer, err := mq.NewConsumer(cfg.MQ.URL, b.queue, b.routingKey, logger)
		if err != nil {
			logger.Fatal("failed to init consumer", zap.String("queue", b.queue), zap.Error(err))
		}
		consumer.SetHandler(b.handle)
		consumer.WithRetryLimit(retryCounter, cfg.MQ.MaxRetries)
		consumers = append(consumers, consumer)

		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			logger.Info("Starting consumer", zap.String("queue", queue))
			if err := consumer.StartConsuming(); err != nil {
				logger.Error("consumer stopped", zap.String("queue", queue), zap.Error(err))
				stop()
			}
		}(b.queue)
	}

	// 8. Init handlers and router
	replayService := outbox.NewReplayService(outboxRepo, publisher, logger)
	handlers := httpserver.Handlers{
		Auth:         handler.NewAuthHandler(authSvc, logger),
		Student:      handler.NewStudentHandler(engine, projectSvc, allocationSvc, userRepo, logger),
		Teacher:      handler.NewTeacherHandler(engine, projectSvc, allocationSvc, logger),
		Template:     handler.NewTemplateHandler(templateSvc, engine, projectSvc, allocationSvc, logger),
		Admin:        handler.NewAdminHandler(allocationSvc, replayService, logger),
		Chat:         handler.NewChatHandler(history, logger),
		Notification: handler.NewNotificationHandler(notificationSvc, logger),
		WS:           chat.NewWSHandler(chatRouter, hub, allocationRepo, authSvc, cfg.Chat.SendBuffer, logger),
	}
	router := httpserver.NewRouter(handlers, authSvc, map[string]httpserver.ReadyCheck{
		"db":    dbConn.Ping,
		"redis": func(ctx context.Context) error { return redisclient.Ping(ctx, rdb) },
	}, logger)

	// 9. Run server until signal
	if err := httpserver.NewServer(cfg.Server, router, logger).Run(ctx); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}

	for _, c := range consumers {
		c.Stop()
	}
	wg.Wait()
	for _, c := range consumers {
		c.Close()
	}
	logger.Info("Server stopped")
}
