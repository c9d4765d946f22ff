package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	contractsmq "kitdash/contracts/mq"
	"kitdash/internal/cache"
	"kitdash/internal/config"
	"kitdash/internal/mqhandler"
	"kitdash/internal/repository"
	"kitdash/pkg/db"
	"kitdash/pkg/logger"
	"kitdash/pkg/mq"
	"kitdash/pkg/otel"
	redisclient "kitdash/pkg/redis"
	"kitdash/pkg/util"
)

// 活动日志订阅的事件
var activityRoutingKeys = []string{
	contractsmq.RoutingKeyChecklistToggled,
	contractsmq.RoutingKeyPhaseStatusChanged,
	contractsmq.RoutingKeyOnboardingComplete,
	contractsmq.RoutingKeyClientUpdated,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting worker service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "kitdash-worker"
	}
	shutdownTracing, err := otel.Init(cfg.OTel, logger)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer shutdownTracing()
	}

	// Redis
	rdb := redisclient.NewRedisClient(cfg.Redis, logger)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Duration(cfg.Worker.DedupTTLHours)*time.Hour, logger)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	// DLQ publisher
	dlq, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("DLQ publisher init failed", zap.Error(err))
	}
	defer dlq.Close()
	if err := dlq.DeclareDLQ(activityRoutingKeys...); err != nil {
		logger.Fatal("DLQ declare failed", zap.Error(err))
	}

	activityHandler := mqhandler.NewActivityHandler(
		repository.NewActivityRepository(dbConn),
		cache.NewDashboardCache(rdb, cfg.Dashboard.CacheTTL(), logger),
		deduper,
		logger,
	)

	for _, key := range activityRoutingKeys {
		queue := key + ".activity.q"
		logger.Info("Init consumer", zap.String("queue", queue))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, queue, key, logger)
		if err != nil {
			logger.Fatal("Consumer init failed", zap.String("queue", queue), zap.Error(err))
		}
		consumer.SetHandler(activityHandler.For(key))
		consumer.SetDeadLetter(dlq)
		consumer.SetRetryLimit(retryCounter, cfg.Worker.MaxRetries)

		go func() {
			if err := consumer.StartConsuming(); err != nil {
				logger.Fatal("Consumer crashed", zap.String("queue", queue), zap.Error(err))
			}
		}()
		defer consumer.Close()
	}

	logger.Info("Worker service running")
	<-ctx.Done()
	logger.Info("Shutting down worker service")
}
