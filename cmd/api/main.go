package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kitdash/internal/api"
	"kitdash/internal/cache"
	"kitdash/internal/config"
	"kitdash/internal/httpserver"
	"kitdash/internal/identity"
	"kitdash/internal/repository"
	"kitdash/internal/service/auth"
	"kitdash/internal/service/dashboard"
	"kitdash/internal/service/onboarding"
	"kitdash/internal/service/quiz"
	"kitdash/pkg/circuitbreaker"
	"kitdash/pkg/db"
	"kitdash/pkg/logger"
	"kitdash/pkg/metrics"
	"kitdash/pkg/mq"
	"kitdash/pkg/otel"
	"kitdash/pkg/outbox"
	redisclient "kitdash/pkg/redis"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logger.NewLoggerWithLevel(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "kitdash-api"
	}
	shutdownTracing, err := otel.Init(cfg.OTel, logger)
	if err != nil {
		logger.Warn("Tracing disabled", zap.Error(err))
	} else {
		defer shutdownTracing()
	}

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis, logger)
	defer rdb.Close()

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	clientRepo := repository.NewClientRepository(dbConn)
	stateRepo := repository.NewPhaseStateRepository(dbConn)
	quizRepo := repository.NewQuizRepository(dbConn)
	onboardingRepo := repository.NewOnboardingRepository(dbConn)
	adminRepo := repository.NewAdminUserRepository(dbConn)
	activityRepo := repository.NewActivityRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	rules, err := onboarding.NewRuleSet(cfg.Onboarding)
	if err != nil {
		logger.Fatal("Invalid onboarding rules", zap.Error(err))
	}

	// Init Services
	dashboardCache := cache.NewDashboardCache(rdb, cfg.Dashboard.CacheTTL(), logger)
	dashboardService := dashboard.NewService(clientRepo, stateRepo, quizRepo, dashboardCache, logger)
	onboardingService := onboarding.NewService(
		onboardingRepo,
		clientRepo,
		quizRepo,
		onboarding.NewDraftStore(rdb, cfg.Onboarding.DraftTTL()),
		rules,
		logger,
	)
	authService := auth.NewService(quizRepo, clientRepo, adminRepo, cfg.JWT.Secret, cfg.JWT.TTL(), logger)
	quizService := quiz.NewService(quizRepo, clientRepo, logger)
	replayService := outbox.NewReplayService(outboxRepo, publisher, logger)

	// Init Outbox Dispatcher
	breakerCfg := circuitbreaker.DefaultConfig()
	breakerCfg.OnStateChange = func(from, to circuitbreaker.State) {
		metrics.SetCircuitBreakerState("outbox_publisher", int(to))
		logger.Warn("Outbox breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
	}
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, logger).
		WithBreaker(circuitbreaker.NewCircuitBreaker(breakerCfg)).
		WithInterval(time.Duration(cfg.Outbox.IntervalMS) * time.Millisecond).
		WithBatchSize(cfg.Outbox.BatchSize).
		WithMaxRetries(cfg.Outbox.MaxRetries)
	go dispatcher.Start(ctx)

	// Router
	router := httpserver.NewRouter(
		httpserver.Handlers{
			Project:    api.NewProjectHandler(dashboardService, logger),
			Auth:       api.NewAuthHandler(authService, logger),
			Quiz:       api.NewQuizHandler(quizService, logger),
			Onboarding: api.NewOnboardingHandler(onboardingService, logger),
			Admin:      api.NewAdminHandler(dashboardService, replayService, activityRepo, logger),
		},
		identity.NewResolver(cfg.JWT.Secret, cfg.Auth.AllowEmailFallback, logger),
		map[string]httpserver.Pinger{
			"db":    dbConn.Ping,
			"redis": func(ctx context.Context) error { return redisclient.Ping(ctx, rdb) },
			"mq":    publisher.Ping,
		},
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting kitdash API", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down kitdash API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
