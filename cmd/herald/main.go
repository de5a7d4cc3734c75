package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/heraldhq/herald/internal/api"
	"github.com/heraldhq/herald/internal/circuitbreaker"
	"github.com/heraldhq/herald/internal/config"
	"github.com/heraldhq/herald/internal/deliver"
	"github.com/heraldhq/herald/internal/dispatch"
	"github.com/heraldhq/herald/internal/metrics"
	"github.com/heraldhq/herald/internal/observ"
	"github.com/heraldhq/herald/internal/queue"
	"github.com/heraldhq/herald/internal/redis"
	"github.com/heraldhq/herald/internal/store"
	"github.com/heraldhq/herald/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting herald",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	// Initialize database connection
	ctx := context.Background()
	database, err := store.New(ctx, store.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	notifications := store.NewNotifications(database, logger)
	settings := store.NewSettings(database, logger)

	// Initialize Redis for dedup and rate limiting
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("redis unavailable, dedup and rate limiting disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	}

	var deduper queue.Deduper
	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		deduper = redis.NewDeduper(redisClient)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  cfg.RateLimitRequests,
			Window: time.Duration(cfg.RateLimitWindow) * time.Second,
		})
		defer redisClient.Close()
	}

	// Initialize SQS producer and consumer
	if cfg.SQSQueueURL == "" {
		return fmt.Errorf("SQS_QUEUE_URL is required")
	}
	queueCfg := queue.Config{
		Region:   cfg.SQSRegion,
		QueueURL: cfg.SQSQueueURL,
	}

	producer, err := queue.NewProducer(ctx, queueCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create sqs producer: %w", err)
	}
	defer producer.Close()

	consumer, err := queue.NewConsumer(ctx, queueCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create sqs consumer: %w", err)
	}
	defer consumer.Close()

	// External delivery channels
	pushClient := deliver.NewPushClient(deliver.PushConfig{
		InstanceID: cfg.PushInstanceID,
		SecretKey:  cfg.PushSecretKey,
		BaseURL:    cfg.PushBaseURL,
	})

	var mailer deliver.EmailSender
	if m, err := deliver.NewMailer(ctx, deliver.SESConfig{
		Region:    cfg.AWSRegion,
		FromEmail: cfg.SESFromEmail,
	}, logger); err != nil {
		logger.Warn("ses mailer unavailable, email channel disabled", zap.Error(err))
	} else {
		mailer = m
	}

	slack := deliver.NewSlackNotifier(deliver.SlackConfig{
		WebhookURL: cfg.SlackWebhookURL,
		Channel:    cfg.SlackChannel,
	})

	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("push"), logger)
	dispatcher := deliver.NewDispatcher(pushClient, mailer, breaker)

	logger.Info("delivery channels initialized",
		zap.Bool("push_enabled", dispatcher.PushEnabled()),
		zap.Bool("email_enabled", mailer != nil),
		zap.Bool("slack_enabled", slack.Enabled()),
	)

	// Notification stream
	var publisher dispatch.StreamPublisher
	if cfg.SNSTopicARN != "" {
		p, err := stream.NewPublisher(ctx, cfg.SNSTopicARN)
		if err != nil {
			logger.Warn("sns publisher unavailable, notification stream disabled",
				zap.Error(err),
			)
		} else {
			publisher = p
		}
	}

	// Dispatch pipeline and worker
	service := dispatch.New(notifications, settings, dispatcher, publisher, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	worker := queue.NewWorker(consumer, deduper, service, logger)
	go worker.Start(workerCtx)

	logger.Info("dispatch worker started")

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	// API routes
	handler := api.NewHandler(logger, notifications, producer, breaker)
	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, slack, logger, api.ClientKeyFunc))

		r.Post("/events", handler.IngestEvent)
		r.Get("/notifications", handler.ListNotifications)
		r.Delete("/notifiables/{kind}/{id}", handler.PurgeNotifiable)

		// Operator endpoints for the push delivery breaker.
		r.Get("/ops/breaker", handler.GetBreakerStats)
		r.Post("/ops/breaker/reset", handler.ResetBreaker)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Stop consuming before draining in-flight requests.
		workerCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
