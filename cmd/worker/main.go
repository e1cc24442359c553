package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bedtime-server/internal/config"
	"bedtime-server/internal/database"
	"bedtime-server/internal/generation"
	"bedtime-server/internal/logger"
	"bedtime-server/internal/repository"
	"bedtime-server/internal/service"
	"bedtime-server/internal/worker"
)

const metricsPort = "9091"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	zap.ReplaceGlobals(zapLogger)
	zap.L().Info("Starting story generation worker")

	go startMetricsServer(zapLogger)

	if cfg.PushgatewayURL != "" {
		if err := worker.InitMetricsPusher(cfg.PushgatewayURL); err != nil {
			zap.L().Warn("Failed to initialize Pushgateway pusher, continuing without it", zap.Error(err))
		} else {
			worker.StartMetricsPusher(15 * time.Second)
			defer worker.CleanupMetrics()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	pgPool, err := database.NewPgxPool(connectCtx, cfg, zapLogger)
	connectCancel()
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	zap.L().Info("Connected to Redis")

	mqConn, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer mqConn.Close()
	zap.L().Info("Connected to RabbitMQ")

	ch, err := mqConn.Channel()
	if err != nil {
		zap.L().Fatal("Failed to open RabbitMQ channel", zap.Error(err))
	}
	defer ch.Close()

	// --- Dependency Injection ---
	aiClient, err := service.NewAIClient(cfg, zapLogger)
	if err != nil {
		zap.L().Fatal("Failed to initialize AI client", zap.Error(err))
	}

	promptRepo := repository.NewPgPromptRepository(pgPool, zapLogger)
	promptProvider := service.NewPromptProvider(promptRepo, zapLogger)
	if err := promptProvider.LoadInitialPrompts(ctx); err != nil {
		zap.L().Fatal("Failed to load prompt templates", zap.Error(err))
	}

	storyAI := service.NewStoryAI(aiClient, zapLogger)

	workflowCfg := generation.DefaultConfig()
	workflowCfg.QualityThreshold = cfg.QualityThreshold
	workflowCfg.MaxAttempts = cfg.MaxAttempts
	workflowCfg.Temperatures = cfg.Temperatures
	workflowCfg.MaxTokens = cfg.AIMaxTokens
	workflowCfg.GenerationModel = cfg.GenerationModel
	workflowCfg.ValidationModel = cfg.ValidationModel
	workflowCfg.AssessmentModel = cfg.AssessmentModel

	workflow, err := generation.NewWorkflow(
		workflowCfg,
		storyAI,
		generation.NewPromptValidator(storyAI, cfg.ValidationModel, zapLogger),
		generation.NewQualityAssessor(storyAI, cfg.AssessmentModel, zapLogger),
		promptProvider,
		zapLogger,
	)
	if err != nil {
		zap.L().Fatal("Failed to build generation workflow", zap.Error(err))
	}

	storyRepo := repository.NewPgStoryRepository(pgPool, zapLogger)
	storyCache := repository.NewRedisStoryCache(redisClient, cfg.StoryCacheTTL, zapLogger)

	notifier, err := service.NewRabbitMQNotifier(ch, zapLogger)
	if err != nil {
		zap.L().Fatal("Failed to create notifier", zap.Error(err))
	}

	taskHandler := worker.NewTaskHandler(workflow, storyRepo, storyCache, notifier, zapLogger)

	consumer, err := worker.NewConsumer(ch, taskHandler, zapLogger)
	if err != nil {
		zap.L().Fatal("Failed to set up consumer", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			zap.L().Error("Consumer stopped with error", zap.Error(err))
		}
	}()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stopChan:
		zap.L().Info("Shutdown signal received, stopping consumer...")
		cancel()
		<-done
	case <-done:
		zap.L().Warn("Consumer finished on its own, shutting down")
	}

	zap.L().Info("Story generation worker stopped")
}

// startMetricsServer поднимает HTTP-эндпоинты /metrics и /health воркера.
func startMetricsServer(log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", worker.MetricsHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	log.Info("Starting worker metrics server", zap.String("port", metricsPort))
	if err := http.ListenAndServe(":"+metricsPort, mux); err != nil {
		log.Error("Worker metrics server stopped", zap.Error(err))
	}
}

// connectRabbitMQ подключается к RabbitMQ с несколькими попытками.
func connectRabbitMQ(url string, log *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		log.Warn("RabbitMQ connection failed, retrying...",
			zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries), zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}
