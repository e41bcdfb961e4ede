package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"casetrack-backend/controller"
	"casetrack-backend/dal"
	"casetrack-backend/models"
	"casetrack-backend/notification"
	"casetrack-backend/repository"
	"casetrack-backend/services"
	"casetrack-backend/utils"
	"casetrack-backend/utils/logger"
	"casetrack-backend/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

var config *models.Config

func Init() {
	var err error
	config, err = utils.GetConfig()
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	Init()

	appLogger := newLogger(config)
	appLogger.Infof("Starting %s %s (%s) with %s store", config.AppName, config.AppVersion, config.AppEnv, config.StoreBackend)

	store, err := newStore(config, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize case store: %v", err)
	}

	rdb, err := newRedisClient(config)
	if err != nil {
		appLogger.Fatalf("Failed to connect to redis: %v", err)
	}

	repo := repository.NewRepository(store, rdb, config, appLogger)
	dispatcher := notification.NewDispatcher(newNotifier(config, appLogger), appLogger)

	// Only DynamoDB tables are provisioned
	var provisioner services.ProvisioningWorker
	var infraWorker *worker.Worker
	if db, ok := store.(*dal.DynamoDBClient); ok {
		infraWorker, err = worker.NewWorker(config, db, appLogger)
		if err != nil {
			appLogger.Fatalf("Failed to create provisioning worker: %v", err)
		}
		if err := infraWorker.Start(); err != nil {
			appLogger.Fatalf("Failed to start provisioning worker: %v", err)
		}
		provisioner = infraWorker
	}

	svc := services.NewService(repo, store, provisioner, dispatcher, appLogger, config)

	if config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	controller.NewController(svc, config, appLogger).RegisterRoutes(r, config.BasePath)

	srv := &http.Server{
		Addr:              config.AppHost + ":" + config.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Infof("Starting server on %s:%s", config.AppHost, config.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorf("Server forced to shutdown: %v", err)
	}
	if infraWorker != nil {
		infraWorker.Stop()
	}
	dispatcher.Wait()
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			appLogger.Errorf("Failed to close redis client: %v", err)
		}
	}
	if err := store.Close(ctx); err != nil {
		appLogger.Errorf("Failed to close case store: %v", err)
	}

	appLogger.Info("Server exited")
}

func newLogger(cfg *models.Config) logger.Logger {
	if cfg.LogFile == "" {
		return logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	return logger.NewFileLogger(cfg.LogLevel, cfg.LogFormat, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
}

func newStore(cfg *models.Config, log logger.Logger) (dal.CaseStoreInterface, error) {
	switch cfg.StoreBackend {
	case "dynamodb":
		return dal.NewDynamoDBClient(cfg, log)
	case "mongo":
		return dal.NewMongoStore(cfg, log)
	case "memory":
		log.Warn("Using the in-memory case store; data is lost on restart")
		return dal.NewMemoryStore(log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// newRedisClient returns nil when no address is configured
func newRedisClient(cfg *models.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func newNotifier(cfg *models.Config, log logger.Logger) notification.Notifier {
	if cfg.SMTPHost == "" || len(cfg.NotifyRecipients) == 0 {
		return notification.NopNotifier{}
	}
	return notification.NewEmailNotifier(cfg, log)
}
