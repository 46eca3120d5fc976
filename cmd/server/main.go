package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"provenance-relay/config"
	"provenance-relay/internal/api"
	"provenance-relay/internal/broker"
	"provenance-relay/internal/identity"
	"provenance-relay/internal/ledger"
	"provenance-relay/internal/mirror"
	"provenance-relay/internal/redisclient"
	"provenance-relay/internal/service"
	"provenance-relay/internal/store"
	"provenance-relay/internal/util"
	"provenance-relay/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "provenance-relay"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting provenance relay")

	tp, err := util.InitTracer("provenance-relay", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.ApplySchema {
		if err := db.ApplySchema(context.Background()); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	ledgerClient, err := ledger.NewClient(cfg.Ledger.Network, cfg.Ledger.OperatorID, cfg.Ledger.OperatorKey)
	if err != nil {
		logger.Fatal("Failed to initialize ledger client", zap.Error(err))
	}
	defer ledgerClient.Close()
	logger.Info("Ledger client initialized", zap.String("network", cfg.Ledger.Network))

	mirrorClient := mirror.NewClient(cfg.Mirror.BaseURL, cfg.Mirror.Timeout)
	resolver := identity.NewResolver(cfg.Auth.ProviderURL, cfg.Auth.AnonKey, cfg.Auth.Timeout)

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicProvenance)
	defer producer.Close()
	logger.Info("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	registry := service.NewTopicRegistry(db, ledgerClient, eventPublisher)
	submitter := service.NewEventSubmitter(db, db, ledgerClient, redisClient, redisClient, eventPublisher)
	reader := service.NewEventReader(mirrorClient, db, db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var auditWorker *worker.AuditWorker
	if cfg.Kafka.AuditEnabled {
		auditor := service.NewDriftAuditor(reader, db, db)
		auditConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicProvenance, cfg.Kafka.AuditGroup)
		auditWorker = worker.NewAuditWorker(auditConsumer, auditor)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil {
				logger.Error("Audit worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(registry, submitter, reader, resolver, map[string]api.ReadinessCheck{
		"database": db.Ping,
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if auditWorker != nil {
		if err := auditWorker.Stop(); err != nil {
			logger.Error("Failed to stop audit worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
