package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lugx/beacon/internal/collector/events"
	"github.com/lugx/beacon/internal/collector/metrics"
	"github.com/lugx/beacon/internal/collector/service"
	"github.com/lugx/beacon/internal/collector/storage"
	"github.com/lugx/beacon/internal/common/config"
	logutil "github.com/lugx/beacon/internal/common/logger"
	"github.com/lugx/beacon/internal/common/metricsserver"
	"github.com/lugx/beacon/internal/common/redis"
)

func main() {
	configPath := flag.String("c", "configs/collector.yaml", "Path to collector configuration file")
	envFile := flag.String("env", ".env", "Optional dotenv file with CLICKHOUSE_* credentials")
	flag.Parse()

	initialLogger, err := logutil.NewDefaultLogger()
	if err != nil {
		panic(err)
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		initialLogger.Fatal("Failed to load environment file", zap.Error(err))
	}

	initialLogger.Info("Loading configuration", zap.String("path", *configPath))
	absPath, err := config.GetConfigPath(*configPath)
	if err != nil {
		initialLogger.Fatal("Invalid config path", zap.Error(err))
	}
	cfg, err := config.LoadCollectorConfig(absPath)
	if err != nil {
		initialLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	dynamicLogger, err := logutil.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	logger := dynamicLogger.Logger

	logger.Info("Collector starting", zap.String("listen", cfg.Server.Listen))

	// Storage failure is not fatal: /track answers 500 until restart.
	var store storage.Store
	openCtx, openCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ClickHouse.DialTimeout))
	chStore, err := storage.OpenClickHouse(openCtx, storage.ClickHouseOptions{
		Addr:        cfg.ClickHouse.Addr,
		Database:    cfg.ClickHouse.Database,
		Username:    cfg.ClickHouse.Username,
		Password:    cfg.ClickHouse.Password,
		Secure:      cfg.ClickHouse.Secure,
		DialTimeout: time.Duration(cfg.ClickHouse.DialTimeout),
		Table:       cfg.ClickHouse.Table,
	}, logger)
	openCancel()
	if err != nil {
		logger.Error("ClickHouse connection failed", zap.Error(err))
	} else {
		store = chStore
		defer chStore.Close()
	}

	var emitters []events.EventEmitter
	var stats service.StatsReader

	if cfg.Redis != nil {
		redisClient, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		counters := events.NewCounterEmitter(redisClient, time.Duration(cfg.Server.Timeout), logger)
		emitters = append(emitters, counters)
		stats = counters
	}

	if cfg.EventLogging.File.Enabled {
		fileEmitter, err := events.NewFileEmitter(cfg.EventLogging.File, logger)
		if err != nil {
			logger.Fatal("Failed to create event log", zap.Error(err))
		}
		emitters = append(emitters, fileEmitter)
	}

	emitter := events.NewMultiEmitter(emitters...)
	logger.Info("Event emitters configured", zap.Int("count", emitter.Len()))

	metricsCollector := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace, logger)
	metricsServer, err := metricsserver.StartMetricsServer(
		cfg.Metrics.Enabled,
		cfg.Metrics.Listen,
		cfg.Metrics.Path,
		metricsCollector,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	handler := service.NewHandler(service.Deps{
		Store:   store,
		Emitter: emitter,
		Stats:   stats,
		Metrics: metricsCollector,
		Timeout: time.Duration(cfg.Server.Timeout),
		Logger:  logger,

		ClientIPHeaders: cfg.Server.ClientIPHeaders,
	})
	server := service.NewServer(
		service.CreateHTTPHandler(handler, service.CORSConfig{AllowOrigin: cfg.Server.CORSOrigin}),
		service.ServerOptions{
			ReadTimeout:        time.Duration(cfg.Server.Timeout) * 2,
			WriteTimeout:       time.Duration(cfg.Server.Timeout) * 2,
			MaxRequestBodySize: cfg.Server.MaxBodySize,
		},
		logger,
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(cfg.Server.Listen); err != nil {
			serverErrCh <- err
		}
	}()

	logger.Info("Collector ready",
		zap.String("listen", cfg.Server.Listen),
		zap.Bool("storage", store != nil),
		zap.Bool("metrics", cfg.Metrics.Enabled))
	dynamicLogger.SwitchToConfiguredLevel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		logger.Error("Server error", zap.Error(err))
	}

	dynamicLogger.EnsureInfoLevelForShutdown()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// after the server: no more Emit calls
	if err := emitter.Close(); err != nil {
		logger.Error("Failed to close event emitters", zap.Error(err))
	}

	logger.Info("Collector stopped")
}
