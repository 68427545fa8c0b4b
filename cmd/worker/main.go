package main

import (
	"context"
	"log"
	"os"
	"time"

	temporalclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/llm"
	"github.com/efebarandurmaz/llmfactory/internal/llm/providers"
	"github.com/efebarandurmaz/llmfactory/internal/logging"
	"github.com/efebarandurmaz/llmfactory/internal/observability"
	"github.com/efebarandurmaz/llmfactory/internal/server"
	temporalmod "github.com/efebarandurmaz/llmfactory/internal/temporal"
	"github.com/efebarandurmaz/llmfactory/internal/vector"
	"github.com/efebarandurmaz/llmfactory/internal/vector/backend"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("dotenv: %v", err)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("settings: %v", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()

	tcfg := observability.DefaultTracingConfig()
	tcfg.ServiceName = cfg.Tracing.ServiceName
	tcfg.Insecure = cfg.Tracing.Insecure
	if cfg.Tracing.Enabled {
		tcfg.OTLPEndpoint = cfg.Tracing.Endpoint
	}
	tp, err := observability.InitTracing(ctx, tcfg)
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	embeddings, err := llm.NewEmbeddingFactory(settings, providers.Embedding(), cfg.Embedding.Provider,
		llm.WithLogger(logger), llm.WithMetrics(metrics))
	if err != nil {
		logger.Fatal("embedding factory", zap.Error(err))
	}

	store, err := backend.Open(ctx, cfg.Vector, settings.Database.ServiceURL)
	if err != nil {
		logger.Fatal("vector store", zap.Error(err))
	}

	indexer := vector.NewIndexer(embeddings, store, vector.WithLogger(logger), vector.WithMetrics(metrics))

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		logger.Fatal("temporal client", zap.Error(err))
	}
	defer c.Close()

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue, &temporalmod.Activities{Indexer: indexer, Store: store})
	if err != nil {
		logger.Fatal("worker", zap.Error(err))
	}
	logger.Info("worker started", zap.String("task_queue", cfg.Temporal.TaskQueue))

	health := server.NewHealth(server.WithMetricsHandler(metrics.Handler()), server.WithLogger(logger))
	health.Register("vector-store", server.PingChecker(store.Backend(), store.Ping))
	health.Register("temporal", server.PingChecker("temporal", func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	health.Register("embedding-provider", server.ProviderChecker(settings, llm.KindEmbedding, cfg.Embedding.Provider))
	health.Register("completion-provider", server.ProviderChecker(settings, llm.KindCompletion, cfg.Completion.Provider))

	shutdown := server.NewShutdown(30*time.Second, logger)
	serveCtx, stopServing := context.WithCancel(ctx)
	shutdown.Register(server.Hook{Name: "health-server", Priority: server.PriorityHTTP, Fn: func(context.Context) error {
		health.SetReady(false)
		stopServing()
		return nil
	}})
	shutdown.Register(server.WorkerHook(w.Stop))
	shutdown.Register(server.TracingHook(tp.Shutdown))
	shutdown.Register(server.StoreHook(store.Close))
	shutdown.Start()

	go func() {
		if err := health.Run(serveCtx, cfg.Server.Addr); err != nil {
			logger.Error("health server", zap.Error(err))
			shutdown.Trigger()
		}
	}()
	health.SetReady(true)

	<-shutdown.Done()
	logger.Info("worker stopped")
}
