// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"credit-workers/internal/api"
	"credit-workers/internal/common/camunda"
	"credit-workers/internal/common/config"
	"credit-workers/internal/common/database"
	"credit-workers/internal/common/embedding"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/observability"
	"credit-workers/internal/common/vectorindex"
	"credit-workers/pkg/registry"

	ipc "credit-workers/internal/workers/catalog/index-product-catalog"
	irc "credit-workers/internal/workers/catalog/index-rank-catalog"
	bcp "credit-workers/internal/workers/credit/build-customer-profile"
	ec "credit-workers/internal/workers/credit/evaluate-credit"
	mcp "credit-workers/internal/workers/credit/match-credit-products"
	rcr "credit-workers/internal/workers/credit/resolve-customer-rank"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel prometheus exporter unavailable", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]api.HealthCheck{}

	reg, err := registry.LoadOrDefault(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	if problems := reg.Check(); len(problems) > 0 {
		zapLog.Fatal("activity registry is inconsistent", zap.Errors("problems", problems))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	checks["postgres"] = pg.Ping
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis (embedding cache) with retry ---
	var redis *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		checks["redis"] = redis.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Vector index backend ---
	var index vectorindex.Index
	switch cfg.Search.Backend {
	case "memory":
		index = vectorindex.NewMemoryIndex()
		zapLog.Warn("using in-memory vector index; catalogs are lost on restart")
	default:
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		index = vectorindex.NewElasticsearchIndex(esClient, log)
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Embedding provider ---
	embedder, err := embedding.New(ctx, cfg.AI.Embedding, redisClient(redis), log)
	if err != nil {
		zapLog.Fatal("embedding provider init failed", zap.Error(err))
	}
	zapLog.Info("Embedding provider ready",
		zap.String("provider", embedder.Name()),
		zap.String("model", cfg.AI.Embedding.Model),
		zap.Bool("cached", redis != nil && cfg.AI.Embedding.CacheTTL > 0),
	)

	// --- Handlers ---
	profiles := bcp.NewHandler(bcp.LoadConfig(cfg), pg.DB, log)
	ranks := rcr.NewHandler(rcr.LoadConfig(cfg), embedder, index, log)
	products := mcp.NewHandler(mcp.LoadConfig(cfg), embedder, index, log)
	evaluator := ec.NewHandler(ec.LoadConfig(cfg), profiles, ranks, products, log)
	rankCatalog := irc.NewHandler(irc.LoadConfig(cfg), embedder, index, log)
	productSource := ipc.NewPostgresProductSource(pg.DB)
	productCatalog := ipc.NewHandler(ipc.LoadConfig(cfg), embedder, index, productSource, log)

	// --- Camunda job workers ---
	var workers *camunda.Registry
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClient(ctx, cfg.Camunda, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewRegistry(zeebe.GetClient(), obs, log)
		handlers := map[string]camunda.JobHandler{
			bcp.TaskType: profiles,
			rcr.TaskType: ranks,
			mcp.TaskType: products,
			ec.TaskType:  evaluator,
			irc.TaskType: rankCatalog,
			ipc.TaskType: productCatalog,
		}
		for taskType, handler := range handlers {
			workers.Register(taskType, workerConfig(cfg, reg, taskType), handler)
		}
		zapLog.Info("Workers registered", zap.Strings("taskTypes", workers.TaskTypes()))
	} else {
		zapLog.Info("Camunda disabled, serving the HTTP API only")
	}

	// --- HTTP API ---
	server := api.NewServer(api.Options{
		Registry:  reg,
		Evaluator: evaluator,
		Ranks:     rankCatalog,
		Products:  productCatalog,
		Catalog:   productSource,
		Checks:    checks,
		Logger:    log,
	})
	httpServer := server.NewHTTPServer(fmt.Sprintf(":%d", cfg.Server.Port))

	go func() {
		zapLog.Info("HTTP API listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP API failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if workers != nil {
		workers.Close()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP API", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// workerConfig falls back to the registry timeout for workers missing from
// the config file and to the Camunda-wide job limit.
func workerConfig(cfg *config.Config, reg *registry.ActivityRegistry, taskType string) config.WorkerConfig {
	wc := config.GetWorkerConfig(cfg, taskType)
	if _, configured := cfg.Workers[taskType]; !configured {
		if a, ok := reg.Find(taskType); ok {
			if timeout, err := a.TimeoutDuration(); err == nil && timeout > 0 {
				wc.Timeout = int(timeout.Milliseconds())
			}
		}
	}
	if wc.MaxJobsActive == 0 {
		wc.MaxJobsActive = cfg.Camunda.MaxJobsActive
	}
	return wc
}

func redisClient(r *database.RedisClient) *goredis.Client {
	if r == nil {
		return nil
	}
	return r.Client
}
