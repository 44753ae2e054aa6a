package main

import (
	"context"
	"fmt"
	"time"

	"credit-workers/internal/common/config"
	"credit-workers/internal/common/database"
	"credit-workers/internal/common/embedding"
	apphttp "credit-workers/internal/common/http"
	"credit-workers/internal/common/logger"
	"credit-workers/internal/common/vectorindex"
	ipc "credit-workers/internal/workers/catalog/index-product-catalog"
	irc "credit-workers/internal/workers/catalog/index-rank-catalog"

	goredis "github.com/redis/go-redis/v9"
)

// catalogSink receives rank batches and product sets.
type catalogSink interface {
	LoadRanks(ctx context.Context, ranks []irc.RankInput) (*irc.Output, error)
	LoadProducts(ctx context.Context, input *ipc.Input) (*ipc.Output, error)
	Close()
}

// apiSink posts to a running worker-manager.
type apiSink struct {
	client *apphttp.Client
}

func newAPISink(baseURL string, timeout time.Duration) *apiSink {
	return &apiSink{client: apphttp.NewClient(baseURL, timeout)}
}

func (s *apiSink) LoadRanks(ctx context.Context, ranks []irc.RankInput) (*irc.Output, error) {
	var out irc.Output
	if err := s.client.PostJSON(ctx, "/api/v1/ranks/upload-batch", irc.Input{Ranks: ranks}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *apiSink) LoadProducts(ctx context.Context, input *ipc.Input) (*ipc.Output, error) {
	var out ipc.Output
	if err := s.client.PostJSON(ctx, "/api/v1/products/index", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *apiSink) Close() {}

// directSink embeds and indexes in-process using the worker configuration.
type directSink struct {
	ranks    *irc.Handler
	products *ipc.Handler
	closers  []func() error
}

func newDirectSink(ctx context.Context, cfg *config.Config, withDatabase bool, log logger.Logger) (*directSink, error) {
	s := &directSink{}

	var index vectorindex.Index
	switch cfg.Search.Backend {
	case "memory":
		// only useful for dry runs: the index dies with the process
		index = vectorindex.NewMemoryIndex()
	default:
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		if err := es.Ping(ctx); err != nil {
			return nil, err
		}
		index = vectorindex.NewElasticsearchIndex(es, log)
	}

	var rdb *goredis.Client
	if cfg.Database.Redis.Address != "" && cfg.AI.Embedding.CacheTTL > 0 {
		r, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, r.Close)
		rdb = r.Client
	}

	embedder, err := embedding.New(ctx, cfg.AI.Embedding, rdb, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	var source ipc.ProductSource
	if withDatabase {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		if err := pg.Ping(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		source = ipc.NewPostgresProductSource(pg.DB)
	}

	s.ranks = irc.NewHandler(irc.LoadConfig(cfg), embedder, index, log)
	s.products = ipc.NewHandler(ipc.LoadConfig(cfg), embedder, index, source, log)
	return s, nil
}

func (s *directSink) LoadRanks(ctx context.Context, ranks []irc.RankInput) (*irc.Output, error) {
	return s.ranks.IndexBatch(ctx, ranks)
}

func (s *directSink) LoadProducts(ctx context.Context, input *ipc.Input) (*ipc.Output, error) {
	return s.products.Execute(ctx, input)
}

func (s *directSink) Close() {
	for _, c := range s.closers {
		_ = c()
	}
}
