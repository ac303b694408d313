package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/ai"
	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/recommend"
	"github.com/LJTian/NewsHub/internal/scheduler"
	"github.com/LJTian/NewsHub/internal/storage"
)

// app 各子命令共用的组件
type app struct {
	store  *storage.Store
	cache  cache.Cache
	news   *aggregator.Service
	scorer *recommend.Scorer
	sched  *scheduler.Scheduler
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	var c cache.Cache = cache.Nop{}
	if cfg.Redis.Addr != "" {
		c = cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	providers, err := buildProviders(cfg.Providers)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	news := aggregator.New(providers, processor.NewSimpleProcessor(), store, c, aggregator.Options{
		Country:     cfg.Providers.Country,
		SweepDelay:  cfg.Providers.SweepDelay,
		CallTimeout: cfg.Providers.Timeout,
		Scraper:     collector.NewEnricher(cfg.Providers.Timeout),
	})
	// 确保各个数据源的状态记录存在
	if err := news.EnsureProviders(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	var embedder ai.Embedder
	var indexer scheduler.Indexer
	if cfg.OpenAI.APIKey != "" {
		e, err := ai.NewOpenAI(ai.Config{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		embedder = e
	} else {
		slog.Info("openai api key not set, embeddings disabled")
	}

	var ranker recommend.Ranker
	if cfg.Ranker.Endpoint != "" {
		ranker = recommend.NewHTTPRanker(cfg.Ranker.Endpoint, cfg.Ranker.Timeout)
	}
	scorer := recommend.NewScorer(store, ranker, embedder)
	if embedder != nil {
		indexer = scorer
	}

	sched, err := scheduler.New(scheduler.DefaultJobs(scheduler.Deps{
		Sweeper:    news,
		Indexer:    indexer,
		Maintainer: store,
		Retention:  cfg.Database.Retention,
		Cron:       cfg.Cron,
	}), scheduler.FetchNews)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	slog.Info("providers ready", "chain", news.Providers())
	return &app{store: store, cache: c, news: news, scorer: scorer, sched: sched}, nil
}

func (a *app) Close() {
	a.sched.Stop()
	if err := a.cache.Close(); err != nil {
		slog.Warn("close cache", "err", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("close store", "err", err)
	}
}

// buildProviders 按优先级组装数据源链：NewsAPI → NewsData → RSS → Hacker News → 内置兜底数据。
// 未配置 key 的 API 数据源直接跳过。
func buildProviders(cfg config.ProvidersConfig) ([]collector.Provider, error) {
	var providers []collector.Provider
	if cfg.NewsAPI.Key != "" {
		providers = append(providers, collector.NewNewsAPIProvider(cfg.NewsAPI.Key, cfg.NewsAPI.BaseURL, cfg.Timeout))
	}
	if cfg.NewsData.Key != "" {
		providers = append(providers, collector.NewNewsDataProvider(cfg.NewsData.Key, cfg.NewsData.BaseURL, cfg.Timeout))
	}
	if len(cfg.RSSFeeds) > 0 {
		feeds := make([]collector.Feed, 0, len(cfg.RSSFeeds))
		for _, f := range cfg.RSSFeeds {
			feeds = append(feeds, collector.Feed{URL: f.URL, Category: f.Category})
		}
		providers = append(providers, collector.NewRSSProvider(feeds, cfg.Timeout))
	}
	if cfg.HackerNews.Enabled {
		providers = append(providers, collector.NewHackerNewsProvider(cfg.HackerNews.BaseURL, cfg.Timeout))
	}

	fallback, err := collector.NewFallbackProvider()
	if err != nil {
		return nil, fmt.Errorf("load fallback dataset: %w", err)
	}
	return append(providers, fallback), nil
}
