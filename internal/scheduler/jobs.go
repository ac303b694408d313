package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/storage"
)

// Sweeper 采集与补全，*aggregator.Service 实现了它
type Sweeper interface {
	FetchAllCategories(ctx context.Context) ([]storage.Article, error)
	EnrichRecent(ctx context.Context) (int, error)
}

// Indexer 向量更新，*recommend.Scorer 实现了它
type Indexer interface {
	UpdateEmbeddings(ctx context.Context) (int, error)
}

// Maintainer 清理与统计，*storage.Store 实现了它
type Maintainer interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, since time.Time, top int) (*storage.Stats, error)
}

type Deps struct {
	Sweeper    Sweeper
	Indexer    Indexer // 可为 nil，未配置向量服务时跳过
	Maintainer Maintainer
	Retention  time.Duration
	Cron       config.CronConfig
	Now        func() time.Time
}

const defaultRetention = 30 * 24 * time.Hour

// DefaultJobs 采集、向量、补全、清理与每日统计五个任务
func DefaultJobs(d Deps) []Job {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	retention := d.Retention
	if retention <= 0 {
		retention = defaultRetention
	}

	return []Job{
		{
			Name: FetchNews,
			Spec: d.Cron.Fetch,
			Run: func(ctx context.Context) error {
				articles, err := d.Sweeper.FetchAllCategories(ctx)
				if err != nil {
					return err
				}
				slog.Info("fetchNews: sweep finished", "articles", len(articles))
				return nil
			},
		},
		{
			Name: UpdateEmbeddings,
			Spec: d.Cron.Embeddings,
			Run: func(ctx context.Context) error {
				if d.Indexer == nil {
					slog.Info("updateEmbeddings: no embedder configured, skipped")
					return nil
				}
				_, err := d.Indexer.UpdateEmbeddings(ctx)
				return err
			},
		},
		{
			Name: EnrichArticles,
			Spec: d.Cron.Enrich,
			Run: func(ctx context.Context) error {
				_, err := d.Sweeper.EnrichRecent(ctx)
				return err
			},
		},
		{
			Name: CleanupOldArticles,
			Spec: d.Cron.Cleanup,
			Run: func(ctx context.Context) error {
				cutoff := now().Add(-retention)
				n, err := d.Maintainer.DeleteOlderThan(ctx, cutoff)
				if err != nil {
					return err
				}
				slog.Info("cleanupOldArticles: removed", "count", n, "cutoff", cutoff.Format(time.RFC3339))
				return nil
			},
		},
		{
			Name: DailyAnalytics,
			Spec: d.Cron.Analytics,
			Run: func(ctx context.Context) error {
				st, err := d.Maintainer.Stats(ctx, now().Add(-24*time.Hour), 5)
				if err != nil {
					return err
				}
				slog.Info("dailyAnalytics", "total", st.Total, "last24h", st.Recent, "topCategories", st.TopCategories)
				return nil
			},
		},
	}
}
