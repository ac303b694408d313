package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/cache"
	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/storage"
)

var (
	// ErrAllProvidersFailed 链路上所有数据源（含兜底数据）都没有产出
	ErrAllProvidersFailed = errors.New("all news providers failed")
	ErrUnknownCategory    = errors.New("unknown category")
)

const (
	headlinesTTL = 5 * time.Minute
	sweepTTL     = 10 * time.Minute
	searchTTL    = 5 * time.Minute

	sweepCacheKey   = "news:all"
	sweepPageSize   = 10
	defaultPageSize = 20
	maxPageSize     = 100

	defaultCallTimeout = 10 * time.Second
)

// Store 编排层用到的存储能力，*storage.Store 实现了它
type Store interface {
	SaveArticle(ctx context.Context, p processor.ProcessedArticle) (*storage.Article, bool, error)
	SearchArticles(ctx context.Context, q, sortBy string, page, pageSize int) ([]storage.Article, int64, error)
	EnsureProvider(ctx context.Context, code, name, baseURL string) (*storage.Provider, error)
	RecordProviderResult(ctx context.Context, code string, callErr error, at time.Time) error
	MissingMeta(ctx context.Context, since time.Time, limit int) ([]storage.Article, error)
	UpdateMeta(ctx context.Context, id, imageURL, description string) error
}

type Options struct {
	// Country 全量采集使用的默认国家
	Country    string
	SweepDelay time.Duration
	// CallTimeout 单次数据源调用的超时
	CallTimeout time.Duration
	Scraper     PageScraper
}

// Service 按顺序尝试各数据源，首个成功者的结果经清洗、按 URL 去重入库后写入缓存
type Service struct {
	providers []collector.Provider
	processor *processor.SimpleProcessor
	store     Store
	cache     cache.Cache
	scraper   PageScraper

	country     string
	sweepDelay  time.Duration
	callTimeout time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(providers []collector.Provider, p *processor.SimpleProcessor, store Store, c cache.Cache, opts Options) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	country := strings.ToLower(strings.TrimSpace(opts.Country))
	if country == "" {
		country = "us"
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Service{
		providers:   providers,
		processor:   p,
		store:       store,
		cache:       c,
		scraper:     opts.Scraper,
		country:     country,
		sweepDelay:  opts.SweepDelay,
		callTimeout: timeout,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Providers 返回按尝试顺序排列的数据源名称
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// EnsureProviders 为每个数据源建立状态记录
func (s *Service) EnsureProviders(ctx context.Context) error {
	for _, p := range s.providers {
		name, baseURL := p.Name(), ""
		if d, ok := p.(collector.Describer); ok {
			name, baseURL = d.DisplayName(), d.BaseURL()
		}
		if _, err := s.store.EnsureProvider(ctx, p.Name(), name, baseURL); err != nil {
			return fmt.Errorf("ensure provider %s: %w", p.Name(), err)
		}
	}
	return nil
}

// FetchTopHeadlines 单次头条查询：缓存 → 数据源链 → 清洗入库 → 写缓存
func (s *Service) FetchTopHeadlines(ctx context.Context, country, category string, pageSize int) ([]storage.Article, error) {
	country = strings.ToLower(strings.TrimSpace(country))
	if country == "" {
		country = s.country
	}
	if category != "" {
		c, ok := processor.ParseCategory(category)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		category = string(c)
	}
	pageSize = clampPageSize(pageSize)

	key := fmt.Sprintf("news:headlines:%s:%s:%d", country, category, pageSize)
	if cached, ok := cache.GetJSON[[]storage.Article](ctx, s.cache, key); ok {
		return cached, nil
	}

	q := collector.Query{Country: country, Category: category, PageSize: pageSize}
	a, err := s.firstSuccess(ctx, "headlines", s.providers, func(ctx context.Context, p collector.Provider) ([]collector.NewsItem, error) {
		return p.FetchHeadlines(ctx, q)
	})
	if err != nil {
		slog.Error("aggregator: fetch headlines failed", "country", country, "category", category, "err", err)
		return nil, err
	}

	articles := s.persist(ctx, a)
	if len(articles) > 0 {
		cache.SetJSON(ctx, s.cache, key, articles, headlinesTTL)
	}
	slog.Info("aggregator: headlines fetched", "provider", a.provider, "country", country, "category", category, "fetched", len(a.items), "returned", len(articles))
	return articles, nil
}

// FetchAllCategories 依次采集每个分类；单个分类失败只记日志，不中断整轮
func (s *Service) FetchAllCategories(ctx context.Context) ([]storage.Article, error) {
	if cached, ok := cache.GetJSON[[]storage.Article](ctx, s.cache, sweepCacheKey); ok {
		return cached, nil
	}

	var all []storage.Article
	for i, c := range processor.AllCategories() {
		if i > 0 && s.sweepDelay > 0 {
			if err := s.sleep(ctx, s.sweepDelay); err != nil {
				return all, err
			}
		}
		articles, err := s.FetchTopHeadlines(ctx, s.country, string(c), sweepPageSize)
		if err != nil {
			slog.Warn("aggregator: category sweep skipped", "category", c, "err", err)
			continue
		}
		all = append(all, articles...)
	}

	if len(all) > 0 {
		cache.SetJSON(ctx, s.cache, sweepCacheKey, all, sweepTTL)
	}
	slog.Info("aggregator: category sweep done", "articles", len(all))
	return all, nil
}

// SearchResult 搜索结果及总数
type SearchResult struct {
	Articles []storage.Article `json:"articles"`
	Total    int64             `json:"total"`
}

// Search 先查本地库，本地没有结果时再依次询问支持搜索的数据源
// sortBy: publishedAt / popularity / relevancy
func (s *Service) Search(ctx context.Context, q, sortBy string, page, pageSize int) (SearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return SearchResult{}, errors.New("empty search query")
	}
	if page < 1 {
		page = 1
	}
	pageSize = clampPageSize(pageSize)

	key := fmt.Sprintf("news:search:%s:%s:%d:%d", strings.ToLower(q), sortBy, page, pageSize)
	if cached, ok := cache.GetJSON[SearchResult](ctx, s.cache, key); ok {
		return cached, nil
	}

	list, total, err := s.store.SearchArticles(ctx, q, sortBy, page, pageSize)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search store: %w", err)
	}
	res := SearchResult{Articles: list, Total: total}

	if len(list) == 0 {
		var searchers []collector.Provider
		for _, p := range s.providers {
			if _, ok := p.(collector.Searcher); ok {
				searchers = append(searchers, p)
			}
		}
		sq := collector.SearchQuery{Query: q, SortBy: sortBy, Page: page, PageSize: pageSize}
		a, err := s.firstSuccess(ctx, "search", searchers, func(ctx context.Context, p collector.Provider) ([]collector.NewsItem, error) {
			return p.(collector.Searcher).Search(ctx, sq)
		})
		if err != nil {
			slog.Warn("aggregator: search found nothing", "q", q, "err", err)
			return res, nil
		}
		articles := s.persist(ctx, a)
		res = SearchResult{Articles: articles, Total: int64(len(articles))}
	}

	if len(res.Articles) > 0 {
		cache.SetJSON(ctx, s.cache, key, res, searchTTL)
	}
	return res, nil
}

// attempt 一次数据源调用的结果
type attempt struct {
	provider string
	items    []collector.NewsItem
	err      error
}

type callFunc func(ctx context.Context, p collector.Provider) ([]collector.NewsItem, error)

// firstSuccess 按顺序尝试，遇到第一个成功的数据源即停止
func (s *Service) firstSuccess(ctx context.Context, op string, providers []collector.Provider, call callFunc) (attempt, error) {
	errs := make([]error, 0, len(providers))
	for _, p := range providers {
		a := s.try(ctx, p, call)
		s.record(ctx, a)
		if a.err == nil {
			return a, nil
		}
		slog.Warn("aggregator: provider failed", "op", op, "provider", a.provider, "err", a.err)
		errs = append(errs, fmt.Errorf("%s: %w", a.provider, a.err))
	}
	return attempt{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// try 调用单个数据源。调用使用与请求解绑的 context，请求被放弃时进行中的调用仍会跑到完成或超时
func (s *Service) try(ctx context.Context, p collector.Provider, call callFunc) (a attempt) {
	a.provider = p.Name()
	defer func() {
		if r := recover(); r != nil {
			a.items, a.err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
	defer cancel()

	a.items, a.err = call(callCtx, p)
	if a.err == nil && len(a.items) == 0 {
		a.err = collector.ErrNoResult
	}
	return a
}

func (s *Service) record(ctx context.Context, a attempt) {
	if err := s.store.RecordProviderResult(context.WithoutCancel(ctx), a.provider, a.err, s.now()); err != nil {
		slog.Warn("aggregator: record provider status error", "provider", a.provider, "err", err)
	}
}

// persist 清洗并逐条入库；已存在的 URL 返回已存储的记录，单条失败跳过
func (s *Service) persist(ctx context.Context, a attempt) []storage.Article {
	processed := s.processor.Process(a.items)
	out := make([]storage.Article, 0, len(processed))
	for _, p := range processed {
		stored, _, err := s.store.SaveArticle(ctx, p)
		if err != nil {
			slog.Error("aggregator: save article error", "provider", a.provider, "url", p.URL, "err", err)
			continue
		}
		out = append(out, *stored)
	}
	return out
}

func clampPageSize(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
