package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	hackerNewsName    = "hackernews"
	hnBaseURL         = "https://hacker-news.firebaseio.com/v0"
	hnConcurrency     = 10
	hnItemTimeout     = 5 * time.Second
	hnDiscussionURL   = "https://news.ycombinator.com/item?id=%d"
	hnDefaultCategory = "technology"
)

// HackerNewsProvider 通过官方 Firebase API 读取 Hacker News 热门故事，只提供科技类头条
type HackerNewsProvider struct {
	baseURL string
	client  *http.Client
}

func NewHackerNewsProvider(baseURL string, timeout time.Duration) *HackerNewsProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = hnBaseURL
	}
	return &HackerNewsProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (h *HackerNewsProvider) Name() string {
	return hackerNewsName
}

func (h *HackerNewsProvider) DisplayName() string { return "Hacker News" }
func (h *HackerNewsProvider) BaseURL() string     { return h.baseURL }

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

// FetchHeadlines 只响应不限分类或 technology 的查询，其他分类返回 ErrNoResult 交给下一个数据源
func (h *HackerNewsProvider) FetchHeadlines(ctx context.Context, q Query) ([]NewsItem, error) {
	if q.Category != "" && !strings.EqualFold(q.Category, hnDefaultCategory) {
		return nil, ErrNoResult
	}

	var ids []int
	if err := getJSON(ctx, h.client, h.baseURL+"/topstories.json", nil, &ids); err != nil {
		return nil, fmt.Errorf("hackernews: top stories: %w", err)
	}
	limit := pageSizeOrDefault(q.PageSize)
	if len(ids) > limit {
		ids = ids[:limit]
	}

	type indexedItem struct {
		idx  int
		item hnItem
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, hnConcurrency)
		items = make([]indexedItem, 0, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, id int) {
			defer wg.Done()
			defer func() { <-sem }()

			itemCtx, cancel := context.WithTimeout(ctx, hnItemTimeout)
			defer cancel()
			var it hnItem
			if err := getJSON(itemCtx, h.client, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), nil, &it); err != nil {
				slog.Debug("hackernews: fetch item failed", "id", id, "err", err)
				return
			}
			if it.Title == "" || it.Type != "story" {
				return
			}

			mu.Lock()
			items = append(items, indexedItem{idx: idx, item: it})
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	// 保持榜单顺序
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })

	results := make([]NewsItem, 0, len(items))
	for _, ii := range items {
		it := ii.item
		itemURL := it.URL
		if itemURL == "" {
			itemURL = fmt.Sprintf(hnDiscussionURL, it.ID)
		}
		results = append(results, NewsItem{
			Title:       it.Title,
			Description: fmt.Sprintf("%d points, %d comments on Hacker News", it.Score, it.Descendants),
			Content:     it.Text,
			URL:         itemURL,
			PublishedAt: time.Unix(it.Time, 0).UTC(),
			SourceID:    hackerNewsName,
			SourceName:  "Hacker News",
			Author:      it.By,
			Categories:  []string{hnDefaultCategory},
			Language:    "en",
			APISource:   hackerNewsName,
		})
	}

	if len(results) == 0 {
		return nil, ErrNoResult
	}
	return results, nil
}
