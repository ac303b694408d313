package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const rssName = "rss"

// Feed 一个 RSS/Atom 源，Category 为该源文章的默认分类
type Feed struct {
	URL      string
	Category string
}

// RSSProvider 从配置的 RSS 源读取文章，位于两个 API 数据源之后、兜底数据之前
type RSSProvider struct {
	feeds   []Feed
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewRSSProvider(feeds []Feed, timeout time.Duration) *RSSProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = newHTTPClient(timeout)
	return &RSSProvider{feeds: feeds, parser: parser, timeout: timeout}
}

func (p *RSSProvider) Name() string {
	return rssName
}

func (p *RSSProvider) DisplayName() string {
	return fmt.Sprintf("RSS (%d feeds)", len(p.feeds))
}

func (p *RSSProvider) BaseURL() string {
	if len(p.feeds) == 0 {
		return ""
	}
	return p.feeds[0].URL
}

func (p *RSSProvider) FetchHeadlines(ctx context.Context, q Query) ([]NewsItem, error) {
	var items []NewsItem
	for _, f := range p.feeds {
		if q.Category != "" && !strings.EqualFold(f.Category, q.Category) {
			continue
		}
		fctx, cancel := context.WithTimeout(ctx, p.timeout)
		feed, err := p.parser.ParseURLWithContext(f.URL, fctx)
		cancel()
		if err != nil {
			slog.Warn("rss: parse feed failed", "url", f.URL, "error", err)
			continue
		}
		items = append(items, feedItems(feed, f)...)
	}

	// 多个源混排时按发布时间倒序截断
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if size := pageSizeOrDefault(q.PageSize); len(items) > size {
		items = items[:size]
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("rss: %w", ErrNoResult)
	}
	return items, nil
}

func feedItems(feed *gofeed.Feed, f Feed) []NewsItem {
	out := make([]NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil || it.Title == "" || it.Link == "" {
			continue
		}
		var published time.Time
		switch {
		case it.PublishedParsed != nil:
			published = *it.PublishedParsed
		case it.UpdatedParsed != nil:
			published = *it.UpdatedParsed
		}
		author := ""
		if it.Author != nil {
			author = it.Author.Name
		}
		image := ""
		if it.Image != nil {
			image = it.Image.URL
		}
		categories := make([]string, 0, len(it.Categories)+1)
		if f.Category != "" {
			categories = append(categories, f.Category)
		}
		categories = append(categories, it.Categories...)

		out = append(out, NewsItem{
			Title:       it.Title,
			Description: it.Description,
			Content:     it.Content,
			URL:         it.Link,
			ImageURL:    image,
			PublishedAt: published,
			SourceID:    feed.Link,
			SourceName:  feed.Title,
			Author:      author,
			Categories:  categories,
			Language:    feed.Language,
			APISource:   rssName,
		})
	}
	return out
}
