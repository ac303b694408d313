package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const newsAPIName = "newsapi"

// NewsAPIProvider 主数据源 newsapi.org
type NewsAPIProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNewsAPIProvider(apiKey, baseURL string, timeout time.Duration) *NewsAPIProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://newsapi.org/v2"
	}
	return &NewsAPIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (p *NewsAPIProvider) Name() string {
	return newsAPIName
}

func (p *NewsAPIProvider) DisplayName() string { return "NewsAPI" }
func (p *NewsAPIProvider) BaseURL() string     { return p.baseURL }

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (p *NewsAPIProvider) FetchHeadlines(ctx context.Context, q Query) ([]NewsItem, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSizeOrDefault(q.PageSize)))
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}

	resp, err := p.get(ctx, "/top-headlines", params)
	if err != nil {
		return nil, err
	}
	return p.toItems(resp.Articles, q.Category, q.Country)
}

// Search 对应 /everything 接口
func (p *NewsAPIProvider) Search(ctx context.Context, q SearchQuery) ([]NewsItem, error) {
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("pageSize", strconv.Itoa(pageSizeOrDefault(q.PageSize)))
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}

	resp, err := p.get(ctx, "/everything", params)
	if err != nil {
		return nil, err
	}
	return p.toItems(resp.Articles, "", "")
}

func (p *NewsAPIProvider) get(ctx context.Context, path string, params url.Values) (*newsAPIResponse, error) {
	if p.apiKey == "" {
		return nil, errors.New("newsapi: api key not configured")
	}
	params.Set("apiKey", p.apiKey)

	var resp newsAPIResponse
	if err := getJSON(ctx, p.client, p.baseURL+path, params, &resp); err != nil {
		if resp.Message != "" {
			return nil, fmt.Errorf("newsapi: %w: %s", err, resp.Message)
		}
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi: status %q: %s", resp.Status, resp.Message)
	}
	return &resp, nil
}

func (p *NewsAPIProvider) toItems(articles []newsAPIArticle, category, country string) ([]NewsItem, error) {
	items := make([]NewsItem, 0, len(articles))
	for _, a := range articles {
		// 被下架的文章 newsapi 仍会返回占位条目
		if a.Title == "" || a.URL == "" || a.Title == "[Removed]" {
			continue
		}
		var published time.Time
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			published = t
		}
		var categories []string
		if category != "" {
			categories = []string{category}
		}
		items = append(items, NewsItem{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.URLToImage,
			PublishedAt: published,
			SourceID:    a.Source.ID,
			SourceName:  a.Source.Name,
			Author:      a.Author,
			Categories:  categories,
			Country:     country,
			APISource:   newsAPIName,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("newsapi: %w", ErrNoResult)
	}
	return items, nil
}
