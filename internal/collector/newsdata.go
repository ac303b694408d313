package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	newsDataName = "newsdata"
	// newsdata.io 的 pubDate 为 UTC，不带时区
	newsDataTimeLayout = "2006-01-02 15:04:05"
	// 免费套餐返回的正文占位
	newsDataPaidOnly = "ONLY AVAILABLE IN PAID PLANS"
)

// NewsDataProvider 备用数据源 newsdata.io
type NewsDataProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNewsDataProvider(apiKey, baseURL string, timeout time.Duration) *NewsDataProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://newsdata.io/api/1"
	}
	return &NewsDataProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (p *NewsDataProvider) Name() string {
	return newsDataName
}

func (p *NewsDataProvider) DisplayName() string { return "NewsData.io" }
func (p *NewsDataProvider) BaseURL() string     { return p.baseURL }

// newsDataResponse 成功时 results 为数组，失败时为 {message, code} 对象
type newsDataResponse struct {
	Status  string          `json:"status"`
	Results json.RawMessage `json:"results"`
}

type newsDataError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type newsDataArticle struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	PubDate     string   `json:"pubDate"`
	ImageURL    string   `json:"image_url"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	Creator     []string `json:"creator"`
	Category    []string `json:"category"`
	Language    string   `json:"language"`
	Country     []string `json:"country"`
}

func (p *NewsDataProvider) FetchHeadlines(ctx context.Context, q Query) ([]NewsItem, error) {
	params := url.Values{}
	params.Set("size", strconv.Itoa(pageSizeOrDefault(q.PageSize)))
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	articles, err := p.get(ctx, params)
	if err != nil {
		return nil, err
	}
	return toNewsDataItems(articles)
}

func (p *NewsDataProvider) Search(ctx context.Context, q SearchQuery) ([]NewsItem, error) {
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("size", strconv.Itoa(pageSizeOrDefault(q.PageSize)))
	articles, err := p.get(ctx, params)
	if err != nil {
		return nil, err
	}
	return toNewsDataItems(articles)
}

func (p *NewsDataProvider) get(ctx context.Context, params url.Values) ([]newsDataArticle, error) {
	if p.apiKey == "" {
		return nil, errors.New("newsdata: api key not configured")
	}
	params.Set("apikey", p.apiKey)

	var resp newsDataResponse
	err := getJSON(ctx, p.client, p.baseURL+"/latest", params, &resp)
	if err != nil || resp.Status != "success" {
		var apiErr newsDataError
		_ = json.Unmarshal(resp.Results, &apiErr)
		if err == nil {
			err = fmt.Errorf("status %q", resp.Status)
		}
		if apiErr.Message != "" {
			return nil, fmt.Errorf("newsdata: %w: %s", err, apiErr.Message)
		}
		return nil, fmt.Errorf("newsdata: %w", err)
	}

	var articles []newsDataArticle
	if err := json.Unmarshal(resp.Results, &articles); err != nil {
		return nil, fmt.Errorf("newsdata: decode results: %w", err)
	}
	return articles, nil
}

func toNewsDataItems(articles []newsDataArticle) ([]NewsItem, error) {
	items := make([]NewsItem, 0, len(articles))
	for _, a := range articles {
		if a.Title == "" || a.Link == "" {
			continue
		}
		var published time.Time
		if t, err := time.ParseInLocation(newsDataTimeLayout, a.PubDate, time.UTC); err == nil {
			published = t
		}
		content := a.Content
		if strings.EqualFold(strings.TrimSpace(content), newsDataPaidOnly) {
			content = ""
		}
		sourceName := a.SourceName
		if sourceName == "" {
			sourceName = a.SourceID
		}
		country := ""
		if len(a.Country) > 0 {
			country = a.Country[0]
		}
		items = append(items, NewsItem{
			Title:       a.Title,
			Description: a.Description,
			Content:     content,
			URL:         a.Link,
			ImageURL:    a.ImageURL,
			PublishedAt: published,
			SourceID:    a.SourceID,
			SourceName:  sourceName,
			Author:      strings.Join(a.Creator, ", "),
			Categories:  a.Category,
			Language:    a.Language,
			Country:     country,
			APISource:   newsDataName,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("newsdata: %w", ErrNoResult)
	}
	return items, nil
}
