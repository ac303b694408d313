package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	userAgent        = "NewsHubBot/1.0"
	maxResponseBytes = 4 << 20 // 4MB
	defaultTimeout   = 10 * time.Second
	defaultPageSize  = 20
)

// ErrNoResult 表示数据源本次没有产出任何文章，编排层据此切换到下一个数据源
var ErrNoResult = errors.New("provider returned no articles")

// NewsItem 统一采集后的基础结构，字段已映射为内部统一的文章形态
type NewsItem struct {
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	PublishedAt time.Time
	SourceID    string
	SourceName  string
	Author      string
	// Categories 为数据源给出的原始分类，按优先级排列；由 processor 选出第一个合法值
	Categories []string
	Language   string
	Country    string
	APISource  string
}

// Query 头条查询参数
type Query struct {
	Country  string
	Category string
	PageSize int
}

// SearchQuery 全文搜索参数
type SearchQuery struct {
	Query    string
	SortBy   string
	Page     int
	PageSize int
}

// Describer 可选接口：数据源的展示名与接口地址，用于数据源状态表
type Describer interface {
	DisplayName() string
	BaseURL() string
}

// Provider 抽象每一个新闻数据源
type Provider interface {
	Name() string
	FetchHeadlines(ctx context.Context, q Query) ([]NewsItem, error)
}

// Searcher 由支持关键词搜索的数据源实现
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]NewsItem, error)
}

func pageSizeOrDefault(n int) int {
	if n <= 0 {
		return defaultPageSize
	}
	return n
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON 发起 GET 请求并把响应体解码到 out。非 2xx 时仍会尝试解码，
// 便于调用方从错误响应里取出 message，此时返回的 error 带状态码。
func getJSON(ctx context.Context, client *http.Client, endpoint string, params url.Values, out any) error {
	u := endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	decodeErr := json.Unmarshal(body, out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode body: %w", decodeErr)
	}
	return nil
}
