package collector

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fallbackName = "fallback"

//go:embed fallback.yaml
var fallbackYAML []byte

type fallbackArticle struct {
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Content     string        `yaml:"content"`
	URL         string        `yaml:"url"`
	ImageURL    string        `yaml:"image_url"`
	Age         time.Duration `yaml:"age"`
	SourceID    string        `yaml:"source_id"`
	SourceName  string        `yaml:"source_name"`
	Author      string        `yaml:"author"`
	Category    string        `yaml:"category"`
}

// FallbackProvider 内置的静态兜底数据，链路上的最后一环，加载成功后不会失败
type FallbackProvider struct {
	articles []fallbackArticle
	now      func() time.Time
}

// NewFallbackProvider 使用内嵌的 fallback.yaml
func NewFallbackProvider() (*FallbackProvider, error) {
	return LoadFallbackProvider(fallbackYAML)
}

// LoadFallbackProvider 从 YAML 列表构造兜底数据源
func LoadFallbackProvider(data []byte) (*FallbackProvider, error) {
	var articles []fallbackArticle
	if err := yaml.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("fallback: parse dataset: %w", err)
	}
	return &FallbackProvider{articles: articles, now: time.Now}, nil
}

func (p *FallbackProvider) Name() string {
	return fallbackName
}

func (p *FallbackProvider) DisplayName() string { return "Built-in dataset" }
func (p *FallbackProvider) BaseURL() string     { return "" }

// FetchHeadlines 按分类过滤并按 PageSize 截断；结果可能为空，但不返回错误
func (p *FallbackProvider) FetchHeadlines(_ context.Context, q Query) ([]NewsItem, error) {
	size := pageSizeOrDefault(q.PageSize)
	now := p.now()

	items := make([]NewsItem, 0, size)
	for _, a := range p.articles {
		if len(items) >= size {
			break
		}
		if q.Category != "" && !strings.EqualFold(a.Category, q.Category) {
			continue
		}
		items = append(items, NewsItem{
			Title:       a.Title,
			Description: a.Description,
			Content:     a.Content,
			URL:         a.URL,
			ImageURL:    a.ImageURL,
			PublishedAt: now.Add(-a.Age),
			SourceID:    a.SourceID,
			SourceName:  a.SourceName,
			Author:      a.Author,
			Categories:  []string{a.Category},
			Language:    "en",
			Country:     q.Country,
			APISource:   fallbackName,
		})
	}
	return items, nil
}
