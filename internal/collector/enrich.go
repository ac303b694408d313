package collector

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// PageMeta 从文章原页面读到的 OpenGraph 信息
type PageMeta struct {
	Image       string
	Description string
}

// Enricher 抓取文章原页面，为缺图/缺摘要的文章补全字段
type Enricher struct {
	timeout time.Duration
}

func NewEnricher(timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Enricher{timeout: timeout}
}

// Scrape 读取 og:image / og:description，没有 og:description 时退回 meta description
func (e *Enricher) Scrape(ctx context.Context, pageURL string) (PageMeta, error) {
	var meta PageMeta
	if err := ctx.Err(); err != nil {
		return meta, err
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxBodySize(maxResponseBytes),
	)
	c.SetRequestTimeout(e.timeout)

	var plainDesc string
	c.OnHTML(`meta[property="og:image"]`, func(el *colly.HTMLElement) {
		if meta.Image == "" {
			meta.Image = strings.TrimSpace(el.Attr("content"))
		}
	})
	c.OnHTML(`meta[property="og:description"]`, func(el *colly.HTMLElement) {
		if meta.Description == "" {
			meta.Description = strings.TrimSpace(el.Attr("content"))
		}
	})
	c.OnHTML(`meta[name="description"]`, func(el *colly.HTMLElement) {
		if plainDesc == "" {
			plainDesc = strings.TrimSpace(el.Attr("content"))
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return meta, err
	}
	if meta.Description == "" {
		meta.Description = plainDesc
	}
	return meta, nil
}
