package aggregator

import (
	"context"
	"log/slog"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
)

const (
	enrichBatch  = 20
	enrichWindow = 48 * time.Hour
	maxMetaRunes = 1000
)

// PageScraper 读取文章原页面的元信息，*collector.Enricher 实现了它
type PageScraper interface {
	Scrape(ctx context.Context, pageURL string) (collector.PageMeta, error)
}

// EnrichRecent 为近期缺图或缺摘要的文章抓取原页面补全，返回更新的条数
func (s *Service) EnrichRecent(ctx context.Context) (int, error) {
	if s.scraper == nil {
		return 0, nil
	}
	list, err := s.store.MissingMeta(ctx, s.now().Add(-enrichWindow), enrichBatch)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, a := range list {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		meta, err := s.scraper.Scrape(ctx, a.URL)
		if err != nil {
			slog.Warn("enrich: scrape error", "id", a.ID, "url", a.URL, "err", err)
			continue
		}

		var image, desc string
		if a.ImageURL == "" {
			image = meta.Image
		}
		if a.Description == "" {
			desc = truncateRunes(meta.Description, maxMetaRunes)
		}
		if image == "" && desc == "" {
			continue
		}
		if err := s.store.UpdateMeta(ctx, a.ID, image, desc); err != nil {
			slog.Warn("enrich: update error", "id", a.ID, "err", err)
			continue
		}
		updated++
	}
	slog.Info("enrich: done", "candidates", len(list), "updated", updated)
	return updated, nil
}

func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
