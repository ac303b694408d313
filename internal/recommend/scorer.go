package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/ai"
	"github.com/LJTian/NewsHub/internal/storage"
)

const (
	trendingWindow  = 24 * time.Hour
	recommendWindow = 7 * 24 * time.Hour

	// SimilarityThreshold 低于（含）此值的候选不返回
	SimilarityThreshold = 0.7
	candidatePool       = 100
	embeddingBatch      = 50
)

// Store 打分用到的存储能力，*storage.Store 实现了它
type Store interface {
	GetArticle(ctx context.Context, id string) (*storage.Article, error)
	ArticlesByIDs(ctx context.Context, ids []string) ([]storage.Article, error)
	TrendingSince(ctx context.Context, since time.Time, limit int) ([]storage.Article, error)
	FindRecent(ctx context.Context, f storage.ArticleFilter) ([]storage.Article, error)
	EmbeddingCandidates(ctx context.Context, excludeID string, limit int) ([]storage.Article, error)
	PendingEmbeddings(ctx context.Context, limit int) ([]storage.Article, error)
	SaveEmbeddings(ctx context.Context, id string, title, content []float32, at time.Time) error
}

// Scorer 热门、个性化推荐与相似文章
type Scorer struct {
	store    Store
	ranker   Ranker
	embedder ai.Embedder
	now      func() time.Time
}

// NewScorer ranker 与 embedder 均可为 nil
func NewScorer(store Store, ranker Ranker, embedder ai.Embedder) *Scorer {
	return &Scorer{store: store, ranker: ranker, embedder: embedder, now: time.Now}
}

// Trending 最近 24 小时发布的文章，按 views、likes、published_at 倒序
func (s *Scorer) Trending(ctx context.Context, limit int) ([]storage.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	list, err := s.store.TrendingSince(ctx, s.now().Add(-trendingWindow), limit)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	SortTrending(list)
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// SortTrending 稳定排序，结果不依赖存储返回的顺序
func SortTrending(list []storage.Article) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Views != b.Views {
			return a.Views > b.Views
		}
		if a.Likes != b.Likes {
			return a.Likes > b.Likes
		}
		return a.PublishedAt.After(b.PublishedAt)
	})
}

// Personalized 优先使用外部排序服务，不可用或出错时走规则推荐；两条路径都排除已读文章
func (s *Scorer) Personalized(ctx context.Context, userID string, prefs storage.Preferences, readURLs []string, limit int) ([]storage.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	if s.ranker != nil {
		ids, err := s.ranker.Rank(ctx, userID, prefs, limit)
		if err == nil && len(ids) > 0 {
			if len(ids) > limit {
				ids = ids[:limit]
			}
			list, err := s.store.ArticlesByIDs(ctx, ids)
			list = excludeRead(list, readURLs)
			if err == nil && len(list) > 0 {
				return list, nil
			}
			if err != nil {
				slog.Warn("recommend: load ranked articles error", "user", userID, "err", err)
			}
		} else if err != nil {
			slog.Warn("recommend: ranker unavailable, using rules", "user", userID, "err", err)
		}
	}
	return s.ruleBased(ctx, prefs, readURLs, limit)
}

func (s *Scorer) ruleBased(ctx context.Context, prefs storage.Preferences, readURLs []string, limit int) ([]storage.Article, error) {
	list, err := s.store.FindRecent(ctx, storage.ArticleFilter{
		Since:       s.now().Add(-recommendWindow),
		Categories:  nonEmpty(prefs.Categories, strings.ToLower),
		Keywords:    nonEmpty(prefs.Keywords, strings.TrimSpace),
		ExcludeURLs: readURLs,
		Limit:       limit,
	})
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	return list, nil
}

// SimilarArticle 相似文章及其余弦相似度
type SimilarArticle struct {
	storage.Article
	Similarity float64 `json:"similarity"`
}

// Similar 与目标文章内容向量的余弦相似度高于阈值的候选，按相似度倒序取前 limit 个；
// 目标不存在或没有向量时返回空
func (s *Scorer) Similar(ctx context.Context, articleID string, limit int) ([]SimilarArticle, error) {
	if limit <= 0 {
		return nil, nil
	}
	target, err := s.store.GetArticle(ctx, articleID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}
	if len(target.ContentEmbedding) == 0 {
		return nil, nil
	}

	candidates, err := s.store.EmbeddingCandidates(ctx, articleID, candidatePool)
	if err != nil {
		return nil, fmt.Errorf("similar: %w", err)
	}

	out := make([]SimilarArticle, 0, limit)
	for _, c := range candidates {
		if c.ID == target.ID || len(c.ContentEmbedding) == 0 {
			continue
		}
		sim := CosineSimilarity(target.ContentEmbedding, c.ContentEmbedding)
		if sim <= SimilarityThreshold {
			continue
		}
		c.TitleEmbedding, c.ContentEmbedding = nil, nil
		out = append(out, SimilarArticle{Article: c, Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CosineSimilarity 维度不一致或存在零向量时返回 0
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// UpdateEmbeddings 为最多 50 篇未索引的文章生成标题与正文向量，返回处理条数
func (s *Scorer) UpdateEmbeddings(ctx context.Context) (int, error) {
	if s.embedder == nil {
		return 0, nil
	}
	pending, err := s.store.PendingEmbeddings(ctx, embeddingBatch)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// 前半为标题，后半为正文（正文为空时用摘要）
	texts := make([]string, 0, 2*len(pending))
	for _, a := range pending {
		texts = append(texts, a.Title)
	}
	for _, a := range pending {
		body := a.Content
		if strings.TrimSpace(body) == "" {
			body = a.Description
		}
		if strings.TrimSpace(body) == "" {
			body = a.Title
		}
		texts = append(texts, body)
	}

	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("update embeddings: %w", err)
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("update embeddings: got %d vectors for %d inputs", len(vecs), len(texts))
	}

	n := len(pending)
	updated := 0
	at := s.now()
	for i, a := range pending {
		if err := s.store.SaveEmbeddings(ctx, a.ID, vecs[i], vecs[n+i], at); err != nil {
			slog.Warn("recommend: save embeddings error", "id", a.ID, "err", err)
			continue
		}
		updated++
	}
	slog.Info("recommend: embeddings updated", "count", updated)
	return updated, nil
}

func nonEmpty(in []string, norm func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(norm(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func excludeRead(list []storage.Article, readURLs []string) []storage.Article {
	if len(readURLs) == 0 {
		return list
	}
	read := make(map[string]struct{}, len(readURLs))
	for _, u := range readURLs {
		read[u] = struct{}{}
	}
	out := list[:0]
	for _, a := range list {
		if _, ok := read[a.URL]; !ok {
			out = append(out, a)
		}
	}
	return out
}
