package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/processor"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Article 入库后的文章；URL 唯一，ID 为 URL 的 sha1
type Article struct {
	ID          string    `gorm:"primaryKey;size:40" json:"id"`
	Title       string    `gorm:"size:600;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Content     string    `gorm:"type:text" json:"content"`
	URL         string    `gorm:"size:1024;uniqueIndex" json:"url"`
	ImageURL    string    `gorm:"size:1024" json:"imageUrl"`
	PublishedAt time.Time `gorm:"index" json:"publishedAt"`
	SourceID    string    `gorm:"size:128" json:"sourceId"`
	SourceName  string    `gorm:"size:256" json:"sourceName"`
	Author      string    `gorm:"size:512" json:"author"`
	Category    string    `gorm:"size:32;index" json:"category"`
	Language    string    `gorm:"size:16" json:"language"`
	Country     string    `gorm:"size:16" json:"country"`
	APISource   string    `gorm:"size:32;index" json:"apiSource"`

	Views  int64 `gorm:"not null;default:0" json:"views"`
	Likes  int64 `gorm:"not null;default:0" json:"likes"`
	Shares int64 `gorm:"not null;default:0" json:"shares"`

	TitleEmbedding   datatypes.JSONSlice[float32] `json:"-"`
	ContentEmbedding datatypes.JSONSlice[float32] `json:"-"`
	SentimentScore   float64                      `json:"sentimentScore"`
	SentimentLabel   string                       `gorm:"size:16" json:"sentimentLabel"`
	Indexed          bool                         `gorm:"index" json:"indexed"`
	LastIndexed      *time.Time                   `json:"lastIndexed,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// 列表查询不需要向量列
var embeddingColumns = []string{"title_embedding", "content_embedding"}

// Counter 可自增的互动计数
type Counter string

const (
	Views  Counter = "views"
	Likes  Counter = "likes"
	Shares Counter = "shares"
)

// CategoryCount 按分类聚合的文章数
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Stats 总量与近期分布
type Stats struct {
	Total         int64           `json:"total"`
	Recent        int64           `json:"recent"`
	TopCategories []CategoryCount `json:"topCategories"`
}

// ArticleFilter 个性化推荐的规则过滤条件
type ArticleFilter struct {
	Since       time.Time
	Categories  []string
	Keywords    []string
	ExcludeURLs []string
	Limit       int
}

func newArticle(p processor.ProcessedArticle) *Article {
	return &Article{
		ID:               p.ID,
		Title:            p.Title,
		Description:      p.Description,
		Content:          p.Content,
		URL:              p.URL,
		ImageURL:         p.ImageURL,
		PublishedAt:      p.PublishedAt.UTC(),
		SourceID:         p.SourceID,
		SourceName:       p.SourceName,
		Author:           p.Author,
		Category:         string(p.Category),
		Language:         p.Language,
		Country:          p.Country,
		APISource:        p.APISource,
		TitleEmbedding:   datatypes.JSONSlice[float32]{},
		ContentEmbedding: datatypes.JSONSlice[float32]{},
		SentimentScore:   p.Sentiment.Score,
		SentimentLabel:   p.Sentiment.Label,
	}
}

// SaveArticle 以 URL 作为幂等键：已存在时原样返回已存储的记录，created 为 false；
// 并发插入同一 URL 时由唯一索引 + ON CONFLICT DO NOTHING 兜底，再回读已存储的记录
func (s *Store) SaveArticle(ctx context.Context, p processor.ProcessedArticle) (a *Article, created bool, err error) {
	db := s.DB.WithContext(ctx)

	existing := &Article{}
	err = db.Where("url = ?", p.URL).First(existing).Error
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	a = newArticle(p)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing = &Article{}
		if err := db.Where("url = ?", p.URL).First(existing).Error; err != nil {
			return nil, false, notFound(err)
		}
		return existing, false, nil
	}
	return a, true, nil
}

func (s *Store) GetArticle(ctx context.Context, id string) (*Article, error) {
	a := &Article{}
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(a).Error; err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *Store) GetArticleByURL(ctx context.Context, url string) (*Article, error) {
	a := &Article{}
	if err := s.DB.WithContext(ctx).Where("url = ?", url).First(a).Error; err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// ArticlesByIDs 按 ids 的顺序返回存在的文章
func (s *Store) ArticlesByIDs(ctx context.Context, ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []Article
	if err := s.DB.WithContext(ctx).Omit(embeddingColumns...).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]Article, len(list))
	for _, a := range list {
		byID[a.ID] = a
	}
	out := make([]Article, 0, len(list))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
			delete(byID, id)
		}
	}
	return out, nil
}

// ListByCategory 按发布时间倒序分页返回某分类的文章
func (s *Store) ListByCategory(ctx context.Context, category string, page, pageSize int) ([]Article, int64, error) {
	base := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&Article{}).Where("category = ?", category)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []Article
	err := base().Omit(embeddingColumns...).
		Order("published_at DESC").
		Offset(pageOffset(page, pageSize)).Limit(pageSize).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// SearchArticles 对标题/摘要做不区分大小写的模糊匹配
// sortBy: publishedAt(默认) / popularity
func (s *Store) SearchArticles(ctx context.Context, q, sortBy string, page, pageSize int) ([]Article, int64, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	base := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&Article{}).
			Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db := base().Omit(embeddingColumns...)
	switch sortBy {
	case "popularity":
		db = db.Order("views DESC").Order("published_at DESC")
	default:
		db = db.Order("published_at DESC")
	}
	var list []Article
	if err := db.Offset(pageOffset(page, pageSize)).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Suggestions 返回标题包含前缀词的文章标题，热度高的在前
func (s *Store) Suggestions(ctx context.Context, q string, limit int) ([]string, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	var titles []string
	err := s.DB.WithContext(ctx).Model(&Article{}).
		Where("LOWER(title) LIKE ?", pattern).
		Order("views DESC").Order("published_at DESC").
		Limit(limit).
		Pluck("title", &titles).Error
	if err != nil {
		return nil, err
	}
	return titles, nil
}

// TrendingSince 返回 since 之后发布的文章，按 views、likes、published_at 倒序
func (s *Store) TrendingSince(ctx context.Context, since time.Time, limit int) ([]Article, error) {
	var list []Article
	err := s.DB.WithContext(ctx).Omit(embeddingColumns...).
		Where("published_at >= ?", since.UTC()).
		Order("views DESC").Order("likes DESC").Order("published_at DESC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// FindRecent 规则推荐：近期 + 分类 IN + 任一关键词命中，排除已读 URL
func (s *Store) FindRecent(ctx context.Context, f ArticleFilter) ([]Article, error) {
	db := s.DB.WithContext(ctx).Omit(embeddingColumns...).Where("published_at >= ?", f.Since.UTC())
	if len(f.Categories) > 0 {
		db = db.Where("category IN ?", f.Categories)
	}
	if len(f.Keywords) > 0 {
		conds := make([]string, 0, len(f.Keywords))
		args := make([]any, 0, 2*len(f.Keywords))
		for _, kw := range f.Keywords {
			p := "%" + strings.ToLower(kw) + "%"
			conds = append(conds, "LOWER(title) LIKE ? OR LOWER(description) LIKE ?")
			args = append(args, p, p)
		}
		db = db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if len(f.ExcludeURLs) > 0 {
		db = db.Where("url NOT IN ?", f.ExcludeURLs)
	}

	var list []Article
	err := db.Order("published_at DESC").Order("views DESC").Limit(f.Limit).Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// IncrementCounter 原子地把某个互动计数加一，并返回最新记录
func (s *Store) IncrementCounter(ctx context.Context, id string, c Counter) (*Article, error) {
	switch c {
	case Views, Likes, Shares:
	default:
		return nil, fmt.Errorf("unknown counter %q", c)
	}
	res := s.DB.WithContext(ctx).Model(&Article{}).Where("id = ?", id).
		UpdateColumn(string(c), gorm.Expr(string(c)+" + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetArticle(ctx, id)
}

// PendingEmbeddings 尚未生成向量的文章，新发布的优先
func (s *Store) PendingEmbeddings(ctx context.Context, limit int) ([]Article, error) {
	var list []Article
	err := s.DB.WithContext(ctx).Omit(embeddingColumns...).
		Where("indexed = ?", false).
		Order("published_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// SaveEmbeddings 写入向量并标记为已索引
func (s *Store) SaveEmbeddings(ctx context.Context, id string, title, content []float32, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&Article{}).Where("id = ?", id).Updates(map[string]any{
		"title_embedding":   datatypes.NewJSONSlice(title),
		"content_embedding": datatypes.NewJSONSlice(content),
		"indexed":           true,
		"last_indexed":      at.UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EmbeddingCandidates 相似度计算的候选池：已索引且不含目标文章
func (s *Store) EmbeddingCandidates(ctx context.Context, excludeID string, limit int) ([]Article, error) {
	var list []Article
	err := s.DB.WithContext(ctx).
		Where("indexed = ? AND id <> ?", true, excludeID).
		Order("published_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// MissingMeta 近期缺少配图或摘要的文章
func (s *Store) MissingMeta(ctx context.Context, since time.Time, limit int) ([]Article, error) {
	var list []Article
	err := s.DB.WithContext(ctx).Omit(embeddingColumns...).
		Where("published_at >= ?", since.UTC()).
		Where("image_url = '' OR description = ''").
		Order("published_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// UpdateMeta 仅写入非空字段
func (s *Store) UpdateMeta(ctx context.Context, id, imageURL, description string) error {
	updates := map[string]any{}
	if imageURL != "" {
		updates["image_url"] = truncateRunes(imageURL, 1024)
	}
	if description != "" {
		updates["description"] = description
	}
	if len(updates) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Model(&Article{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteOlderThan 保留期清理，返回删除条数
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("published_at < ?", cutoff.UTC()).Delete(&Article{})
	return res.RowsAffected, res.Error
}

// Stats 统计总数、since 之后入库的数量以及近期文章最多的 top 个分类
func (s *Store) Stats(ctx context.Context, since time.Time, top int) (*Stats, error) {
	db := s.DB.WithContext(ctx)
	st := &Stats{}
	if err := db.Model(&Article{}).Count(&st.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Article{}).Where("created_at >= ?", since.UTC()).Count(&st.Recent).Error; err != nil {
		return nil, err
	}
	err := db.Model(&Article{}).
		Select("category, COUNT(*) AS count").
		Where("created_at >= ?", since.UTC()).
		Group("category").
		Order("count DESC").Order("category ASC").
		Limit(top).
		Scan(&st.TopCategories).Error
	if err != nil {
		return nil, err
	}
	return st, nil
}
