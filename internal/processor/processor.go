package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/LJTian/NewsHub/internal/collector"
	"github.com/PuerkitoBio/goquery"
)

const (
	maxTitleRunes       = 500
	maxDescriptionRunes = 1000
	unknownAuthor       = "Unknown"

	// 与存储层 url / image_url 列宽一致
	maxURLRunes = 1024
)

// newsapi 会把正文截断并追加 "[+1234 chars]"
var truncatedContentSuffix = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)

// ProcessedArticle 是写入存储层前的统一结构
type ProcessedArticle struct {
	ID          string
	Title       string
	Description string
	Content     string
	URL         string
	ImageURL    string
	PublishedAt time.Time
	SourceID    string
	SourceName  string
	Author      string
	Category    Category
	Language    string
	Country     string
	APISource   string
	Sentiment   SentimentResult
}

// SimpleProcessor 做数据清洗、缺省值填充、分类与 ID 生成
type SimpleProcessor struct {
	now func() time.Time
}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{now: time.Now}
}

// Process 清洗一批采集结果；缺标题或 URL 非法的条目被丢弃，同一批内按 URL 去重
func (p *SimpleProcessor) Process(items []collector.NewsItem) []ProcessedArticle {
	out := make([]ProcessedArticle, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		a, ok := p.normalize(it)
		if !ok {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (p *SimpleProcessor) normalize(it collector.NewsItem) (ProcessedArticle, bool) {
	link, ok := canonicalURL(it.URL)
	if !ok || utf8.RuneCountInString(link) > maxURLRunes {
		return ProcessedArticle{}, false
	}
	title := truncateRunes(collapseSpaces(toValidUTF8(it.Title)), maxTitleRunes)
	if title == "" {
		return ProcessedArticle{}, false
	}

	description := truncateRunes(stripHTML(toValidUTF8(it.Description)), maxDescriptionRunes)
	content := truncatedContentSuffix.ReplaceAllString(stripHTML(toValidUTF8(it.Content)), "")

	// 截断后的图片地址无法访问，超长直接丢弃
	imageURL := strings.TrimSpace(it.ImageURL)
	if utf8.RuneCountInString(imageURL) > maxURLRunes {
		imageURL = ""
	}

	author := collapseSpaces(it.Author)
	if author == "" {
		author = unknownAuthor
	}

	category, ok := firstCategory(it.Categories)
	if !ok {
		category = Classify(title, description)
	}

	published := it.PublishedAt
	if published.IsZero() {
		published = p.now()
	}

	sourceName := strings.TrimSpace(it.SourceName)
	if sourceName == "" {
		sourceName = it.APISource
	}

	language := strings.ToLower(strings.TrimSpace(it.Language))
	if language == "" || language == "english" {
		language = "en"
	}

	return ProcessedArticle{
		ID:          hashURL(link),
		Title:       title,
		Description: description,
		Content:     content,
		URL:         link,
		ImageURL:    imageURL,
		PublishedAt: published.UTC(),
		SourceID:    strings.TrimSpace(it.SourceID),
		SourceName:  sourceName,
		Author:      author,
		Category:    category,
		Language:    language,
		Country:     strings.ToLower(strings.TrimSpace(it.Country)),
		APISource:   it.APISource,
		Sentiment:   Sentiment(title + " " + description),
	}, true
}

func firstCategory(raw []string) (Category, bool) {
	for _, r := range raw {
		if c, ok := ParseCategory(r); ok {
			return c, true
		}
	}
	return "", false
}

// canonicalURL 只接受 http/https 的绝对地址，去掉首尾空白与 fragment
func canonicalURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// HashURL 返回文章 ID：URL 的 sha1
func HashURL(link string) string {
	return hashURL(link)
}

func hashURL(link string) string {
	h := sha1.New()
	h.Write([]byte(link))
	return hex.EncodeToString(h.Sum(nil))
}

// stripHTML 去掉 RSS/接口摘要中夹带的 HTML 标签并解码实体
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpaces(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpaces(s)
	}
	return collapseSpaces(doc.Text())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunes 按 rune 截断，超长时追加省略号
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
