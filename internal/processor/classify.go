package processor

import "strings"

// Category 文章分类，取值固定
type Category string

const (
	Business      Category = "business"
	Entertainment Category = "entertainment"
	General       Category = "general"
	Health        Category = "health"
	Science       Category = "science"
	Sports        Category = "sports"
	Technology    Category = "technology"
)

// AllCategories 按字母序返回全部分类，全量采集按此顺序进行
func AllCategories() []Category {
	return []Category{Business, Entertainment, General, Health, Science, Sports, Technology}
}

// ParseCategory 校验并规范化分类名，未知分类返回 false
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllCategories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

type categoryRule struct {
	category Category
	keywords []string
}

// classifyRules 的顺序即匹配优先级
var classifyRules = []categoryRule{
	{Business, []string{"business", "economy", "market", "stock", "finance", "company", "corporate", "trade", "investment"}},
	{Technology, []string{"tech", "technology", "software", "ai", "computer", "digital", "internet", "app", "startup"}},
	{Sports, []string{"sport", "football", "basketball", "soccer", "baseball", "tennis", "olympic", "championship", "game"}},
	{Health, []string{"health", "medical", "doctor", "hospital", "disease", "treatment", "medicine", "covid", "vaccine"}},
	{Science, []string{"science", "research", "study", "scientist", "discovery", "space", "climate", "environment"}},
	{Entertainment, []string{"movie", "film", "music", "celebrity", "entertainment", "actor", "singer", "show", "tv"}},
}

// Classify 关键词匹配分类：标题+摘要小写后做子串匹配，按优先级返回第一个命中的分类，都不命中为 general
func Classify(title, description string) Category {
	text := strings.ToLower(title + " " + description)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return General
}
