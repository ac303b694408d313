package processor

import (
	"strings"
	"unicode"
)

// 情感标签
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// SentimentResult 简单情感打分
type SentimentResult struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

var (
	positiveWords = map[string]struct{}{
		"good": {}, "great": {}, "excellent": {}, "amazing": {}, "wonderful": {}, "fantastic": {},
	}
	negativeWords = map[string]struct{}{
		"bad": {}, "terrible": {}, "awful": {}, "horrible": {}, "disappointing": {}, "worst": {},
	}
)

const sentimentThreshold = 0.01

// Sentiment 按正负面词数量差除以总词数打分
func Sentiment(text string) SentimentResult {
	words := tokenize(text)
	if len(words) == 0 {
		return SentimentResult{Label: Neutral}
	}
	var pos, neg int
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	score := float64(pos-neg) / float64(len(words))
	label := Neutral
	switch {
	case score > sentimentThreshold:
		label = Positive
	case score < -sentimentThreshold:
		label = Negative
	}
	return SentimentResult{Score: score, Label: label}
}

// tokenize 小写后按非字母数字切词
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
