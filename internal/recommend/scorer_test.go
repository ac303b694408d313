package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/storage"
)

// fakeStore 内存实现，TrendingSince 故意打乱顺序返回
type fakeStore struct {
	articles []storage.Article
	filter   storage.ArticleFilter
	saved    map[string][2][]float32
}

func (f *fakeStore) GetArticle(_ context.Context, id string) (*storage.Article, error) {
	for i := range f.articles {
		if f.articles[i].ID == id {
			a := f.articles[i]
			return &a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) ArticlesByIDs(_ context.Context, ids []string) ([]storage.Article, error) {
	var out []storage.Article
	for _, id := range ids {
		for _, a := range f.articles {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) TrendingSince(_ context.Context, since time.Time, limit int) ([]storage.Article, error) {
	var out []storage.Article
	for i := len(f.articles) - 1; i >= 0; i-- {
		if !f.articles[i].PublishedAt.Before(since) {
			out = append(out, f.articles[i])
		}
	}
	return out, nil
}

func (f *fakeStore) FindRecent(_ context.Context, filter storage.ArticleFilter) ([]storage.Article, error) {
	f.filter = filter
	return []storage.Article{{ID: "rule"}}, nil
}

func (f *fakeStore) EmbeddingCandidates(_ context.Context, excludeID string, limit int) ([]storage.Article, error) {
	var out []storage.Article
	for _, a := range f.articles {
		if a.Indexed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) PendingEmbeddings(_ context.Context, limit int) ([]storage.Article, error) {
	var out []storage.Article
	for _, a := range f.articles {
		if !a.Indexed {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveEmbeddings(_ context.Context, id string, title, content []float32, _ time.Time) error {
	if f.saved == nil {
		f.saved = map[string][2][]float32{}
	}
	f.saved[id] = [2][]float32{title, content}
	return nil
}

func TestTrendingOrderAndLimit(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{articles: []storage.Article{
		{ID: "a", Views: 10, Likes: 1, PublishedAt: now.Add(-time.Hour)},
		{ID: "b", Views: 10, Likes: 5, PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "c", Views: 10, Likes: 5, PublishedAt: now.Add(-30 * time.Minute)},
		{ID: "d", Views: 99, Likes: 0, PublishedAt: now.Add(-3 * time.Hour)},
		{ID: "old", Views: 1000, PublishedAt: now.Add(-25 * time.Hour)},
		{ID: "e", Views: 1, PublishedAt: now.Add(-time.Minute)},
	}}
	s := NewScorer(store, nil, nil)
	s.now = func() time.Time { return now }

	got, err := s.Trending(context.Background(), 4)
	if err != nil {
		t.Fatalf("Trending: %v", err)
	}
	want := []string{"d", "c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("Trending returned %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, want[i])
		}
	}

	for i := 1; i < len(got); i++ {
		r1, r2 := got[i-1], got[i]
		ok := r1.Views > r2.Views ||
			(r1.Views == r2.Views && r1.Likes > r2.Likes) ||
			(r1.Views == r2.Views && r1.Likes == r2.Likes && !r1.PublishedAt.Before(r2.PublishedAt))
		if !ok {
			t.Fatalf("ordering violated between %s and %s", r1.ID, r2.ID)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{1, 1}, []float32{-1, -1}, -1},
		{[]float32{0, 0}, []float32{1, 1}, 0},
		{[]float32{1}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarExcludesTargetAndBelowThreshold(t *testing.T) {
	store := &fakeStore{articles: []storage.Article{
		{ID: "target", Indexed: true, ContentEmbedding: []float32{1, 0, 0}},
		{ID: "close", Indexed: true, ContentEmbedding: []float32{0.9, 0.1, 0}},
		{ID: "closer", Indexed: true, ContentEmbedding: []float32{1, 0.01, 0}},
		{ID: "far", Indexed: true, ContentEmbedding: []float32{0, 1, 0}},
		{ID: "below", Indexed: true, ContentEmbedding: []float32{0.6, 0.8, 0}},
	}}
	s := NewScorer(store, nil, nil)

	got, err := s.Similar(context.Background(), "target", 10)
	if err != nil {
		t.Fatalf("Similar: %v", err)
	}
	if len(got) != 2 || got[0].ID != "closer" || got[1].ID != "close" {
		t.Fatalf("unexpected similar list: %+v", got)
	}
	for _, g := range got {
		if g.ID == "target" || g.Similarity <= SimilarityThreshold {
			t.Fatalf("result must exclude target and low similarity: %+v", g)
		}
	}

	got, _ = s.Similar(context.Background(), "missing", 10)
	if len(got) != 0 {
		t.Fatalf("missing target should yield empty result")
	}
	store.articles = append(store.articles, storage.Article{ID: "bare"})
	got, _ = s.Similar(context.Background(), "bare", 10)
	if len(got) != 0 {
		t.Fatalf("target without embedding should yield empty result")
	}
}

func TestPersonalizedUsesRanker(t *testing.T) {
	var req rankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{"recommendations":["y","x"]}`))
	}))
	defer srv.Close()

	store := &fakeStore{articles: []storage.Article{{ID: "x"}, {ID: "y"}}}
	s := NewScorer(store, NewHTTPRanker(srv.URL, time.Second), nil)

	prefs := storage.Preferences{Categories: []string{"technology"}}
	got, err := s.Personalized(context.Background(), "u1", prefs, nil, 5)
	if err != nil {
		t.Fatalf("Personalized: %v", err)
	}
	if len(got) != 2 || got[0].ID != "y" {
		t.Fatalf("ranker order should be kept: %+v", got)
	}
	if req.UserID != "u1" || req.Limit != 5 || req.Preferences.Categories[0] != "technology" {
		t.Fatalf("unexpected ranker request: %+v", req)
	}
}

func TestPersonalizedRankerSkipsReadArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"recommendations":["y","x"]}`))
	}))
	defer srv.Close()

	store := &fakeStore{articles: []storage.Article{
		{ID: "x", URL: "https://example.com/x"},
		{ID: "y", URL: "https://example.com/y"},
	}}
	s := NewScorer(store, NewHTTPRanker(srv.URL, time.Second), nil)

	got, err := s.Personalized(context.Background(), "u1", storage.Preferences{}, []string{"https://example.com/y"}, 5)
	if err != nil {
		t.Fatalf("Personalized: %v", err)
	}
	if len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("read article should be removed from ranked list: %+v", got)
	}

	// 排序结果全部已读时走规则推荐
	got, _ = s.Personalized(context.Background(), "u1", storage.Preferences{}, []string{"https://example.com/x", "https://example.com/y"}, 5)
	if len(got) != 1 || got[0].ID != "rule" {
		t.Fatalf("expected rule-based result when every ranked article was read, got %+v", got)
	}
}

func TestPersonalizedFallsBackToRules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	s := NewScorer(store, NewHTTPRanker(srv.URL, time.Second), nil)
	s.now = func() time.Time { return now }

	prefs := storage.Preferences{Categories: []string{"Technology", " "}, Keywords: []string{" golang "}}
	got, err := s.Personalized(context.Background(), "u1", prefs, []string{"https://read.example.com"}, 7)
	if err != nil {
		t.Fatalf("Personalized: %v", err)
	}
	if len(got) != 1 || got[0].ID != "rule" {
		t.Fatalf("expected rule-based result, got %+v", got)
	}
	f := store.filter
	if !f.Since.Equal(now.Add(-7*24*time.Hour)) || f.Limit != 7 {
		t.Fatalf("unexpected window/limit: %+v", f)
	}
	if len(f.Categories) != 1 || f.Categories[0] != "technology" || f.Keywords[0] != "golang" {
		t.Fatalf("preferences not normalised: %+v", f)
	}
	if len(f.ExcludeURLs) != 1 {
		t.Fatalf("read URLs should be excluded: %+v", f)
	}

	// 未配置排序服务时直接走规则
	s = NewScorer(store, nil, nil)
	if got, _ := s.Personalized(context.Background(), "u1", prefs, nil, 3); len(got) != 1 {
		t.Fatalf("nil ranker should use rules")
	}
}

type fakeEmbedder struct {
	inputs []string
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = texts
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func TestUpdateEmbeddings(t *testing.T) {
	store := &fakeStore{articles: []storage.Article{
		{ID: "a", Title: "A", Content: "body a"},
		{ID: "b", Title: "B", Description: "desc b"},
		{ID: "done", Title: "D", Indexed: true},
	}}
	emb := &fakeEmbedder{}
	s := NewScorer(store, nil, emb)

	n, err := s.UpdateEmbeddings(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("UpdateEmbeddings = %d, %v", n, err)
	}
	want := []string{"A", "B", "body a", "desc b"}
	for i := range want {
		if emb.inputs[i] != want[i] {
			t.Fatalf("input %d = %q, want %q", i, emb.inputs[i], want[i])
		}
	}
	if v := store.saved["b"]; v[0][0] != 1 || v[1][0] != 3 {
		t.Fatalf("vectors mapped to wrong article: %v", v)
	}

	emb.err = errors.New("quota")
	store.saved = nil
	if _, err := s.UpdateEmbeddings(context.Background()); err == nil {
		t.Fatalf("embedder error should be returned")
	}

	if n, _ := NewScorer(store, nil, nil).UpdateEmbeddings(context.Background()); n != 0 {
		t.Fatalf("nil embedder should be a no-op")
	}
}
