package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/processor"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "newshub.db"),
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func processed(url, title string, category processor.Category, published time.Time) processor.ProcessedArticle {
	return processor.ProcessedArticle{
		ID:          processor.HashURL(url),
		Title:       title,
		URL:         url,
		PublishedAt: published,
		SourceName:  "Wire",
		Author:      "Unknown",
		Category:    category,
		Language:    "en",
		APISource:   "newsapi",
		Sentiment:   processor.SentimentResult{Label: processor.Neutral},
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open(config.DatabaseConfig{Driver: "postgres"}); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}

func TestSaveArticleIsIdempotentOnURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, created, err := s.SaveArticle(ctx, processed("https://example.com/a", "Original", processor.Business, now))
	if err != nil || !created {
		t.Fatalf("first save: created=%v err=%v", created, err)
	}

	again := processed("https://example.com/a", "Changed title", processor.Sports, now.Add(time.Hour))
	second, created, err := s.SaveArticle(ctx, again)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if created {
		t.Fatalf("second save must not create a new record")
	}
	if second.ID != first.ID || second.Title != "Original" || second.Category != "business" {
		t.Fatalf("second save should return the stored record unchanged, got %+v", second)
	}

	var count int64
	s.DB.Model(&Article{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one stored record, got %d", count)
	}
}

func TestGetArticleNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetArticle(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.IncrementCounter(context.Background(), "missing", Views); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from IncrementCounter, got %v", err)
	}
}

func TestIncrementCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.SaveArticle(ctx, processed("https://example.com/c", "Counter", processor.General, time.Now()))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.IncrementCounter(ctx, a.ID, Views); err != nil {
			t.Fatalf("increment views: %v", err)
		}
	}
	got, err := s.IncrementCounter(ctx, a.ID, Likes)
	if err != nil {
		t.Fatalf("increment likes: %v", err)
	}
	if got.Views != 3 || got.Likes != 1 || got.Shares != 0 {
		t.Fatalf("unexpected counters: views=%d likes=%d shares=%d", got.Views, got.Likes, got.Shares)
	}
	if _, err := s.IncrementCounter(ctx, a.ID, Counter("title")); err == nil {
		t.Fatalf("unknown counter should be rejected")
	}
}

func TestListByCategoryAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		p := processed(fmt.Sprintf("https://example.com/tech/%d", i), fmt.Sprintf("Chip maker news %d", i), processor.Technology, base.Add(time.Duration(i)*time.Minute))
		if _, _, err := s.SaveArticle(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, _, err := s.SaveArticle(ctx, processed("https://example.com/sport", "Cup final", processor.Sports, base)); err != nil {
		t.Fatalf("save: %v", err)
	}

	list, total, err := s.ListByCategory(ctx, "technology", 2, 2)
	if err != nil {
		t.Fatalf("ListByCategory: %v", err)
	}
	if total != 5 || len(list) != 2 {
		t.Fatalf("expected total=5 len=2, got total=%d len=%d", total, len(list))
	}
	if list[0].Title != "Chip maker news 2" {
		t.Fatalf("page 2 should start at the third newest, got %q", list[0].Title)
	}

	found, total, err := s.SearchArticles(ctx, "CHIP", "", 1, 10)
	if err != nil {
		t.Fatalf("SearchArticles: %v", err)
	}
	if total != 5 || len(found) != 5 {
		t.Fatalf("search should be case-insensitive, got total=%d len=%d", total, len(found))
	}

	titles, err := s.Suggestions(ctx, "cup", 5)
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if len(titles) != 1 || titles[0] != "Cup final" {
		t.Fatalf("unexpected suggestions: %v", titles)
	}
}

func TestFindRecentFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inputs := []processor.ProcessedArticle{
		processed("https://example.com/1", "Rust compiler release", processor.Technology, now.Add(-time.Hour)),
		processed("https://example.com/2", "Go release notes", processor.Technology, now.Add(-2*time.Hour)),
		processed("https://example.com/3", "Go conference", processor.Technology, now.Add(-8*24*time.Hour)),
		processed("https://example.com/4", "Go to the match", processor.Sports, now.Add(-time.Hour)),
		processed("https://example.com/5", "Release of vaccine", processor.Health, now.Add(-time.Hour)),
	}
	for _, p := range inputs {
		if _, _, err := s.SaveArticle(ctx, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	list, err := s.FindRecent(ctx, ArticleFilter{
		Since:       now.Add(-7 * 24 * time.Hour),
		Categories:  []string{"technology"},
		Keywords:    []string{"release"},
		ExcludeURLs: []string{"https://example.com/1"},
		Limit:       10,
	})
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(list) != 1 || list[0].URL != "https://example.com/2" {
		t.Fatalf("unexpected filter result: %+v", list)
	}
}

func TestEmbeddingsLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, _, err := s.SaveArticle(ctx, processed("https://example.com/e", "Embed me", processor.Science, time.Now()))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	pending, err := s.PendingEmbeddings(ctx, 50)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending article, got %d (err=%v)", len(pending), err)
	}

	if err := s.SaveEmbeddings(ctx, a.ID, []float32{1, 0}, []float32{0.5, 0.5}, time.Now()); err != nil {
		t.Fatalf("SaveEmbeddings: %v", err)
	}
	pending, _ = s.PendingEmbeddings(ctx, 50)
	if len(pending) != 0 {
		t.Fatalf("indexed article should no longer be pending")
	}

	got, err := s.GetArticle(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArticle: %v", err)
	}
	if !got.Indexed || got.LastIndexed == nil || len(got.ContentEmbedding) != 2 || got.ContentEmbedding[1] != 0.5 {
		t.Fatalf("embedding not persisted: %+v", got)
	}

	cands, err := s.EmbeddingCandidates(ctx, a.ID, 100)
	if err != nil || len(cands) != 0 {
		t.Fatalf("target must be excluded from candidates, got %d (err=%v)", len(cands), err)
	}
}

func TestMetaAndRetention(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh, _, _ := s.SaveArticle(ctx, processed("https://example.com/new", "New", processor.General, now))
	if _, _, err := s.SaveArticle(ctx, processed("https://example.com/old", "Old", processor.General, now.Add(-31*24*time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}

	missing, err := s.MissingMeta(ctx, now.Add(-24*time.Hour), 20)
	if err != nil || len(missing) != 1 {
		t.Fatalf("expected 1 recent article missing meta, got %d (err=%v)", len(missing), err)
	}
	if err := s.UpdateMeta(ctx, fresh.ID, "https://img.example.com/a.png", ""); err != nil {
		t.Fatalf("UpdateMeta: %v", err)
	}
	got, _ := s.GetArticle(ctx, fresh.ID)
	if got.ImageURL != "https://img.example.com/a.png" || got.Description != "" {
		t.Fatalf("UpdateMeta should only set provided fields: %+v", got)
	}

	n, err := s.DeleteOlderThan(ctx, now.Add(-30*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 deleted article, got %d (err=%v)", n, err)
	}
	if _, err := s.GetArticleByURL(ctx, "https://example.com/old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old article should be gone, got %v", err)
	}

	st, err := s.Stats(ctx, now.Add(-24*time.Hour), 5)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 1 || len(st.TopCategories) != 1 || st.TopCategories[0].Category != "general" {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestProviderStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.EnsureProvider(ctx, "newsapi", "NewsAPI", "https://newsapi.org/v2"); err != nil {
		t.Fatalf("EnsureProvider: %v", err)
	}
	if _, err := s.EnsureProvider(ctx, "newsapi", "NewsAPI", "https://newsapi.org/v2"); err != nil {
		t.Fatalf("EnsureProvider twice: %v", err)
	}

	if err := s.RecordProviderResult(ctx, "newsapi", errors.New("rate limited"), time.Now()); err != nil {
		t.Fatalf("RecordProviderResult: %v", err)
	}
	list, err := s.ListProviders(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one provider, got %d (err=%v)", len(list), err)
	}
	if list[0].Status != ProviderDegraded || list[0].LastError != "rate limited" || list[0].LastFailureAt == nil {
		t.Fatalf("failure not recorded: %+v", list[0])
	}

	if err := s.RecordProviderResult(ctx, "newsapi", nil, time.Now()); err != nil {
		t.Fatalf("RecordProviderResult: %v", err)
	}
	list, _ = s.ListProviders(ctx)
	if list[0].Status != ProviderActive || list[0].LastSuccessAt == nil {
		t.Fatalf("success not recorded: %+v", list[0])
	}

	if err := s.RecordProviderResult(ctx, "unknown", nil, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown provider, got %v", err)
	}
}
