package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewsAPIFetchHeadlinesMapsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top-headlines" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("country") != "us" || q.Get("category") != "technology" || q.Get("pageSize") != "5" || q.Get("apiKey") != "k1" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"totalResults": 2,
			"articles": [
				{
					"source": {"id": "the-verge", "name": "The Verge"},
					"author": "Jane Doe",
					"title": "New chips announced",
					"description": "A new generation of chips",
					"url": "https://example.com/chips",
					"urlToImage": "https://example.com/chips.png",
					"publishedAt": "2024-05-01T10:00:00Z",
					"content": "Full text"
				},
				{
					"source": {"id": null, "name": "[Removed]"},
					"title": "[Removed]",
					"url": "https://removed.com"
				}
			]
		}`))
	}))
	defer srv.Close()

	p := NewNewsAPIProvider("k1", srv.URL, time.Second)
	items, err := p.FetchHeadlines(context.Background(), Query{Country: "us", Category: "technology", PageSize: 5})
	if err != nil {
		t.Fatalf("FetchHeadlines error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item (removed placeholder skipped), got %d", len(items))
	}
	it := items[0]
	if it.Title != "New chips announced" || it.URL != "https://example.com/chips" {
		t.Fatalf("unexpected item: %+v", it)
	}
	if it.SourceID != "the-verge" || it.SourceName != "The Verge" || it.Author != "Jane Doe" {
		t.Fatalf("source/author not mapped: %+v", it)
	}
	if it.ImageURL != "https://example.com/chips.png" || it.Content != "Full text" {
		t.Fatalf("image/content not mapped: %+v", it)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !it.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", it.PublishedAt, want)
	}
	if len(it.Categories) != 1 || it.Categories[0] != "technology" {
		t.Fatalf("Categories = %v, want [technology]", it.Categories)
	}
	if it.APISource != "newsapi" {
		t.Fatalf("APISource = %q", it.APISource)
	}
}

func TestNewsAPIErrorStatusCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	}))
	defer srv.Close()

	p := NewNewsAPIProvider("bad", srv.URL, time.Second)
	_, err := p.FetchHeadlines(context.Background(), Query{Country: "us"})
	if err == nil {
		t.Fatalf("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "Your API key is invalid") || !strings.Contains(err.Error(), "401") {
		t.Fatalf("error should carry status and message: %v", err)
	}
}

func TestNewsAPIEmptyResultIsNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":0,"articles":[]}`))
	}))
	defer srv.Close()

	p := NewNewsAPIProvider("k1", srv.URL, time.Second)
	_, err := p.FetchHeadlines(context.Background(), Query{Country: "us"})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestNewsAPIMissingKeyFailsFast(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewNewsAPIProvider("", srv.URL, time.Second)
	if _, err := p.FetchHeadlines(context.Background(), Query{}); err == nil {
		t.Fatalf("expected error without api key")
	}
	if called {
		t.Fatalf("provider should not call upstream without api key")
	}
}

func TestNewsAPISearchUsesEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/everything" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "mars" || q.Get("sortBy") != "publishedAt" || q.Get("page") != "2" {
			t.Errorf("unexpected query: %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"ok","articles":[{"title":"Mars rover","url":"https://example.com/mars","publishedAt":"2024-05-01T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	p := NewNewsAPIProvider("k1", srv.URL, time.Second)
	items, err := p.Search(context.Background(), SearchQuery{Query: "mars", SortBy: "publishedAt", Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Mars rover" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if len(items[0].Categories) != 0 {
		t.Fatalf("search results should leave category to the classifier: %v", items[0].Categories)
	}
}
