package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	defaultTrending   = 10
	maxTrending       = 50
	defaultSuggestion = 5
	maxSuggestion     = 20
)

// GET /api/v1/news/headlines?country=us&category=technology&page=1&pageSize=20
func (s *Server) headlines(c *gin.Context) {
	page := queryInt(c, "page", 1, 1<<20)
	pageSize := queryInt(c, "pageSize", defaultPageSize, maxPageSize)

	articles, err := s.news.FetchTopHeadlines(c.Request.Context(), c.Query("country"), c.Query("category"), pageSize)
	if err != nil {
		if errors.Is(err, aggregator.ErrUnknownCategory) {
			respondError(c, http.StatusBadRequest, "Invalid category")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to fetch headlines")
		return
	}
	respondPage(c, articles, page, pageSize, int64(len(articles)))
}

// GET /api/v1/news/category/:category
// 先查库，库里没有该分类的文章时实时拉取一次
func (s *Server) byCategory(c *gin.Context) {
	cat, ok := processor.ParseCategory(c.Param("category"))
	if !ok {
		respondError(c, http.StatusBadRequest, "Invalid category")
		return
	}
	page := queryInt(c, "page", 1, 1<<20)
	pageSize := queryInt(c, "pageSize", defaultPageSize, maxPageSize)
	ctx := c.Request.Context()

	list, total, err := s.store.ListByCategory(ctx, string(cat), page, pageSize)
	if err != nil {
		slog.Error("api: list by category failed", "category", cat, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch category news")
		return
	}
	if total == 0 && page == 1 {
		list, err = s.news.FetchTopHeadlines(ctx, c.Query("country"), string(cat), pageSize)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to fetch category news")
			return
		}
		total = int64(len(list))
	}
	respondPage(c, list, page, pageSize, total)
}

// GET /api/v1/news/search?q=...&sortBy=publishedAt
func (s *Server) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, http.StatusBadRequest, "Search query is required")
		return
	}
	sortBy := c.DefaultQuery("sortBy", "publishedAt")
	page := queryInt(c, "page", 1, 1<<20)
	pageSize := queryInt(c, "pageSize", defaultPageSize, maxPageSize)

	res, err := s.news.Search(c.Request.Context(), q, sortBy, page, pageSize)
	if err != nil {
		slog.Error("api: search failed", "q", q, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to search news")
		return
	}
	respondPage(c, res.Articles, page, pageSize, res.Total)
}

// GET /api/v1/news/suggestions?q=...
func (s *Server) suggestions(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondOK(c, http.StatusOK, []string{})
		return
	}
	limit := queryInt(c, "limit", defaultSuggestion, maxSuggestion)
	titles, err := s.store.Suggestions(c.Request.Context(), q, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch suggestions")
		return
	}
	if titles == nil {
		titles = []string{}
	}
	respondOK(c, http.StatusOK, titles)
}

// GET /api/v1/news/trending?limit=10
// 近 24 小时没有文章时退回实时头条
func (s *Server) trending(c *gin.Context) {
	limit := queryInt(c, "limit", defaultTrending, maxTrending)
	ctx := c.Request.Context()

	list, err := s.scorer.Trending(ctx, limit)
	if err != nil {
		slog.Error("api: trending failed", "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch trending news")
		return
	}
	if len(list) == 0 {
		list, err = s.news.FetchTopHeadlines(ctx, "", "", limit)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to fetch trending news")
			return
		}
	}
	respondOK(c, http.StatusOK, list)
}
