package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/LJTian/NewsHub/internal/recommend"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultSimilar = 5
	maxSimilar     = 20
)

// GET /api/v1/articles/:id，读取同时计一次浏览
func (s *Server) getArticle(c *gin.Context) {
	s.bump(c, storage.Views)
}

func (s *Server) likeArticle(c *gin.Context) {
	s.bump(c, storage.Likes)
}

func (s *Server) shareArticle(c *gin.Context) {
	s.bump(c, storage.Shares)
}

func (s *Server) bump(c *gin.Context, counter storage.Counter) {
	a, err := s.store.IncrementCounter(c.Request.Context(), c.Param("id"), counter)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Article not found")
			return
		}
		slog.Error("api: update article counter failed", "id", c.Param("id"), "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to update article")
		return
	}
	respondOK(c, http.StatusOK, a)
}

// GET /api/v1/articles/:id/similar?limit=5
func (s *Server) similarArticles(c *gin.Context) {
	limit := queryInt(c, "limit", defaultSimilar, maxSimilar)
	list, err := s.scorer.Similar(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		slog.Error("api: similar failed", "id", c.Param("id"), "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch similar articles")
		return
	}
	if list == nil {
		list = []recommend.SimilarArticle{}
	}
	respondOK(c, http.StatusOK, list)
}
