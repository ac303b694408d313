package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LJTian/NewsHub/internal/processor"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultRecommendations = 10
	maxRecommendations     = 50
)

type createUserRequest struct {
	Username string `json:"username"`
}

type feedbackRequest struct {
	ArticleID string `json:"articleId" binding:"required"`
	Rating    *int   `json:"rating"`
	TimeSpent *int   `json:"timeSpent"`
}

type bookmarkRequest struct {
	ArticleID string `json:"articleId" binding:"required"`
}

// POST /api/v1/users
func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	// 允许空 body
	_ = c.ShouldBindJSON(&req)
	u, err := s.store.CreateUser(c.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		slog.Error("api: create user failed", "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}
	respondOK(c, http.StatusCreated, u)
}

func (s *Server) loadUser(c *gin.Context) (*storage.User, bool) {
	u, err := s.store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.userError(c, err)
		return nil, false
	}
	return u, true
}

func (s *Server) userError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondError(c, http.StatusNotFound, "User not found")
		return
	}
	slog.Error("api: user operation failed", "user", c.Param("id"), "err", err)
	respondError(c, http.StatusInternalServerError, "Failed to update user")
}

func (s *Server) getPreferences(c *gin.Context) {
	u, ok := s.loadUser(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, u.Preferences.Data())
}

// PUT /api/v1/users/:id/preferences
func (s *Server) putPreferences(c *gin.Context) {
	var prefs storage.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid preferences")
		return
	}
	cats := make([]string, 0, len(prefs.Categories))
	for _, raw := range prefs.Categories {
		cat, ok := processor.ParseCategory(raw)
		if !ok {
			respondError(c, http.StatusBadRequest, "Invalid category: "+raw)
			return
		}
		cats = append(cats, string(cat))
	}
	prefs.Categories = cats

	u, err := s.store.UpdatePreferences(c.Request.Context(), c.Param("id"), prefs)
	if err != nil {
		s.userError(c, err)
		return
	}
	respondOK(c, http.StatusOK, u.Preferences.Data())
}

// GET /api/v1/users/:id/settings 客户端自定义设置，原样返回
func (s *Server) getSettings(c *gin.Context) {
	u, ok := s.loadUser(c)
	if !ok {
		return
	}
	settings := map[string]any(u.Settings)
	if settings == nil {
		settings = map[string]any{}
	}
	respondOK(c, http.StatusOK, settings)
}

// PUT /api/v1/users/:id/settings 按键合并，未出现的键保持不变
func (s *Server) putSettings(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid settings")
		return
	}
	u, err := s.store.UpdateSettings(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.userError(c, err)
		return
	}
	respondOK(c, http.StatusOK, map[string]any(u.Settings))
}

func (s *Server) getHistory(c *gin.Context) {
	u, ok := s.loadUser(c)
	if !ok {
		return
	}
	history := []storage.HistoryEntry(u.History)
	if history == nil {
		history = []storage.HistoryEntry{}
	}
	respondOK(c, http.StatusOK, history)
}

// POST /api/v1/users/:id/feedback，记入阅读历史
func (s *Server) postFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "articleId is required")
		return
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		respondError(c, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}
	if req.TimeSpent != nil && *req.TimeSpent < 0 {
		respondError(c, http.StatusBadRequest, "timeSpent must not be negative")
		return
	}
	ctx := c.Request.Context()

	a, err := s.store.GetArticle(ctx, req.ArticleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Article not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to record feedback")
		return
	}

	u, err := s.store.AddHistory(ctx, c.Param("id"), storage.HistoryEntry{
		ArticleID: a.ID,
		Title:     a.Title,
		URL:       a.URL,
		ReadAt:    time.Now(),
		Rating:    req.Rating,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		s.userError(c, err)
		return
	}
	respondOK(c, http.StatusOK, u.History[0])
}

func (s *Server) getBookmarks(c *gin.Context) {
	u, ok := s.loadUser(c)
	if !ok {
		return
	}
	list, err := s.store.ArticlesByIDs(c.Request.Context(), u.Bookmarks)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch bookmarks")
		return
	}
	if list == nil {
		list = []storage.Article{}
	}
	respondOK(c, http.StatusOK, list)
}

func (s *Server) addBookmark(c *gin.Context) {
	var req bookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "articleId is required")
		return
	}
	ctx := c.Request.Context()
	if _, err := s.store.GetArticle(ctx, req.ArticleID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Article not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "Failed to add bookmark")
		return
	}
	u, err := s.store.AddBookmark(ctx, c.Param("id"), req.ArticleID)
	if err != nil {
		s.userError(c, err)
		return
	}
	respondOK(c, http.StatusOK, []string(u.Bookmarks))
}

func (s *Server) removeBookmark(c *gin.Context) {
	u, err := s.store.RemoveBookmark(c.Request.Context(), c.Param("id"), c.Param("articleId"))
	if err != nil {
		s.userError(c, err)
		return
	}
	bookmarks := []string(u.Bookmarks)
	if bookmarks == nil {
		bookmarks = []string{}
	}
	respondOK(c, http.StatusOK, bookmarks)
}

// GET /api/v1/users/:id/recommendations?limit=10
// 已读过的文章不再推荐
func (s *Server) recommendations(c *gin.Context) {
	u, ok := s.loadUser(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", defaultRecommendations, maxRecommendations)

	read := make([]string, 0, len(u.History))
	for _, h := range u.History {
		read = append(read, h.URL)
	}
	list, err := s.scorer.Personalized(c.Request.Context(), u.ID, u.Preferences.Data(), read, limit)
	if err != nil {
		slog.Error("api: recommendations failed", "user", u.ID, "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch recommendations")
		return
	}
	if list == nil {
		list = []storage.Article{}
	}
	respondOK(c, http.StatusOK, list)
}
