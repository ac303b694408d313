package api

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/providers 数据源健康状态
func (s *Server) providers(c *gin.Context) {
	list, err := s.store.ListProviders(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch providers")
		return
	}
	if list == nil {
		list = []storage.Provider{}
	}
	respondOK(c, http.StatusOK, list)
}

// GET /api/v1/stats 文章总数、近 24 小时新增与热门分类
func (s *Server) stats(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context(), time.Now().Add(-24*time.Hour), 5)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}
	respondOK(c, http.StatusOK, st)
}

// POST /api/v1/admin/fetch-all 立即全量采集一轮
func (s *Server) fetchAll(c *gin.Context) {
	articles, err := s.news.FetchAllCategories(c.Request.Context())
	if err != nil {
		slog.Error("api: fetch all failed", "err", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch news")
		return
	}
	respondOK(c, http.StatusOK, gin.H{"count": len(articles)})
}

// POST /api/v1/admin/jobs/:name 手动触发一个定时任务，同步等待其结束
func (s *Server) runJob(c *gin.Context) {
	name := c.Param("name")
	if s.jobs == nil || !slices.Contains(s.jobs.Names(), name) {
		respondError(c, http.StatusNotFound, "Unknown job: "+name)
		return
	}
	start := time.Now()
	if err := s.jobs.RunOnce(c.Request.Context(), name); err != nil {
		respondError(c, http.StatusInternalServerError, "Job failed: "+err.Error())
		return
	}
	respondOK(c, http.StatusOK, gin.H{"job": name, "elapsed": time.Since(start).String()})
}
