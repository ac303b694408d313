package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/LJTian/NewsHub/internal/aggregator"
	"github.com/LJTian/NewsHub/internal/recommend"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/gin-gonic/gin"
)

// JobRunner 按名称手动触发定时任务，*scheduler.Scheduler 实现了它
type JobRunner interface {
	Names() []string
	RunOnce(ctx context.Context, name string) error
}

type Options struct {
	// 配置后 /api/v1/admin 下的接口需要 Basic Auth
	BasicAuthUser string
	BasicAuthPass string
	// WebRoot 为已构建的前端目录
	WebRoot string
}

type Server struct {
	store  *storage.Store
	news   *aggregator.Service
	scorer *recommend.Scorer
	jobs   JobRunner
	opts   Options
}

func NewServer(store *storage.Store, news *aggregator.Service, scorer *recommend.Scorer, jobs JobRunner, opts Options) *Server {
	return &Server{store: store, news: news, scorer: scorer, jobs: jobs, opts: opts}
}

// Router 创建 gin 引擎并注册全部路由
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	s.RegisterRoutes(r)

	// 若配置了前端目录，则托管 SPA 静态文件并做 fallback
	if s.opts.WebRoot != "" {
		assetsDir := filepath.Join(s.opts.WebRoot, "assets")
		indexFile := filepath.Join(s.opts.WebRoot, "index.html")
		r.Static("/assets", assetsDir)
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet {
				c.Status(http.StatusNotFound)
				return
			}
			// SPA：未匹配 API 的 GET 均返回 index.html
			c.File(indexFile)
		})
	}
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		news := v1.Group("/news")
		news.GET("/headlines", s.headlines)
		news.GET("/category/:category", s.byCategory)
		news.GET("/search", s.search)
		news.GET("/suggestions", s.suggestions)
		news.GET("/trending", s.trending)

		articles := v1.Group("/articles/:id")
		articles.GET("", s.getArticle)
		articles.POST("/like", s.likeArticle)
		articles.POST("/share", s.shareArticle)
		articles.GET("/similar", s.similarArticles)

		v1.POST("/users", s.createUser)
		users := v1.Group("/users/:id")
		users.GET("/preferences", s.getPreferences)
		users.PUT("/preferences", s.putPreferences)
		users.GET("/settings", s.getSettings)
		users.PUT("/settings", s.putSettings)
		users.GET("/history", s.getHistory)
		users.POST("/feedback", s.postFeedback)
		users.GET("/bookmarks", s.getBookmarks)
		users.POST("/bookmarks", s.addBookmark)
		users.DELETE("/bookmarks/:articleId", s.removeBookmark)
		users.GET("/recommendations", s.recommendations)

		v1.GET("/providers", s.providers)
		v1.GET("/stats", s.stats)

		admin := v1.Group("/admin")
		if s.opts.BasicAuthUser != "" && s.opts.BasicAuthPass != "" {
			admin.Use(basicAuthMiddleware(s.opts.BasicAuthUser, s.opts.BasicAuthPass))
		}
		admin.POST("/fetch-all", s.fetchAll)
		admin.POST("/jobs/:name", s.runJob)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondPage(c *gin.Context, data any, page, pageSize int, total int64) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"pagination": pagination{Page: page, PageSize: pageSize, Total: total},
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// queryInt 读取正整数参数，非法或缺省时用 def，超过 max 时截断
func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// basicAuthMiddleware 为管理接口增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			respondError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}
