package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-firstresponder/handlers"
)

// Deps are the services the router exposes.
type Deps struct {
	Processor handlers.Processor
	Status    handlers.StatusReporter
	Feedback  handlers.FeedbackRecorder
	History   handlers.HistoryReader
	FeedCache handlers.CacheAdmin
	Store     handlers.Pinger
	Gatherer  prometheus.Gatherer
	ClientURL string
	Logger    *slog.Logger
}

func SetupRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	if d.ClientURL != "" {
		r.Use(allowOrigin(d.ClientURL))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Emergency first response service. POST /api/first-response to report an emergency.",
		})
	})
	r.GET("/healthz", handlers.Healthz)
	r.GET("/readyz", func(c *gin.Context) {
		handlers.Readyz(c, d.Store)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.POST("/first-response", func(c *gin.Context) {
			handlers.FirstResponse(c, d.Processor, logger)
		})
		api.POST("/first-response/:id/feedback", func(c *gin.Context) {
			handlers.SubmitFeedback(c, d.Feedback, logger)
		})
		api.GET("/status", func(c *gin.Context) {
			handlers.SystemStatus(c, d.Status)
		})
		api.GET("/memory/history", func(c *gin.Context) {
			handlers.MemoryHistory(c, d.History)
		})
		api.GET("/feeds/cache", func(c *gin.Context) {
			handlers.FeedCacheStats(c, d.FeedCache)
		})
		api.DELETE("/feeds/cache", func(c *gin.Context) {
			handlers.ClearFeedCache(c, d.FeedCache)
		})
	}

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()))
	}
}

// allowOrigin lets the citizen web client call the API from its own origin.
func allowOrigin(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
