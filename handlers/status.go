package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"go-firstresponder/feeds"
	"go-firstresponder/orchestrator"
	"go-firstresponder/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type StatusReporter interface {
	SystemStatus() orchestrator.SystemStatus
}

type HistoryReader interface {
	GetInteractionHistory(ctx context.Context, limit int) []types.InteractionSummary
}

type CacheAdmin interface {
	Stats() feeds.CacheStats
	Clear()
}

func SystemStatus(c *gin.Context, status StatusReporter) {
	c.JSON(http.StatusOK, status.SystemStatus())
}

func MemoryHistory(c *gin.Context, history HistoryReader) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "field": "limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries := history.GetInteractionHistory(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "interactions": entries})
}

func FeedCacheStats(c *gin.Context, cache CacheAdmin) {
	c.JSON(http.StatusOK, cache.Stats())
}

func ClearFeedCache(c *gin.Context, cache CacheAdmin) {
	cache.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
