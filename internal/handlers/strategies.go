package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tokenrank/internal/store"
	dbconfig "tokenrank/pkg/config"
)

// GetActiveStrategy returns the currently active parameter set.
func GetActiveStrategy(c *gin.Context) {
	strategy, err := store.NewStrategyStore(dbconfig.DB).Active(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if strategy == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active strategy"})
		return
	}
	c.JSON(http.StatusOK, strategy)
}

// ListStrategyHistory returns promoted strategies, newest first.
func ListStrategyHistory(c *gin.Context) {
	limit := parseLimit(c, 20, 200)

	history, err := store.NewStrategyStore(dbconfig.DB).History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, history)
}
