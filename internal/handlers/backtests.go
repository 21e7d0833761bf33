package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tokenrank/internal/store"
	dbconfig "tokenrank/pkg/config"
)

// ListBacktestResults returns a run's results ordered by score. An empty
// run_id query resolves to the most recent run.
func ListBacktestResults(c *gin.Context) {
	backtests := store.NewBacktestStore(dbconfig.DB)

	runID := c.Query("run_id")
	if runID == "" {
		latest, err := backtests.LatestRunID(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if latest == "" {
			c.JSON(http.StatusOK, gin.H{"run_id": "", "results": []interface{}{}})
			return
		}
		runID = latest
	}

	limit := parseLimit(c, 50, 500)
	results, err := backtests.ResultsForRun(c.Request.Context(), runID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "results": results})
}

// GetBestBacktestResult returns the highest scoring result of a run.
func GetBestBacktestResult(c *gin.Context) {
	runID := c.Param("run_id")

	best, err := store.NewBacktestStore(dbconfig.DB).BestResult(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if best == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, best)
}
