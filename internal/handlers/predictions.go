package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tokenrank/internal/cache"
	"tokenrank/internal/store"
	dbconfig "tokenrank/pkg/config"
)

var cacheStore *cache.Store

// Init wires the redis store used by the read API.
func Init(c *cache.Store) {
	cacheStore = c
}

// GetRoundPrediction returns the live prediction for a round. The cache is
// the authoritative source; a missing entry means "not ready", not an
// error, unless the round carries a failure marker.
func GetRoundPrediction(c *gin.Context) {
	roundID := c.Param("round_id")
	if roundID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "round_id is required"})
		return
	}

	var cached cache.CachedPrediction
	found, err := cacheStore.GetJSON(c.Request.Context(), cache.PredictionKey(roundID), &cached)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if found {
		c.JSON(http.StatusOK, cached)
		return
	}

	failed, err := cacheStore.Failed(c.Request.Context(), roundID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if failed {
		c.JSON(http.StatusGone, gin.H{"error": "prediction failed for this round"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "not ready", "round_id": roundID})
}

// GetRoundPredictionHistory returns the archived prediction rows of a
// settled round.
func GetRoundPredictionHistory(c *gin.Context) {
	roundID := c.Param("round_id")

	rounds := store.NewRoundStore(dbconfig.DB)
	round, err := rounds.RoundByExternalID(c.Request.Context(), roundID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	preds, err := store.NewPredictionStore(dbconfig.DB).ByRound(c.Request.Context(), round.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "predictions": preds})
}

// GetRoundResults returns a settled round's final ranking.
func GetRoundResults(c *gin.Context) {
	roundID := c.Param("round_id")

	rounds := store.NewRoundStore(dbconfig.DB)
	round, err := rounds.RoundByExternalID(c.Request.Context(), roundID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if round.SettledAt == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "not settled", "round_id": roundID})
		return
	}

	results, err := rounds.ResultsForRound(c.Request.Context(), round.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": round, "results": results})
}

func parseLimit(c *gin.Context, fallback, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(fallback)))
	if err != nil || limit < 1 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
