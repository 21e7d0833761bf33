package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appconfig "tokenrank/internal/config"
	"tokenrank/internal/engine"
	"tokenrank/internal/store"
	dbconfig "tokenrank/pkg/config"
)

// ListTokenRatings returns the Elo leaderboard.
func ListTokenRatings(c *gin.Context) {
	limit := parseLimit(c, 50, 500)

	ratings, err := store.NewRatingStore(dbconfig.DB).AllRatings(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ratings)
}

// GetTokenStats returns a token's decayed form statistics.
func GetTokenStats(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	cfg := appconfig.Default()
	calc := engine.NewDecayCalculator(store.NewRoundStore(dbconfig.DB), engine.DecayConfig{
		DecayRate:        cfg.DecayRate,
		MinGamesForDecay: cfg.MinGamesForDecay,
		MaxDecayRounds:   cfg.MaxDecayRounds,
	})

	stats, err := calc.Stats(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
