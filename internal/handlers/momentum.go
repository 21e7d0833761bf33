package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tokenrank/internal/cache"
	appconfig "tokenrank/internal/config"
	"tokenrank/internal/engine"
	"tokenrank/internal/store"
	dbconfig "tokenrank/pkg/config"
)

// slopeSampleCount bounds the minute-price window fed to the regression.
const slopeSampleCount = 30

type momentumSummary struct {
	Symbols    []string           `json:"symbols"`
	Scores     map[string]float64 `json:"scores"`
	ComputedAt time.Time          `json:"computed_at"`
}

// GetMomentumSummary returns slope-based momentum scores for a comma
// separated symbol list, computed over the recent minute-price history and
// cached briefly.
func GetMomentumSummary(c *gin.Context) {
	var symbols []string
	for _, s := range strings.Split(c.Query("symbols"), ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols is required"})
		return
	}
	sort.Strings(symbols)
	key := cache.MomentumKey(strings.Join(symbols, ","))

	var summary momentumSummary
	found, err := cacheStore.GetJSON(c.Request.Context(), key, &summary)
	if err == nil && found {
		c.JSON(http.StatusOK, summary)
		return
	}

	prices := store.NewPriceStore(dbconfig.DB)
	series := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		samples, err := prices.LatestSeries(c.Request.Context(), symbol, slopeSampleCount)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		series[symbol] = samples
	}

	cfg := appconfig.Default()
	calc := engine.NewMomentumCalculator(engine.MomentumConfig{
		Threshold:        cfg.MomentumThreshold,
		Sensitivity:      cfg.MomentumSensitivity,
		MicroSensitivity: cfg.MicroSensitivity,
	})

	summary = momentumSummary{
		Symbols:    symbols,
		Scores:     calc.SlopeScores(series),
		ComputedAt: time.Now().UTC(),
	}
	_ = cacheStore.SetJSON(c.Request.Context(), key, summary, cache.MomentumTTL)

	c.JSON(http.StatusOK, summary)
}
