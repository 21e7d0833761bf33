package routes

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"tokenrank/internal/handlers"
	"tokenrank/internal/middleware"
)

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter() *gin.Engine {
	r := gin.Default()

	// Add health check endpoint
	r.Any("/health", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Configure CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Allowed origins come from the environment as a comma-separated
		// list, e.g. "http://localhost:3000,http://localhost:3001"
		allowed := false
		for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" && trimmed == origin {
				allowed = true
				break
			}
		}
		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		// Handle preflight requests
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: 20,
		Burst:             40,
	}))

	// Predictions and round outcomes
	api.GET("/rounds/:round_id/prediction", handlers.GetRoundPrediction)
	api.GET("/rounds/:round_id/prediction/history", handlers.GetRoundPredictionHistory)
	api.GET("/rounds/:round_id/results", handlers.GetRoundResults)

	// Ratings and momentum
	api.GET("/ratings", handlers.ListTokenRatings)
	api.GET("/ratings/:symbol/stats", handlers.GetTokenStats)
	api.GET("/momentum", handlers.GetMomentumSummary)

	// Strategies
	api.GET("/strategies/active", handlers.GetActiveStrategy)
	api.GET("/strategies/history", handlers.ListStrategyHistory)

	// Backtests
	api.GET("/backtests", handlers.ListBacktestResults)
	api.GET("/backtests/:run_id/best", handlers.GetBestBacktestResult)

	return r
}
