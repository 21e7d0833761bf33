package main

import (
	"os"

	"tokenrank/internal/cache"
	"tokenrank/internal/handlers"
	"tokenrank/internal/routes"
	dbconfig "tokenrank/pkg/config"

	log "github.com/sirupsen/logrus"
)

func main() {
	dbconfig.InitLogging()

	// Initialize database
	dbconfig.InitDB()

	// Initialize redis for prediction cache reads
	cacheStore := cache.NewStore(dbconfig.RedisOptions())
	defer cacheStore.Close()
	dbconfig.MustPingRedis(cacheStore.Client)
	handlers.Init(cacheStore)

	// Set up router
	r := routes.SetupRouter()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
