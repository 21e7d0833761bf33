package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tokenrank/internal/cache"
	appconfig "tokenrank/internal/config"
	"tokenrank/internal/events"
	"tokenrank/internal/ingest"
	"tokenrank/internal/pipeline"
	"tokenrank/internal/store"
	dbconfig "tokenrank/pkg/config"

	log "github.com/sirupsen/logrus"
)

func main() {
	dbconfig.InitLogging()

	cfg, err := appconfig.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	feedURL := os.Getenv("GAME_WS_URL")
	if feedURL == "" {
		log.Fatal("GAME_WS_URL is required")
	}

	dbconfig.InitDB()
	dbconfig.InitRabbitMQ()
	defer dbconfig.RabbitMQ.Close()

	cacheStore := cache.NewStore(dbconfig.RedisOptions())
	defer cacheStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cacheStore.Ping(ctx); err != nil {
		log.Fatal("Redis unreachable: ", err)
	}

	pub, err := dbconfig.NewPublisher()
	if err != nil {
		log.Fatal("Failed to create publisher: ", err)
	}
	defer pub.Close()

	processor := ingest.NewProcessor(
		store.NewRoundStore(dbconfig.DB),
		pipeline.NewDispatcher(pub),
		cacheStore,
		events.NewPublisher(pub),
	)

	listener := ingest.NewListener(feedURL, cfg.ReconnectDelay, processor)

	log.Infof("Game feed listener started, connecting to %s", feedURL)
	if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("Listener stopped: ", err)
	}
	log.Info("Listener shut down")
}
