package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tokenrank/internal/cache"
	appconfig "tokenrank/internal/config"
	"tokenrank/internal/engine"
	"tokenrank/internal/events"
	"tokenrank/internal/pipeline"
	"tokenrank/internal/prices"
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

	priceAPI := os.Getenv("PRICE_API_URL")
	if priceAPI == "" {
		log.Fatal("PRICE_API_URL is required")
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

	worker := pipeline.NewWorker(
		pipeline.WorkerConfig{
			SecondSampleDelay: cfg.SecondSampleDelay,
			MaxAttempts:       cfg.MaxAttempts,
			RetryBackoff:      cfg.RetryBackoff,
		},
		store.NewRoundStore(dbconfig.DB),
		store.NewPredictionStore(dbconfig.DB),
		store.NewStrategyStore(dbconfig.DB),
		engine.NewEloEngine(store.NewRatingStore(dbconfig.DB)),
		cacheStore,
		prices.NewClient(priceAPI),
		pipeline.NewDispatcher(pub),
		events.NewPublisher(pub),
		engine.NewMomentumCalculator(engine.MomentumConfig{
			Threshold:        cfg.MomentumThreshold,
			Sensitivity:      cfg.MomentumSensitivity,
			MicroSensitivity: cfg.MicroSensitivity,
		}),
		engine.NewScoreMixer(engine.Weights{Elo: cfg.EloWeight, Momentum: cfg.MomentumWeight}),
	)

	errs := make(chan error, 2)

	consume := func(queue string, handler func(context.Context, []byte) error) {
		consumer, err := dbconfig.NewConsumer(queue)
		if err != nil {
			log.Fatalf("Failed to create consumer for %s: %v", queue, err)
		}
		go func() {
			defer consumer.Close()
			errs <- consumer.Consume(ctx, func(msg []byte) error {
				return handler(ctx, msg)
			})
		}()
	}

	consume(pipeline.QueuePredictions, worker.HandlePredictionMessage)
	consume(pipeline.QueueRatings, worker.HandleRatingMessage)

	log.Info("Pipeline worker started, waiting for jobs...")

	select {
	case <-ctx.Done():
		log.Info("Worker shutting down")
	case err := <-errs:
		if err != nil && ctx.Err() == nil {
			log.Fatal("Consumer stopped: ", err)
		}
	}
}
