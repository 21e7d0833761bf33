package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"tokenrank/internal/backtest"
	"tokenrank/internal/cache"
	appconfig "tokenrank/internal/config"
	"tokenrank/internal/engine"
	"tokenrank/internal/prices"
	"tokenrank/internal/store"
	dbconfig "tokenrank/pkg/config"
)

const (
	// fastGameCount keeps the 2h run cheap; the 8h run replays the full
	// configured window.
	fastGameCount = 300

	roundRetention  = 90 * 24 * time.Hour
	priceRetention  = 14 * 24 * time.Hour
	resultRetention = 30 * 24 * time.Hour
)

type maintenance struct {
	cfg        *appconfig.Config
	cacheStore *cache.Store
	sampler    *prices.Sampler
	evaluator  *backtest.Evaluator
	promoter   *backtest.Promoter
	rounds     *store.RoundStore
	priceRows  *store.PriceStore
	results    *store.BacktestStore
}

// withLock runs fn only on the instance that wins the redis lock, so a
// scaled-out deployment runs each task once per tick.
func (m *maintenance) withLock(name string, ttl time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), ttl)
	defer cancel()

	release, ok, err := m.cacheStore.Lock(ctx, name, ttl)
	if err != nil {
		log.Errorf("Lock %s failed: %v", name, err)
		return
	}
	if !ok {
		log.Debugf("Task %s already running elsewhere, skipping", name)
		return
	}
	defer release()

	if err := fn(ctx); err != nil {
		log.Errorf("Task %s failed: %v", name, err)
	}
}

func (m *maintenance) samplePrices() {
	m.withLock("sample_prices", 50*time.Second, func(ctx context.Context) error {
		return m.sampler.SampleOnce(ctx)
	})
}

func (m *maintenance) runBacktest(label string, gameCount int) {
	m.withLock("backtest_"+label, 30*time.Minute, func(ctx context.Context) error {
		runID := uuid.New().String()
		combos := backtest.Expand(m.cfg.Grid)
		log.Infof("Starting %s backtest run %s: %d combos over %d rounds", label, runID, len(combos), gameCount)

		summary, err := m.evaluator.Run(ctx, runID, gameCount, combos)
		if err != nil {
			return err
		}
		log.Infof("Backtest run %s done: %d rounds, %d evaluated, %d skipped",
			summary.RunID, summary.Rounds, summary.Evaluated, summary.Skipped)
		return nil
	})
}

func (m *maintenance) promote() {
	m.withLock("promote_strategy", 5*time.Minute, func(ctx context.Context) error {
		strategy, err := m.promoter.Promote(ctx, backtest.PromoteOptions{
			MinScore: m.cfg.PromotionMinScore,
		})
		if err != nil {
			return err
		}
		if strategy == nil {
			log.Info("No strategy promoted")
			return nil
		}
		log.Infof("Promoted strategy %s (score %.2f)", strategy.StrategyName, strategy.Score)
		return nil
	})
}

func (m *maintenance) cleanup() {
	m.withLock("cleanup", 10*time.Minute, func(ctx context.Context) error {
		now := time.Now()

		n, err := m.priceRows.DeletePricesBefore(ctx, now.Add(-priceRetention))
		if err != nil {
			return err
		}
		log.Infof("Cleanup removed %d price rows", n)

		n, err = m.rounds.DeleteRoundsBefore(ctx, now.Add(-roundRetention))
		if err != nil {
			return err
		}
		log.Infof("Cleanup removed %d rounds", n)

		n, err = m.results.DeleteResultsBefore(ctx, now.Add(-resultRetention))
		if err != nil {
			return err
		}
		log.Infof("Cleanup removed %d backtest results", n)
		return nil
	})
}

func trackedSymbols() []string {
	raw := os.Getenv("TRACKED_SYMBOLS")
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, strings.ToUpper(s))
		}
	}
	return symbols
}

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
	symbols := trackedSymbols()
	if len(symbols) == 0 {
		log.Fatal("TRACKED_SYMBOLS is required")
	}

	dbconfig.InitDB()

	cacheStore := cache.NewStore(dbconfig.RedisOptions())
	defer cacheStore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cacheStore.Ping(ctx); err != nil {
		log.Fatal("Redis unreachable: ", err)
	}

	rounds := store.NewRoundStore(dbconfig.DB)
	priceRows := store.NewPriceStore(dbconfig.DB)
	results := store.NewBacktestStore(dbconfig.DB)
	ratings := store.NewRatingStore(dbconfig.DB)
	strategies := store.NewStrategyStore(dbconfig.DB)
	archive := store.NewPredictionStore(dbconfig.DB)
	priceClient := prices.NewClient(priceAPI)

	m := &maintenance{
		cfg:        cfg,
		cacheStore: cacheStore,
		sampler:    prices.NewSampler(priceClient, priceRows, symbols),
		evaluator:  backtest.NewEvaluator(rounds, archive, engine.NewEloEngine(ratings), results, cfg.BacktestBatchSize),
		promoter:   backtest.NewPromoter(results, strategies),
		rounds:     rounds,
		priceRows:  priceRows,
		results:    results,
	}

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	entries := []struct {
		spec string
		fn   func()
	}{
		{"0 * * * * *", m.samplePrices},
		{"0 10 */2 * * *", func() { m.runBacktest("fast", fastGameCount) }},
		{"0 30 */8 * * *", func() { m.runBacktest("standard", cfg.DefaultGameCount) }},
		{"0 45 */3 * * *", m.promote},
		{"0 0 4 * * *", m.cleanup},
	}
	for _, e := range entries {
		if _, err := c.AddFunc(e.spec, e.fn); err != nil {
			log.Fatalf("Failed to schedule %q: %v", e.spec, err)
		}
	}

	log.Infof("Maintenance scheduler started, sampling %d symbols", len(symbols))
	c.Start()

	<-ctx.Done()
	log.Info("Scheduler shutting down")
	<-c.Stop().Done()
}
