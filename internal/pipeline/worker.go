package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"tokenrank/internal/cache"
	"tokenrank/internal/engine"
	"tokenrank/internal/models"
)

// Rounds is the round persistence seam of the worker.
type Rounds interface {
	EnsureRound(ctx context.Context, roundID string) (*models.GameRound, error)
	RoundByExternalID(ctx context.Context, roundID string) (*models.GameRound, error)
	ResultsForRound(ctx context.Context, gameRoundID uint) ([]models.RoundResult, error)
}

// Predictions archives computed prediction lists.
type Predictions interface {
	SavePredictions(ctx context.Context, gameRoundID uint, preds []engine.Prediction, degraded bool) error
}

// Strategies exposes the promoted parameter set, if any.
type Strategies interface {
	Active(ctx context.Context) (*models.PredictionStrategy, error)
}

// Rater is the Elo engine seam.
type Rater interface {
	UpdateElo(ctx context.Context, winner, loser string, kf float64) (engine.EloDelta, error)
	Probabilities(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Cache is the subset of the redis store the worker touches.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	MarkFailed(ctx context.Context, roundID, reason string) error
}

// Fetcher is the batch price lookup.
type Fetcher interface {
	Batch(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Notifier emits outbound lifecycle events.
type Notifier interface {
	PredictionUpdated(ctx context.Context, roundID string, payload interface{})
	RatingUpdated(ctx context.Context, roundID string, payload interface{})
}

// WorkerConfig carries the pipeline timing and retry knobs.
type WorkerConfig struct {
	SecondSampleDelay time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration
}

// Worker executes pipeline jobs consumed from the queues. Stage failures
// are retried a bounded number of times by republishing with an incremented
// attempt counter; exhaustion leaves a failure marker instead of blocking
// the queue.
type Worker struct {
	cfg         WorkerConfig
	rounds      Rounds
	predictions Predictions
	strategies  Strategies
	rater       Rater
	cacheStore  Cache
	fetcher     Fetcher
	dispatcher  *Dispatcher
	notifier    Notifier
	momentum    *engine.MomentumCalculator
	mixer       *engine.ScoreMixer
}

func NewWorker(
	cfg WorkerConfig,
	rounds Rounds,
	predictions Predictions,
	strategies Strategies,
	rater Rater,
	cacheStore Cache,
	fetcher Fetcher,
	dispatcher *Dispatcher,
	notifier Notifier,
	momentum *engine.MomentumCalculator,
	mixer *engine.ScoreMixer,
) *Worker {
	return &Worker{
		cfg:         cfg,
		rounds:      rounds,
		predictions: predictions,
		strategies:  strategies,
		rater:       rater,
		cacheStore:  cacheStore,
		fetcher:     fetcher,
		dispatcher:  dispatcher,
		notifier:    notifier,
		momentum:    momentum,
		mixer:       mixer,
	}
}

// HandlePredictionMessage is the consumer callback for the prediction
// queue. It always acks: malformed messages are dropped, stage errors go
// through the bounded retry path.
func (w *Worker) HandlePredictionMessage(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		log.WithError(err).Error("undecodable prediction job dropped")
		return nil
	}

	w.waitUntilDue(ctx, job)

	var err error
	switch job.Type {
	case JobFetchInitialPrice:
		err = w.fetchInitialPrice(ctx, job)
	case JobComputePrediction:
		err = w.computePrediction(ctx, job)
	default:
		log.WithField("type", job.Type).Error("unknown prediction job dropped")
		return nil
	}
	if err != nil {
		w.retryOrFail(ctx, job, err)
	}
	return nil
}

// HandleRatingMessage is the consumer callback for the rating queue.
func (w *Worker) HandleRatingMessage(ctx context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		log.WithError(err).Error("undecodable rating job dropped")
		return nil
	}
	if job.Type != JobUpdateRatings {
		log.WithField("type", job.Type).Error("unknown rating job dropped")
		return nil
	}

	if err := w.updateRatings(ctx, job); err != nil {
		w.retryOrFail(ctx, job, err)
	}
	return nil
}

// waitUntilDue holds an early delivery until its RunAt stamp.
func (w *Worker) waitUntilDue(ctx context.Context, job Job) {
	if job.RunAt.IsZero() {
		return
	}
	delay := time.Until(job.RunAt)
	if delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// retryOrFail republishes the job with attempt+1 or, when attempts are
// exhausted, records the failure marker.
func (w *Worker) retryOrFail(ctx context.Context, job Job, cause error) {
	next := job.Attempt + 1
	if next < w.cfg.MaxAttempts {
		job.Attempt = next
		log.WithError(cause).WithFields(log.Fields{
			"job":      job.Type,
			"round_id": job.RoundID,
			"attempt":  next,
		}).Warn("pipeline stage failed, retrying")
		if err := w.dispatcher.DispatchAt(ctx, job, time.Now().Add(w.cfg.RetryBackoff)); err != nil {
			log.WithError(err).Error("retry dispatch failed")
		}
		return
	}

	log.WithError(cause).WithFields(log.Fields{
		"job":      job.Type,
		"round_id": job.RoundID,
	}).Error("pipeline stage failed permanently")

	if err := w.cacheStore.MarkFailed(ctx, job.RoundID, cause.Error()); err != nil {
		log.WithError(err).Error("failure marker write failed")
	}
	w.setState(ctx, job.RoundID, job.Symbols, StateFailed)
}

func (w *Worker) setState(ctx context.Context, roundID string, symbols []string, state string) {
	entry := RoundState{
		RoundID:   roundID,
		State:     state,
		Symbols:   symbols,
		UpdatedAt: time.Now().UTC(),
	}
	if err := w.cacheStore.SetJSON(ctx, RoundStateKey(roundID), entry, 10*time.Minute); err != nil {
		log.WithError(err).WithField("round_id", roundID).Warn("round state cache write failed")
	}
}

// fetchInitialPrice is stage one: snapshot P0 for every token and schedule
// the prediction computation after the sampling window.
func (w *Worker) fetchInitialPrice(ctx context.Context, job Job) error {
	if len(job.Symbols) == 0 {
		return fmt.Errorf("round %s: no symbols to sample", job.RoundID)
	}

	batch, err := w.fetcher.Batch(ctx, job.Symbols)
	if err != nil {
		return fmt.Errorf("initial price fetch: %w", err)
	}

	snapshot := cache.InitialPrices{
		RoundID:   job.RoundID,
		Prices:    make(map[string]float64, len(batch)),
		SampledAt: time.Now().UTC(),
	}
	for symbol, price := range batch {
		if price > 0 {
			snapshot.Prices[symbol] = price
		}
	}
	if err := w.cacheStore.SetJSON(ctx, cache.PriceP0Key(job.RoundID), snapshot, cache.PriceP0TTL); err != nil {
		return fmt.Errorf("cache initial prices: %w", err)
	}

	w.setState(ctx, job.RoundID, job.Symbols, StateAwaitingSecondSample)

	next := Job{
		Type:    JobComputePrediction,
		RoundID: job.RoundID,
		Symbols: job.Symbols,
	}
	if err := w.dispatcher.DispatchAt(ctx, next, time.Now().Add(w.cfg.SecondSampleDelay)); err != nil {
		return fmt.Errorf("schedule prediction stage: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id": job.RoundID,
		"sampled":  len(snapshot.Prices),
		"tokens":   len(job.Symbols),
	}).Info("initial prices cached")
	return nil
}

// computePrediction is stage two: second price sample, momentum, Elo and
// the final mix. Missing samples degrade individual tokens to the fallback
// momentum score, they never block the round.
func (w *Worker) computePrediction(ctx context.Context, job Job) error {
	if len(job.Symbols) < 2 {
		return fmt.Errorf("round %s: need at least two tokens, got %d", job.RoundID, len(job.Symbols))
	}

	var snapshot cache.InitialPrices
	p0Found, err := w.cacheStore.GetJSON(ctx, cache.PriceP0Key(job.RoundID), &snapshot)
	if err != nil {
		return fmt.Errorf("load initial prices: %w", err)
	}
	if !p0Found {
		log.WithField("round_id", job.RoundID).Warn("initial price snapshot expired, momentum degrades to fallback")
	}

	current, err := w.fetcher.Batch(ctx, job.Symbols)
	if err != nil {
		return fmt.Errorf("second price fetch: %w", err)
	}

	momScores := make(map[string]*float64, len(job.Symbols))
	anyDegraded := false
	for _, symbol := range job.Symbols {
		p0 := snapshot.Prices[symbol]
		p1 := current[symbol]
		score, degraded := w.momentum.Score(symbol, p0, p1, 50)
		if degraded {
			anyDegraded = true
		}
		s := score
		momScores[symbol] = &s
	}

	probs, err := w.rater.Probabilities(ctx, job.Symbols)
	if err != nil {
		return fmt.Errorf("elo probabilities: %w", err)
	}
	if len(probs) == 0 {
		return fmt.Errorf("round %s: no Elo probabilities", job.RoundID)
	}

	weights, err := w.activeWeights(ctx)
	if err != nil {
		log.WithError(err).Warn("active strategy lookup failed, using default weights")
		weights = nil
	}

	preds := w.mixer.MixWithWeights(probs, momScores, weights)
	if len(preds) == 0 {
		return fmt.Errorf("round %s: empty prediction", job.RoundID)
	}

	round, err := w.rounds.EnsureRound(ctx, job.RoundID)
	if err != nil {
		return err
	}
	if err := w.predictions.SavePredictions(ctx, round.ID, preds, anyDegraded); err != nil {
		return err
	}

	encoded, err := json.Marshal(preds)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	cached := cache.CachedPrediction{
		RoundID:     job.RoundID,
		Predictions: encoded,
		Degraded:    anyDegraded,
		ComputedAt:  time.Now().UTC(),
	}
	if err := w.cacheStore.SetJSON(ctx, cache.PredictionKey(job.RoundID), cached, cache.PredictionTTL); err != nil {
		return fmt.Errorf("cache prediction: %w", err)
	}

	w.setState(ctx, job.RoundID, job.Symbols, StateComputed)
	w.notifier.PredictionUpdated(ctx, job.RoundID, cached)

	log.WithFields(log.Fields{
		"round_id": job.RoundID,
		"top":      preds[0].Symbol,
		"degraded": anyDegraded,
	}).Info("prediction computed")
	return nil
}

// activeWeights parses the promoted strategy's weights, nil when no
// strategy is active.
func (w *Worker) activeWeights(ctx context.Context) (*engine.Weights, error) {
	strategy, err := w.strategies.Active(ctx)
	if err != nil {
		return nil, err
	}
	if strategy == nil || len(strategy.Parameters) == 0 {
		return nil, nil
	}

	var weights engine.Weights
	if err := json.Unmarshal(strategy.Parameters, &weights); err != nil {
		return nil, fmt.Errorf("decode strategy parameters: %w", err)
	}
	if weights.Elo <= 0 && weights.Momentum <= 0 {
		return nil, nil
	}
	return &weights, nil
}

// updateRatings is stage three, after settlement: every higher-ranked token
// beats every lower-ranked one, N(N-1)/2 pairwise updates.
func (w *Worker) updateRatings(ctx context.Context, job Job) error {
	round, err := w.rounds.RoundByExternalID(ctx, job.RoundID)
	if err != nil {
		return err
	}
	results, err := w.rounds.ResultsForRound(ctx, round.ID)
	if err != nil {
		return err
	}
	if len(results) < 2 {
		return fmt.Errorf("round %s: %d results, nothing to rate", job.RoundID, len(results))
	}

	// Pairs commit independently, so a whole-job retry would re-apply
	// deltas that already landed. A failed pair is logged and skipped.
	updates := 0
	skipped := 0
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if _, err := w.rater.UpdateElo(ctx, results[i].TokenSymbol, results[j].TokenSymbol, 1.0); err != nil {
				skipped++
				log.WithError(err).WithFields(log.Fields{
					"round_id": job.RoundID,
					"winner":   results[i].TokenSymbol,
					"loser":    results[j].TokenSymbol,
				}).Warn("pairwise rating update failed, skipping pair")
				continue
			}
			updates++
		}
	}

	w.notifier.RatingUpdated(ctx, job.RoundID, map[string]interface{}{
		"pairs":   updates,
		"skipped": skipped,
		"tokens":  len(results),
	})

	log.WithFields(log.Fields{
		"round_id": job.RoundID,
		"pairs":    updates,
		"skipped":  skipped,
	}).Info("ratings updated")
	return nil
}
