package backtest

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"tokenrank/internal/models"
)

// ResultSource reads evaluation outcomes for promotion.
type ResultSource interface {
	BestResult(ctx context.Context, runID string) (*models.BacktestResult, error)
	LatestRunID(ctx context.Context) (string, error)
}

// StrategyDirectory persists promoted strategies.
type StrategyDirectory interface {
	FindByParams(ctx context.Context, paramsKey string) (*models.PredictionStrategy, error)
	Promote(ctx context.Context, candidate *models.PredictionStrategy) error
}

// PromoteOptions tune one promotion attempt.
type PromoteOptions struct {
	// RunID selects the run; empty means the most recent one.
	RunID string
	// MinScore is the promotion floor, ignored when Force is set.
	MinScore float64
	// Force promotes the best result regardless of score.
	Force bool
	// SkipComparison disables the refusal when an existing strategy with
	// the same parameters already scores at least as high.
	SkipComparison bool
}

// Promoter turns the best backtest result of a run into the live strategy.
type Promoter struct {
	results    ResultSource
	strategies StrategyDirectory
}

func NewPromoter(results ResultSource, strategies StrategyDirectory) *Promoter {
	return &Promoter{results: results, strategies: strategies}
}

// Promote activates the best result of the chosen run. It returns the
// promoted strategy, or nil when nothing qualified.
func (p *Promoter) Promote(ctx context.Context, opts PromoteOptions) (*models.PredictionStrategy, error) {
	runID := opts.RunID
	if runID == "" {
		latest, err := p.results.LatestRunID(ctx)
		if err != nil {
			return nil, err
		}
		if latest == "" {
			log.Info("no backtest runs exist, nothing to promote")
			return nil, nil
		}
		runID = latest
	}

	best, err := p.results.BestResult(ctx, runID)
	if err != nil {
		return nil, err
	}
	if best == nil {
		log.WithField("run_id", runID).Info("run has no results, nothing to promote")
		return nil, nil
	}

	if !opts.Force && best.Score < opts.MinScore {
		log.WithFields(log.Fields{
			"run_id":    runID,
			"score":     best.Score,
			"min_score": opts.MinScore,
		}).Info("best result below promotion floor, skipping")
		return nil, nil
	}

	paramsKey := string(best.Parameters)
	if !opts.SkipComparison {
		existing, err := p.strategies.FindByParams(ctx, paramsKey)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.Score >= best.Score {
			log.WithFields(log.Fields{
				"run_id":         runID,
				"existing_score": existing.Score,
				"new_score":      best.Score,
			}).Info("existing strategy with identical parameters scores no lower, refusing promotion")
			return nil, nil
		}
	}

	candidate := &models.PredictionStrategy{
		RunID:        runID,
		ParamsKey:    paramsKey,
		Parameters:   best.Parameters,
		StrategyName: fmt.Sprintf("backtest-%s", shortRunID(runID)),
		Score:        best.Score,
	}
	if err := p.strategies.Promote(ctx, candidate); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"run_id": runID,
		"score":  candidate.Score,
		"name":   candidate.StrategyName,
	}).Info("strategy promoted")
	return candidate, nil
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
