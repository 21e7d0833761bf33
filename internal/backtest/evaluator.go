package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"tokenrank/internal/engine"
	"tokenrank/internal/models"
	"tokenrank/internal/store"
)

// RoundSource loads settled rounds for replay.
type RoundSource interface {
	RecentSettledRounds(ctx context.Context, limit, offset int) ([]store.SettledRound, error)
}

// ArchiveSource loads the momentum scores archived at prediction time.
type ArchiveSource interface {
	ByRound(ctx context.Context, gameRoundID uint) ([]models.RoundPrediction, error)
}

// RatingSource provides current Elo probabilities and per-token game
// counts.
type RatingSource interface {
	Probabilities(ctx context.Context, symbols []string) (map[string]float64, error)
	GetRatings(ctx context.Context, symbols []string) (map[string]models.TokenRating, error)
}

// ResultSink persists evaluation outcomes with (run, hash) dedup.
type ResultSink interface {
	Exists(ctx context.Context, runID, paramsHash string) (bool, error)
	Save(ctx context.Context, result *models.BacktestResult) error
}

// roundData is one settled round prepared for replay: actual ranks, base
// Elo probabilities, per-token game counts and archived momentum.
type roundData struct {
	roundID  string
	ranks    map[string]int
	symbols  []string
	probs    map[string]float64
	games    map[string]int
	momentum map[string]*float64
}

// RunSummary reports one parameter-search pass.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Rounds    int    `json:"rounds"`
	Evaluated int    `json:"evaluated"`
	Skipped   int    `json:"skipped"`
}

// Evaluator replays historical rounds through the score mixer under
// candidate parameter sets.
type Evaluator struct {
	rounds    RoundSource
	archive   ArchiveSource
	ratings   RatingSource
	results   ResultSink
	mixer     *engine.ScoreMixer
	batchSize int
}

func NewEvaluator(rounds RoundSource, archive ArchiveSource, ratings RatingSource, results ResultSink, batchSize int) *Evaluator {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Evaluator{
		rounds:    rounds,
		archive:   archive,
		ratings:   ratings,
		results:   results,
		mixer:     engine.NewScoreMixer(engine.Weights{Elo: 0.65, Momentum: 0.35}),
		batchSize: batchSize,
	}
}

// Run evaluates every candidate against up to gameCount settled rounds.
// Already-evaluated (run, hash) combinations are skipped without work.
func (e *Evaluator) Run(ctx context.Context, runID string, gameCount int, combos []Parameters) (*RunSummary, error) {
	data, err := e.prepareRounds(ctx, gameCount)
	if err != nil {
		return nil, err
	}
	summary := &RunSummary{RunID: runID, Rounds: len(data)}
	if len(data) == 0 {
		log.WithField("run_id", runID).Warn("no settled rounds to backtest")
		return summary, nil
	}

	for _, combo := range combos {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		hash := combo.Hash()
		seen, err := e.results.Exists(ctx, runID, hash)
		if err != nil {
			return summary, err
		}
		if seen {
			summary.Skipped++
			continue
		}

		result := e.evaluate(runID, combo, data)
		if err := e.results.Save(ctx, result); err != nil {
			return summary, err
		}
		summary.Evaluated++
	}

	log.WithFields(log.Fields{
		"run_id":    runID,
		"rounds":    summary.Rounds,
		"evaluated": summary.Evaluated,
		"skipped":   summary.Skipped,
	}).Info("backtest run complete")
	return summary, nil
}

// prepareRounds loads and enriches rounds in bounded batches, newest
// first, paging the query so at most batchSize rounds are resident before
// enrichment.
func (e *Evaluator) prepareRounds(ctx context.Context, gameCount int) ([]roundData, error) {
	out := make([]roundData, 0, gameCount)
	for offset := 0; offset < gameCount; offset += e.batchSize {
		limit := e.batchSize
		if remaining := gameCount - offset; remaining < limit {
			limit = remaining
		}
		settled, err := e.rounds.RecentSettledRounds(ctx, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("load rounds: %w", err)
		}
		for _, sr := range settled {
			rd, err := e.prepareRound(ctx, sr)
			if err != nil {
				return nil, err
			}
			if rd != nil {
				out = append(out, *rd)
			}
		}
		if len(settled) < limit {
			break
		}
	}
	return out, nil
}

func (e *Evaluator) prepareRound(ctx context.Context, sr store.SettledRound) (*roundData, error) {
	if len(sr.Results) < 2 {
		return nil, nil
	}

	rd := &roundData{
		roundID:  sr.Round.RoundID,
		ranks:    make(map[string]int, len(sr.Results)),
		symbols:  make([]string, 0, len(sr.Results)),
		momentum: make(map[string]*float64, len(sr.Results)),
	}
	for _, res := range sr.Results {
		rd.ranks[res.TokenSymbol] = res.Rank
		rd.symbols = append(rd.symbols, res.TokenSymbol)
		rd.momentum[res.TokenSymbol] = nil
	}

	probs, err := e.ratings.Probabilities(ctx, rd.symbols)
	if err != nil {
		return nil, fmt.Errorf("probabilities for round %s: %w", rd.roundID, err)
	}
	rd.probs = probs

	ratings, err := e.ratings.GetRatings(ctx, rd.symbols)
	if err != nil {
		return nil, fmt.Errorf("ratings for round %s: %w", rd.roundID, err)
	}
	rd.games = make(map[string]int, len(ratings))
	for sym, r := range ratings {
		rd.games[sym] = r.Games
	}

	archived, err := e.archive.ByRound(ctx, sr.Round.ID)
	if err != nil {
		return nil, fmt.Errorf("archived predictions for round %s: %w", rd.roundID, err)
	}
	for _, p := range archived {
		score := p.MomScore
		rd.momentum[p.TokenSymbol] = &score
	}

	return rd, nil
}

// evaluate replays every round under one parameter set. Rounds are ordered
// newest first; recency weights interpolate linearly from 1.5 (newest) down
// to 0.5 (oldest).
func (e *Evaluator) evaluate(runID string, combo Parameters, data []roundData) *models.BacktestResult {
	var (
		correct, top3Correct   int
		weightSum              float64
		weightedCorrect        float64
		weightedTop3           float64
		confidenceSum          float64
		profits                = make([]float64, 0, len(data))
	)

	weights := &engine.Weights{Elo: combo.EloWeight, Momentum: combo.MomentumWeight}

	for i, rd := range data {
		w := recencyWeight(i, len(data))
		weightSum += w

		probs := applyStabilityPenalty(rd, combo)
		preds := e.mixer.MixWithWeights(probs, rd.momentum, weights)
		if len(preds) == 0 {
			continue
		}

		top := preds[0]
		actualRank := rd.ranks[top.Symbol]
		isCorrect := actualRank == 1
		isTop3 := actualRank >= 1 && actualRank <= 3

		if isCorrect {
			correct++
			weightedCorrect += w
		}
		if isTop3 {
			top3Correct++
			weightedTop3 += w
		}
		confidenceSum += top.Confidence

		profits = append(profits, profitFor(isCorrect, actualRank))
	}

	n := len(data)
	nf := float64(n)
	accuracy := float64(correct) / nf * 100
	top3Accuracy := float64(top3Correct) / nf * 100
	weightedAccuracy := weightedCorrect / weightSum * 100
	top3WeightedAccuracy := weightedTop3 / weightSum * 100
	avgConfidence := confidenceSum / nf

	// The profit series runs oldest-first for the equity curve.
	reverse(profits)
	risk := ComputeRiskMetrics(profits)

	score := compositeScore(top3WeightedAccuracy, avgConfidence, n, top3Accuracy)

	paramsJSON, _ := json.Marshal(combo)
	detailJSON, _ := json.Marshal(risk)

	return &models.BacktestResult{
		RunID:                  runID,
		ParamsHash:             combo.Hash(),
		Parameters:             paramsJSON,
		Score:                  round2(score),
		TotalGames:             n,
		CorrectPredictions:     correct,
		Top3CorrectPredictions: top3Correct,
		Accuracy:               round2(accuracy),
		WeightedAccuracy:       round2(weightedAccuracy),
		Top3Accuracy:           round2(top3Accuracy),
		Top3WeightedAccuracy:   round2(top3WeightedAccuracy),
		AvgConfidence:          round2(avgConfidence),
		SharpeRatio:            round2(risk.Sharpe),
		SortinoRatio:           round2(risk.Sortino),
		CalmarRatio:            round2(risk.Calmar),
		MaxDrawdown:            round2(risk.MaxDrawdown),
		ProfitFactor:           round2(risk.ProfitFactor),
		DetailedResults:        detailJSON,
	}
}

// applyStabilityPenalty shrinks the Elo probability of under-sampled tokens
// toward the uniform prior.
func applyStabilityPenalty(rd roundData, combo Parameters) map[string]float64 {
	if combo.StabilityPenalty <= 0 {
		return rd.probs
	}

	uniform := 1.0 / float64(len(rd.symbols))
	out := make(map[string]float64, len(rd.probs))
	for sym, p := range rd.probs {
		if rd.games[sym] < combo.MinGamesThreshold {
			out[sym] = p*(1-combo.StabilityPenalty) + uniform*combo.StabilityPenalty
		} else {
			out[sym] = p
		}
	}
	return out
}

// recencyWeight interpolates 1.5 (index 0, newest) down to 0.5 (oldest).
func recencyWeight(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	return 1.5 - float64(i)/float64(n-1)
}

// compositeScore is the single ranking metric of a run. Weighted top-3
// accuracy dominates; the sample-size bonus caps at 10 and accuracy above
// 70% earns a small extra.
func compositeScore(top3WeightedAcc, avgConf float64, games int, top3Acc float64) float64 {
	score := 0.6*top3WeightedAcc + 0.3*avgConf + math.Min(float64(games)/1000, 1)*10
	if top3Acc > 70 {
		score += (top3Acc - 70) * 0.1
	}
	return score
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
