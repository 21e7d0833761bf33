package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// RoundHistory loads a token's final ranks over settled rounds,
// newest-first, bounded by limit.
type RoundHistory interface {
	TokenRanks(ctx context.Context, symbol string, limit int) ([]int, error)
}

// DecayConfig controls exponential recency weighting of historical results.
type DecayConfig struct {
	DecayRate        float64
	MinGamesForDecay int
	MaxDecayRounds   int
}

// DecayedStats is the recency-weighted form of a token's historical
// performance. When DecayApplied is false the decayed fields equal the plain
// ones.
type DecayedStats struct {
	Symbol          string  `json:"symbol"`
	TotalGames      int     `json:"total_games"`
	WinRate         float64 `json:"win_rate"`
	DecayedWinRate  float64 `json:"decayed_win_rate"`
	Top3Rate        float64 `json:"top3_rate"`
	DecayedTop3Rate float64 `json:"decayed_top3_rate"`
	AvgRank         float64 `json:"avg_rank"`
	DecayedAvgRank  float64 `json:"decayed_avg_rank"`
	DecayApplied    bool    `json:"decay_applied"`
}

// DecayCalculator produces "recent form" statistics that respond faster to a
// token's latest trend than a flat historical average.
type DecayCalculator struct {
	history RoundHistory
	cfg     DecayConfig
}

func NewDecayCalculator(history RoundHistory, cfg DecayConfig) *DecayCalculator {
	return &DecayCalculator{history: history, cfg: cfg}
}

// Stats computes plain and decayed win/top-3/average-rank statistics for one
// token. Rounds at position i (0 = newest) are weighted decayRate^i; below
// the minimum-games threshold decay is skipped entirely.
func (c *DecayCalculator) Stats(ctx context.Context, symbol string) (DecayedStats, error) {
	symbol = strings.ToUpper(symbol)
	ranks, err := c.history.TokenRanks(ctx, symbol, c.cfg.MaxDecayRounds)
	if err != nil {
		return DecayedStats{}, fmt.Errorf("load history for %s: %w", symbol, err)
	}
	return DecayRanks(symbol, ranks, c.cfg), nil
}

// BatchStats computes decayed statistics for several tokens.
func (c *DecayCalculator) BatchStats(ctx context.Context, symbols []string) (map[string]DecayedStats, error) {
	out := make(map[string]DecayedStats, len(symbols))
	for _, s := range uniqueUpper(symbols) {
		stats, err := c.Stats(ctx, s)
		if err != nil {
			return nil, err
		}
		out[s] = stats
	}
	return out, nil
}

// DecayRanks is the pure weighting core: ranks must be ordered newest-first.
func DecayRanks(symbol string, ranks []int, cfg DecayConfig) DecayedStats {
	stats := DecayedStats{Symbol: symbol, TotalGames: len(ranks)}
	if len(ranks) == 0 {
		return stats
	}

	wins, top3, rankSum := 0, 0, 0
	for _, r := range ranks {
		if r == 1 {
			wins++
		}
		if r <= 3 {
			top3++
		}
		rankSum += r
	}
	n := float64(len(ranks))
	stats.WinRate = float64(wins) / n * 100
	stats.Top3Rate = float64(top3) / n * 100
	stats.AvgRank = float64(rankSum) / n

	if len(ranks) < cfg.MinGamesForDecay {
		stats.DecayedWinRate = stats.WinRate
		stats.DecayedTop3Rate = stats.Top3Rate
		stats.DecayedAvgRank = stats.AvgRank
		return stats
	}

	var weightSum, winSum, top3Sum, rankWSum float64
	for i, r := range ranks {
		w := math.Pow(cfg.DecayRate, float64(i))
		weightSum += w
		if r == 1 {
			winSum += w
		}
		if r <= 3 {
			top3Sum += w
		}
		rankWSum += w * float64(r)
	}

	stats.DecayApplied = true
	stats.DecayedWinRate = winSum / weightSum * 100
	stats.DecayedTop3Rate = top3Sum / weightSum * 100
	stats.DecayedAvgRank = rankWSum / weightSum
	return stats
}
