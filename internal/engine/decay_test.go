package engine

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRoundHistory struct {
	ranks map[string][]int
}

func (h *memRoundHistory) TokenRanks(_ context.Context, symbol string, limit int) ([]int, error) {
	ranks := h.ranks[strings.ToUpper(symbol)]
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

func testDecayConfig() DecayConfig {
	return DecayConfig{DecayRate: 0.97, MinGamesForDecay: 10, MaxDecayRounds: 1000}
}

func TestDecayRanks(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		stats := DecayRanks("BTC", nil, testDecayConfig())
		assert.Equal(t, 0, stats.TotalGames)
		assert.False(t, stats.DecayApplied)
		assert.Zero(t, stats.WinRate)
	})

	t.Run("below threshold keeps plain averages", func(t *testing.T) {
		// 5 games: 2 wins, 4 top-3 finishes.
		stats := DecayRanks("BTC", []int{1, 3, 1, 2, 7}, testDecayConfig())
		assert.False(t, stats.DecayApplied)
		assert.InDelta(t, 40.0, stats.WinRate, 1e-9)
		assert.InDelta(t, 80.0, stats.Top3Rate, 1e-9)
		assert.InDelta(t, 2.8, stats.AvgRank, 1e-9)
		assert.Equal(t, stats.WinRate, stats.DecayedWinRate)
		assert.Equal(t, stats.AvgRank, stats.DecayedAvgRank)
	})

	t.Run("weights decay geometrically newest first", func(t *testing.T) {
		// Newest round is a win, all older ones losses. The decayed win
		// rate must exceed the plain one.
		ranks := []int{1, 8, 8, 8, 8, 8, 8, 8, 8, 8}
		stats := DecayRanks("BTC", ranks, testDecayConfig())
		require.True(t, stats.DecayApplied)
		assert.Greater(t, stats.DecayedWinRate, stats.WinRate)
		assert.Less(t, stats.DecayedAvgRank, stats.AvgRank)

		// Oldest-round win is worth less than the plain average.
		reversed := []int{8, 8, 8, 8, 8, 8, 8, 8, 8, 1}
		old := DecayRanks("BTC", reversed, testDecayConfig())
		assert.Less(t, old.DecayedWinRate, old.WinRate)
	})

	t.Run("rate one degenerates to plain average", func(t *testing.T) {
		cfg := testDecayConfig()
		cfg.DecayRate = 1.0
		ranks := []int{1, 4, 2, 9, 3, 1, 5, 6, 2, 8}
		stats := DecayRanks("BTC", ranks, cfg)
		require.True(t, stats.DecayApplied)
		assert.InDelta(t, stats.WinRate, stats.DecayedWinRate, 1e-9)
		assert.InDelta(t, stats.Top3Rate, stats.DecayedTop3Rate, 1e-9)
		assert.InDelta(t, stats.AvgRank, stats.DecayedAvgRank, 1e-9)
	})

	t.Run("explicit weight check", func(t *testing.T) {
		cfg := testDecayConfig()
		cfg.MinGamesForDecay = 2
		// Two rounds, weights 1 and 0.97; only newest is a win.
		stats := DecayRanks("BTC", []int{1, 5}, cfg)
		require.True(t, stats.DecayApplied)
		want := 1.0 / (1.0 + 0.97) * 100
		assert.InDelta(t, want, stats.DecayedWinRate, 1e-9)

		wantRank := (1.0 + 0.97*5.0) / (1.0 + 0.97)
		assert.InDelta(t, wantRank, stats.DecayedAvgRank, 1e-9)
	})
}

func TestDecayCalculatorStats(t *testing.T) {
	ctx := context.Background()
	history := &memRoundHistory{ranks: map[string][]int{
		"BTC": {1, 2, 1, 3, 2, 1, 4, 2, 1, 3, 5, 2},
		"ETH": {6, 7},
	}}
	calc := NewDecayCalculator(history, testDecayConfig())

	t.Run("single token", func(t *testing.T) {
		stats, err := calc.Stats(ctx, "btc")
		require.NoError(t, err)
		assert.Equal(t, "BTC", stats.Symbol)
		assert.Equal(t, 12, stats.TotalGames)
		assert.True(t, stats.DecayApplied)
	})

	t.Run("history bounded by max rounds", func(t *testing.T) {
		long := make([]int, 1500)
		for i := range long {
			long[i] = 4
		}
		bounded := &memRoundHistory{ranks: map[string][]int{"SOL": long}}
		c := NewDecayCalculator(bounded, testDecayConfig())
		stats, err := c.Stats(ctx, "SOL")
		require.NoError(t, err)
		assert.Equal(t, 1000, stats.TotalGames)
	})

	t.Run("batch covers all symbols once", func(t *testing.T) {
		out, err := calc.BatchStats(ctx, []string{"BTC", "eth", "ETH"})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, 2, out["ETH"].TotalGames)
		assert.False(t, out["ETH"].DecayApplied)
		assert.False(t, math.IsNaN(out["ETH"].DecayedAvgRank))
	})
}
