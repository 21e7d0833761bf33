package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrank/internal/config"
)

func TestExpand(t *testing.T) {
	t.Run("discards weight combinations that do not sum to one", func(t *testing.T) {
		grid := config.ParameterGrid{
			EloWeight:         []float64{0.4, 0.6},
			MomentumWeight:    []float64{0.6, 0.4},
			MinGamesThreshold: []int{3},
			StabilityPenalty:  []float64{0.1},
		}
		combos := Expand(grid)

		// 2x2 weight pairs, only (0.4,0.6) and (0.6,0.4) are valid.
		require.Len(t, combos, 2)
		for _, c := range combos {
			assert.InDelta(t, 1.0, c.EloWeight+c.MomentumWeight, weightEpsilon)
		}
	})

	t.Run("full default grid", func(t *testing.T) {
		combos := Expand(config.Default().Grid)
		// 4 valid weight pairs x 2 thresholds x 3 penalties.
		assert.Len(t, combos, 24)
	})

	t.Run("floating point weight sums within epsilon pass", func(t *testing.T) {
		grid := config.ParameterGrid{
			EloWeight:         []float64{0.7},
			MomentumWeight:    []float64{0.1 + 0.2}, // 0.30000000000000004
			MinGamesThreshold: []int{3},
			StabilityPenalty:  []float64{0},
		}
		assert.Len(t, Expand(grid), 1)
	})
}

func TestParametersHash(t *testing.T) {
	a := Parameters{EloWeight: 0.6, MomentumWeight: 0.4, MinGamesThreshold: 3, StabilityPenalty: 0.1}
	b := Parameters{EloWeight: 0.6, MomentumWeight: 0.4, MinGamesThreshold: 3, StabilityPenalty: 0.1}
	c := Parameters{EloWeight: 0.5, MomentumWeight: 0.5, MinGamesThreshold: 3, StabilityPenalty: 0.1}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Len(t, a.Hash(), 32)
}
