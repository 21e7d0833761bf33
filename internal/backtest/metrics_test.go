package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfitFor(t *testing.T) {
	assert.Equal(t, 1.0, profitFor(true, 1))
	assert.Equal(t, -0.5, profitFor(false, 2))
	assert.Equal(t, -0.5, profitFor(false, 3))
	assert.Equal(t, -0.8, profitFor(false, 4))
	assert.Equal(t, -0.8, profitFor(false, 5))
	assert.Equal(t, -1.0, profitFor(false, 6))
	assert.Equal(t, -1.0, profitFor(false, 0))
}

func TestComputeRiskMetrics(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		m := ComputeRiskMetrics(nil)
		assert.Equal(t, 0, m.Rounds)
		assert.Zero(t, m.Sharpe)
	})

	t.Run("mixed series", func(t *testing.T) {
		m := ComputeRiskMetrics([]float64{1, -0.5, 1, 1, -1, -0.5, 1})

		assert.Equal(t, 7, m.Rounds)
		assert.InDelta(t, 2.0, m.TotalProfit, 1e-9)
		assert.InDelta(t, 4.0/7.0, m.HitRate, 1e-9)
		assert.Equal(t, 2, m.BestStreak)
		assert.Equal(t, 2, m.WorstStreak)
		assert.Greater(t, m.Sharpe, 0.0)
		assert.Greater(t, m.Sortino, 0.0)
		assert.InDelta(t, 4.0/2.0, m.ProfitFactor, 1e-9)
		assert.Greater(t, m.Kelly, 0.0)
	})

	t.Run("drawdown tracks equity trough", func(t *testing.T) {
		// Equity: 1, 2, 1, 0, 1. Peak 2, trough 0.
		m := ComputeRiskMetrics([]float64{1, 1, -1, -1, 1})
		assert.InDelta(t, 2.0, m.MaxDrawdown, 1e-9)
		assert.Greater(t, m.Calmar, 0.0)
	})

	t.Run("all winning series", func(t *testing.T) {
		m := ComputeRiskMetrics([]float64{1, 1, 1})
		assert.Equal(t, 1.0, m.HitRate)
		assert.Zero(t, m.MaxDrawdown)
		assert.Equal(t, 100.0, m.ProfitFactor)
		// no dispersion, no meaningful ratio
		assert.Zero(t, m.Sharpe)
	})
}
