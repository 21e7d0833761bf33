package backtest

import (
	"math"
)

// Hourly rounds annualize with this factor.
const annualizationPeriods = 24 * 365

// profitFor maps one round's outcome onto a stake-normalized profit. A
// correct top-1 call pays out; a near miss loses less than a blown call.
func profitFor(correct bool, actualRank int) float64 {
	if correct {
		return 1.0
	}
	switch {
	case actualRank > 0 && actualRank <= 3:
		return -0.5
	case actualRank > 0 && actualRank <= 5:
		return -0.8
	default:
		return -1.0
	}
}

// RiskMetrics are the risk-adjusted statistics of one parameter set's
// simulated profit series.
type RiskMetrics struct {
	TotalProfit   float64 `json:"total_profit"`
	ProfitRate    float64 `json:"profit_rate"`
	Sharpe        float64 `json:"sharpe_ratio"`
	Sortino       float64 `json:"sortino_ratio"`
	Calmar        float64 `json:"calmar_ratio"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	ProfitFactor  float64 `json:"profit_factor"`
	Expectancy    float64 `json:"expectancy"`
	Kelly         float64 `json:"kelly_fraction"`
	HitRate       float64 `json:"hit_rate"`
	BestStreak    int     `json:"best_streak"`
	WorstStreak   int     `json:"worst_streak"`
	EquityFinal   float64 `json:"equity_final"`
	Rounds        int     `json:"rounds"`
}

// ComputeRiskMetrics evaluates a profit series ordered oldest-first. Rounds
// are treated as hourly samples for annualization.
func ComputeRiskMetrics(profits []float64) RiskMetrics {
	m := RiskMetrics{Rounds: len(profits)}
	if len(profits) == 0 {
		return m
	}

	var (
		sum, grossProfit, grossLoss float64
		wins, losses                int
		winSum, lossSum             float64
	)
	equity := 0.0
	peak := 0.0
	maxDD := 0.0
	streak, bestStreak, worstStreak := 0, 0, 0

	for _, p := range profits {
		sum += p
		equity += p
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDD {
			maxDD = dd
		}

		if p > 0 {
			grossProfit += p
			wins++
			winSum += p
			if streak < 0 {
				streak = 0
			}
			streak++
			if streak > bestStreak {
				bestStreak = streak
			}
		} else if p < 0 {
			grossLoss += -p
			losses++
			lossSum += -p
			if streak > 0 {
				streak = 0
			}
			streak--
			if streak < worstStreak {
				worstStreak = streak
			}
		}
	}

	n := float64(len(profits))
	mean := sum / n

	var variance, downVariance float64
	downCount := 0
	for _, p := range profits {
		d := p - mean
		variance += d * d
		if p < 0 {
			downVariance += p * p
			downCount++
		}
	}
	variance /= n
	std := math.Sqrt(variance)

	m.TotalProfit = sum
	m.ProfitRate = mean
	m.MaxDrawdown = maxDD
	m.EquityFinal = equity
	m.HitRate = float64(wins) / n
	m.BestStreak = bestStreak
	m.WorstStreak = -worstStreak

	if std > 0 {
		m.Sharpe = mean / std * math.Sqrt(annualizationPeriods)
	}
	if downCount > 0 {
		downStd := math.Sqrt(downVariance / float64(downCount))
		if downStd > 0 {
			m.Sortino = mean / downStd * math.Sqrt(annualizationPeriods)
		}
	}
	if maxDD > 0 {
		m.Calmar = mean * annualizationPeriods / maxDD
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		// no losing rounds; keep the value JSON-encodable
		m.ProfitFactor = 100
	}

	if wins > 0 && losses > 0 {
		avgWin := winSum / float64(wins)
		avgLoss := lossSum / float64(losses)
		winRate := float64(wins) / n
		m.Expectancy = winRate*avgWin - (1-winRate)*avgLoss
		if avgLoss > 0 {
			r := avgWin / avgLoss
			m.Kelly = winRate - (1-winRate)/r
		}
	}

	return m
}
