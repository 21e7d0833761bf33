package engine

import (
	"hash/crc32"
	"math"
	"sort"
	"strings"
)

// MomentumConfig controls how price movement translates into a 0-100 score.
type MomentumConfig struct {
	// Threshold below which a move counts as micro noise, on the
	// (p1/p0 - 1) * 1000 scale.
	Threshold float64
	// Sensitivity maps momentum onto score spread for real moves.
	Sensitivity float64
	// MicroSensitivity amplifies sub-threshold moves inside the neutral band.
	MicroSensitivity float64
}

// MomentumCalculator scores short-term price movement per token.
type MomentumCalculator struct {
	cfg MomentumConfig
}

func NewMomentumCalculator(cfg MomentumConfig) *MomentumCalculator {
	return &MomentumCalculator{cfg: cfg}
}

// maxPriceRatio bounds plausible movement between two samples; anything
// beyond it is treated as bad data, not momentum.
const maxPriceRatio = 100.0

// validPricePair rejects missing, non-positive, non-finite and implausibly
// jumping price pairs.
func validPricePair(p0, p1 float64) bool {
	if math.IsNaN(p0) || math.IsNaN(p1) || math.IsInf(p0, 0) || math.IsInf(p1, 0) {
		return false
	}
	if p0 <= 0 || p1 <= 0 {
		return false
	}
	ratio := p1 / p0
	return ratio >= 1/maxPriceRatio && ratio <= maxPriceRatio
}

// FallbackScore derives a stable pseudo-random score in a narrow neutral
// band from the symbol alone, so tokens with no usable price data still rank
// differently instead of tying.
func FallbackScore(symbol string) float64 {
	h := crc32.ChecksumIEEE([]byte(strings.ToUpper(symbol)))
	return math.Round((45.0+float64(h%20)/10.0)*10) / 10
}

// Score converts an older sample p0 and a newer sample p1 into a 0-100
// momentum score. baseline is the token's historical neutral score (50 when
// unknown) and only matters for sub-threshold micro moves. The second return
// reports whether the pair was unusable and the fallback was applied.
func (c *MomentumCalculator) Score(symbol string, p0, p1, baseline float64) (float64, bool) {
	if !validPricePair(p0, p1) {
		return FallbackScore(symbol), true
	}

	m := (p1/p0 - 1) * 1000
	if math.Abs(m) < c.cfg.Threshold {
		// Micro move: stay in the neutral band but keep direction visible.
		score := baseline + m*c.cfg.MicroSensitivity
		return clamp(score, 45, 55), false
	}

	return clamp(50+m*c.cfg.Sensitivity, 0, 100), false
}

// SlopeScores ranks tokens by the linear-regression slope of their recent
// price series (oldest-first, at least 3 points each) and maps the ranking
// linearly onto [0,100]. Tokens without a usable series get the fallback.
func (c *MomentumCalculator) SlopeScores(series map[string][]float64) map[string]float64 {
	type slopeEntry struct {
		symbol string
		slope  float64
	}
	var entries []slopeEntry
	scores := make(map[string]float64, len(series))

	for symbol, prices := range series {
		slope, ok := regressionSlope(prices)
		if !ok {
			scores[strings.ToUpper(symbol)] = FallbackScore(symbol)
			continue
		}
		entries = append(entries, slopeEntry{symbol: strings.ToUpper(symbol), slope: slope})
	}

	if len(entries) == 0 {
		return scores
	}
	if len(entries) == 1 {
		scores[entries[0].symbol] = 50
		return scores
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].slope != entries[j].slope {
			return entries[i].slope > entries[j].slope
		}
		return entries[i].symbol < entries[j].symbol
	})
	for i, e := range entries {
		score := 100 - float64(i)/float64(len(entries)-1)*100
		scores[e.symbol] = math.Round(score*10) / 10
	}
	return scores
}

// regressionSlope fits price = a + slope*i over sample index i.
func regressionSlope(prices []float64) (float64, bool) {
	n := len(prices)
	if n < 3 {
		return 0, false
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, false
		}
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumX2 += x * x
	}

	den := float64(n)*sumX2 - sumX*sumX
	if math.Abs(den) < 1e-10 {
		return 0, false
	}
	return (float64(n)*sumXY - sumX*sumY) / den, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
