package engine

import (
	"hash/crc32"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Weights splits the final score between the Elo probability and the
// momentum score. They are expected to sum to 1.
type Weights struct {
	Elo      float64 `json:"elo_weight"`
	Momentum float64 `json:"momentum_weight"`
}

// Prediction is one entry of a ranked prediction list.
type Prediction struct {
	Symbol        string  `json:"symbol"`
	PredictedRank int     `json:"predicted_rank"`
	FinalScore    float64 `json:"final_score"`
	EloProb       float64 `json:"elo_prob"`
	MomScore      float64 `json:"mom_score"`
	Confidence    float64 `json:"confidence"`
}

// ScoreMixer blends Elo probabilities with momentum scores into a strictly
// ordered prediction.
type ScoreMixer struct {
	defaults Weights
}

func NewScoreMixer(defaults Weights) *ScoreMixer {
	return &ScoreMixer{defaults: defaults}
}

const confidenceMarginFactor = 0.2

// Mix blends with the configured default weights.
func (m *ScoreMixer) Mix(eloProb map[string]float64, momScore map[string]*float64) []Prediction {
	return m.MixWithWeights(eloProb, momScore, nil)
}

// MixWithWeights blends Elo probabilities (0-1) and momentum scores (0-100,
// nil allowed per token) under an optional weight override. When momentum is
// entirely absent the momentum weight collapses to 0 regardless of override.
// The output is a strict total order: ties on score are broken by a
// deterministic per-symbol jitter, then by symbol.
func (m *ScoreMixer) MixWithWeights(eloProb map[string]float64, momScore map[string]*float64, override *Weights) []Prediction {
	if len(eloProb) == 0 {
		log.Warn("empty Elo probabilities, nothing to mix")
		return nil
	}

	momOK := false
	for _, v := range momScore {
		if v != nil && !math.IsNaN(*v) {
			momOK = true
			break
		}
	}

	wElo, wMom := m.defaults.Elo, m.defaults.Momentum
	if override != nil {
		wElo, wMom = override.Elo, override.Momentum
	}
	if !momOK {
		wElo, wMom = 1.0, 0.0
	}

	type scored struct {
		symbol string
		score  float64
		elo    float64
		mom    float64
	}
	entries := make([]scored, 0, len(eloProb))
	for symbol, p := range eloProb {
		symbol = strings.ToUpper(symbol)
		mom := 50.0
		if v, ok := momScore[symbol]; ok && v != nil && !math.IsNaN(*v) {
			mom = clamp(*v, 0, 100)
		}
		elo := clamp(p, 0, 1)

		base := wElo*(elo*100) + wMom*mom
		entries = append(entries, scored{
			symbol: symbol,
			score:  base + symbolJitter(symbol),
			elo:    elo,
			mom:    mom,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].symbol < entries[j].symbol
	})

	secondBest := entries[0].score
	if len(entries) > 1 {
		secondBest = entries[1].score
	}

	out := make([]Prediction, len(entries))
	for i, e := range entries {
		conf := 50 + math.Max(0, e.score-secondBest)*confidenceMarginFactor
		out[i] = Prediction{
			Symbol:        e.symbol,
			PredictedRank: i + 1,
			FinalScore:    math.Round(e.score*10) / 10,
			EloProb:       math.Round(e.elo*1000) / 10,
			MomScore:      math.Round(e.mom*10) / 10,
			Confidence:    math.Round(clamp(conf, 0, 100)*10) / 10,
		}
	}

	log.WithFields(log.Fields{
		"tokens":          len(out),
		"momentum_used":   momOK,
		"weight_elo":      wElo,
		"weight_momentum": wMom,
		"top":             out[0].Symbol,
	}).Debug("score mix complete")

	return out
}

// symbolJitter is a deterministic tie breaker in [-0.5, 0.5]; identical base
// scores still end up strictly ordered without making reruns diverge.
func symbolJitter(symbol string) float64 {
	h := crc32.ChecksumIEEE([]byte(symbol))
	return (float64(h%101) - 50) * 0.01
}
