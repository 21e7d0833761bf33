package backtest

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"

	"tokenrank/internal/config"
)

// weightEpsilon is the tolerance for the weight-sum invariant.
const weightEpsilon = 1e-6

// Parameters is one candidate blending configuration. Field order matters:
// Hash and Key derive from the canonical JSON encoding.
type Parameters struct {
	EloWeight         float64 `json:"elo_weight"`
	MomentumWeight    float64 `json:"momentum_weight"`
	MinGamesThreshold int     `json:"min_games_threshold"`
	StabilityPenalty  float64 `json:"stability_penalty"`
}

// Valid reports whether the weights sum to 1 within epsilon.
func (p Parameters) Valid() bool {
	return math.Abs(p.EloWeight+p.MomentumWeight-1.0) <= weightEpsilon
}

// Key is the canonical JSON form, used as the strategy parameter key.
func (p Parameters) Key() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// Hash is the deterministic fingerprint used for (run, hash) deduplication.
func (p Parameters) Hash() string {
	sum := md5.Sum([]byte(p.Key()))
	return hex.EncodeToString(sum[:])
}

func (p Parameters) String() string {
	return fmt.Sprintf("elo=%.2f mom=%.2f minGames=%d penalty=%.2f",
		p.EloWeight, p.MomentumWeight, p.MinGamesThreshold, p.StabilityPenalty)
}

// Expand walks the cartesian product of the grid, discarding combinations
// whose weights do not sum to 1.
func Expand(grid config.ParameterGrid) []Parameters {
	var out []Parameters
	for _, elo := range grid.EloWeight {
		for _, mom := range grid.MomentumWeight {
			for _, minGames := range grid.MinGamesThreshold {
				for _, penalty := range grid.StabilityPenalty {
					p := Parameters{
						EloWeight:         elo,
						MomentumWeight:    mom,
						MinGamesThreshold: minGames,
						StabilityPenalty:  penalty,
					}
					if !p.Valid() {
						continue
					}
					out = append(out, p)
				}
			}
		}
	}
	return out
}
