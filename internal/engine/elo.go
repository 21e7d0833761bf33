package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"tokenrank/internal/models"
)

// KBase is the maximum rating swing of a single comparison before decay.
const KBase = 32.0

// DefaultElo is assigned to tokens that have never played.
const DefaultElo = 1500.0

// RatingStore is the persistence boundary of the Elo engine. UpdatePair must
// run apply on both rows inside one transaction so concurrent pairwise
// updates touching the same token cannot lose writes.
type RatingStore interface {
	UpdatePair(ctx context.Context, winner, loser string, apply func(w, l *models.TokenRating)) error
	GetRatings(ctx context.Context, symbols []string) (map[string]models.TokenRating, error)
}

// EloEngine maintains per-token skill ratings from pairwise win/lose
// outcomes.
type EloEngine struct {
	store RatingStore
	kBase float64
}

func NewEloEngine(store RatingStore) *EloEngine {
	return &EloEngine{store: store, kBase: KBase}
}

// decayedK shrinks the K factor as a token accumulates games:
// K = K_BASE * 200 / (200 + games).
func (e *EloEngine) decayedK(games int) float64 {
	return e.kBase * 200 / (200 + float64(games))
}

// EloDelta reports the outcome of one pairwise update.
type EloDelta struct {
	Winner     string
	Loser      string
	Delta      float64
	WinnerElo  float64
	LoserElo   float64
	EffectiveK float64
}

// UpdateElo credits winner with a win over loser. When kf is 1.0 the
// effective K factor is the average of both sides' decayed K; any other kf is
// an explicit multiplier on the base K. The read-modify-write is atomic per
// pair.
func (e *EloEngine) UpdateElo(ctx context.Context, winner, loser string, kf float64) (EloDelta, error) {
	winner = strings.ToUpper(winner)
	loser = strings.ToUpper(loser)
	if winner == loser {
		return EloDelta{}, fmt.Errorf("winner and loser are the same symbol %q", winner)
	}

	var delta EloDelta
	err := e.store.UpdatePair(ctx, winner, loser, func(w, l *models.TokenRating) {
		ra := w.Elo
		rb := l.Elo
		ea := 1 / (1 + math.Pow(10, (rb-ra)/400))

		var effective float64
		if kf == 1.0 {
			effective = (e.decayedK(w.Games) + e.decayedK(l.Games)) / 2
		} else {
			effective = e.kBase * kf
		}

		d := effective * (1 - ea)
		w.Elo = ra + d
		l.Elo = rb - d
		w.Games++
		l.Games++

		delta = EloDelta{
			Winner:     winner,
			Loser:      loser,
			Delta:      d,
			WinnerElo:  w.Elo,
			LoserElo:   l.Elo,
			EffectiveK: effective,
		}
	})
	if err != nil {
		return EloDelta{}, fmt.Errorf("update elo %s beats %s: %w", winner, loser, err)
	}

	log.WithFields(log.Fields{
		"winner":      winner,
		"loser":       loser,
		"delta":       math.Round(delta.Delta*100) / 100,
		"winner_elo":  math.Round(delta.WinnerElo*100) / 100,
		"loser_elo":   math.Round(delta.LoserElo*100) / 100,
		"effective_k": math.Round(delta.EffectiveK*100) / 100,
	}).Debug("Elo rating updated")

	return delta, nil
}

// GetRatings exposes the raw stored ratings for the given symbols.
func (e *EloEngine) GetRatings(ctx context.Context, symbols []string) (map[string]models.TokenRating, error) {
	return e.store.GetRatings(ctx, uniqueUpper(symbols))
}

// Probabilities computes, for each symbol, the average logistic win
// probability against every other symbol in the set. Fewer than two distinct
// symbols yields an empty map.
func (e *EloEngine) Probabilities(ctx context.Context, symbols []string) (map[string]float64, error) {
	uniq := uniqueUpper(symbols)
	if len(uniq) < 2 {
		log.WithField("symbols", symbols).Warn("not enough tokens for Elo probabilities")
		return map[string]float64{}, nil
	}

	ratings, err := e.store.GetRatings(ctx, uniq)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}

	elo := make(map[string]float64, len(uniq))
	for _, s := range uniq {
		if r, ok := ratings[s]; ok {
			elo[s] = r.Elo
		} else {
			elo[s] = DefaultElo
		}
	}

	prob := make(map[string]float64, len(uniq))
	for _, a := range uniq {
		wins := 0.0
		for _, b := range uniq {
			if a == b {
				continue
			}
			wins += 1 / (1 + math.Pow(10, (elo[b]-elo[a])/400))
		}
		prob[a] = wins / float64(len(uniq)-1)
	}
	return prob, nil
}

func uniqueUpper(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		u := strings.ToUpper(s)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
