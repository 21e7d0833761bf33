package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrank/internal/models"
)

// memRatingStore is an in-memory RatingStore for engine tests.
type memRatingStore struct {
	ratings map[string]*models.TokenRating
}

func newMemRatingStore() *memRatingStore {
	return &memRatingStore{ratings: make(map[string]*models.TokenRating)}
}

func (s *memRatingStore) get(symbol string) *models.TokenRating {
	symbol = strings.ToUpper(symbol)
	r, ok := s.ratings[symbol]
	if !ok {
		r = &models.TokenRating{Symbol: symbol, Elo: DefaultElo}
		s.ratings[symbol] = r
	}
	return r
}

func (s *memRatingStore) UpdatePair(_ context.Context, winner, loser string, apply func(w, l *models.TokenRating)) error {
	apply(s.get(winner), s.get(loser))
	return nil
}

func (s *memRatingStore) GetRatings(_ context.Context, symbols []string) (map[string]models.TokenRating, error) {
	out := make(map[string]models.TokenRating)
	for _, sym := range symbols {
		if r, ok := s.ratings[strings.ToUpper(sym)]; ok {
			out[strings.ToUpper(sym)] = *r
		}
	}
	return out, nil
}

func TestUpdateElo(t *testing.T) {
	ctx := context.Background()

	t.Run("winner gains what loser drops", func(t *testing.T) {
		store := newMemRatingStore()
		engine := NewEloEngine(store)

		delta, err := engine.UpdateElo(ctx, "btc", "eth", 1.0)
		require.NoError(t, err)

		assert.Greater(t, delta.Delta, 0.0)
		assert.Equal(t, DefaultElo+delta.Delta, store.get("BTC").Elo)
		assert.Equal(t, DefaultElo-delta.Delta, store.get("ETH").Elo)
		assert.Equal(t, 1, store.get("BTC").Games)
		assert.Equal(t, 1, store.get("ETH").Games)
	})

	t.Run("equal ratings split expectation", func(t *testing.T) {
		store := newMemRatingStore()
		engine := NewEloEngine(store)

		// Both fresh: Ea = 0.5, decayed K = 32, delta = 32 * 0.5.
		delta, err := engine.UpdateElo(ctx, "BTC", "ETH", 1.0)
		require.NoError(t, err)
		assert.InDelta(t, 16.0, delta.Delta, 1e-9)
	})

	t.Run("k factor decays with games played", func(t *testing.T) {
		store := newMemRatingStore()
		store.get("BTC").Games = 200
		store.get("ETH").Games = 200
		engine := NewEloEngine(store)

		delta, err := engine.UpdateElo(ctx, "BTC", "ETH", 1.0)
		require.NoError(t, err)
		// K = 32*200/400 = 16 on both sides, delta = 16 * 0.5.
		assert.InDelta(t, 8.0, delta.Delta, 1e-9)
	})

	t.Run("explicit multiplier overrides decay", func(t *testing.T) {
		store := newMemRatingStore()
		store.get("BTC").Games = 1000
		engine := NewEloEngine(store)

		delta, err := engine.UpdateElo(ctx, "BTC", "ETH", 0.5)
		require.NoError(t, err)
		assert.InDelta(t, KBase*0.5, delta.EffectiveK, 1e-9)
	})

	t.Run("self play rejected", func(t *testing.T) {
		engine := NewEloEngine(newMemRatingStore())
		_, err := engine.UpdateElo(ctx, "BTC", "btc", 1.0)
		assert.Error(t, err)
	})
}

func TestProbabilities(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by skill", func(t *testing.T) {
		store := newMemRatingStore()
		store.get("A").Elo = 1700
		store.get("B").Elo = 1600
		store.get("C").Elo = 1500

		engine := NewEloEngine(store)
		prob, err := engine.Probabilities(ctx, []string{"A", "B", "C"})
		require.NoError(t, err)
		require.Len(t, prob, 3)

		assert.Greater(t, prob["A"], prob["B"])
		assert.Greater(t, prob["B"], prob["C"])
	})

	t.Run("unseen tokens default to 1500", func(t *testing.T) {
		store := newMemRatingStore()
		store.get("A").Elo = 1600

		engine := NewEloEngine(store)
		prob, err := engine.Probabilities(ctx, []string{"A", "NEW"})
		require.NoError(t, err)

		assert.Greater(t, prob["A"], 0.5)
		assert.Less(t, prob["NEW"], 0.5)
		assert.InDelta(t, 1.0, prob["A"]+prob["NEW"], 1e-9)
	})

	t.Run("fewer than two symbols yields empty", func(t *testing.T) {
		engine := NewEloEngine(newMemRatingStore())

		prob, err := engine.Probabilities(ctx, []string{"BTC", "btc"})
		require.NoError(t, err)
		assert.Empty(t, prob)
	})
}
