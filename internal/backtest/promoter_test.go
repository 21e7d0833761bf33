package backtest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrank/internal/models"
)

type fakeResultSource struct {
	best   map[string]*models.BacktestResult
	latest string
}

func (f *fakeResultSource) BestResult(_ context.Context, runID string) (*models.BacktestResult, error) {
	return f.best[runID], nil
}

func (f *fakeResultSource) LatestRunID(context.Context) (string, error) {
	return f.latest, nil
}

type fakeStrategyDir struct {
	existing map[string]*models.PredictionStrategy
	promoted []*models.PredictionStrategy
}

func (f *fakeStrategyDir) FindByParams(_ context.Context, paramsKey string) (*models.PredictionStrategy, error) {
	return f.existing[paramsKey], nil
}

func (f *fakeStrategyDir) Promote(_ context.Context, candidate *models.PredictionStrategy) error {
	f.promoted = append(f.promoted, candidate)
	return nil
}

func resultWithScore(runID string, score float64) *models.BacktestResult {
	params, _ := json.Marshal(testCombo())
	return &models.BacktestResult{
		RunID:      runID,
		ParamsHash: testCombo().Hash(),
		Parameters: params,
		Score:      score,
	}
}

func TestPromote(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes best above floor", func(t *testing.T) {
		results := &fakeResultSource{best: map[string]*models.BacktestResult{
			"run-1": resultWithScore("run-1", 72.5),
		}}
		dir := &fakeStrategyDir{}
		p := NewPromoter(results, dir)

		promoted, err := p.Promote(ctx, PromoteOptions{RunID: "run-1", MinScore: 50})
		require.NoError(t, err)
		require.NotNil(t, promoted)
		assert.Equal(t, 72.5, promoted.Score)
		assert.Equal(t, "backtest-run-1", promoted.StrategyName)
		require.Len(t, dir.promoted, 1)
	})

	t.Run("below floor is skipped", func(t *testing.T) {
		results := &fakeResultSource{best: map[string]*models.BacktestResult{
			"run-1": resultWithScore("run-1", 30),
		}}
		dir := &fakeStrategyDir{}
		p := NewPromoter(results, dir)

		promoted, err := p.Promote(ctx, PromoteOptions{RunID: "run-1", MinScore: 50})
		require.NoError(t, err)
		assert.Nil(t, promoted)
		assert.Empty(t, dir.promoted)
	})

	t.Run("force bypasses the floor", func(t *testing.T) {
		results := &fakeResultSource{best: map[string]*models.BacktestResult{
			"run-1": resultWithScore("run-1", 30),
		}}
		dir := &fakeStrategyDir{}
		p := NewPromoter(results, dir)

		promoted, err := p.Promote(ctx, PromoteOptions{RunID: "run-1", MinScore: 50, Force: true})
		require.NoError(t, err)
		require.NotNil(t, promoted)
	})

	t.Run("refuses when existing identical strategy scores no lower", func(t *testing.T) {
		best := resultWithScore("run-1", 60)
		results := &fakeResultSource{best: map[string]*models.BacktestResult{"run-1": best}}
		dir := &fakeStrategyDir{existing: map[string]*models.PredictionStrategy{
			string(best.Parameters): {ParamsKey: string(best.Parameters), Score: 65},
		}}
		p := NewPromoter(results, dir)

		promoted, err := p.Promote(ctx, PromoteOptions{RunID: "run-1", MinScore: 50})
		require.NoError(t, err)
		assert.Nil(t, promoted)

		// SkipComparison overrides the refusal.
		promoted, err = p.Promote(ctx, PromoteOptions{RunID: "run-1", MinScore: 50, SkipComparison: true})
		require.NoError(t, err)
		assert.NotNil(t, promoted)
	})

	t.Run("promotes when existing identical strategy scores lower", func(t *testing.T) {
		best := resultWithScore("run-1", 60)
		results := &fakeResultSource{best: map[string]*models.BacktestResult{"run-1": best}}
		dir := &fakeStrategyDir{existing: map[string]*models.PredictionStrategy{
			string(best.Parameters): {ParamsKey: string(best.Parameters), Score: 40},
		}}
		p := NewPromoter(results, dir)

		promoted, err := p.Promote(ctx, PromoteOptions{RunID: "run-1", MinScore: 50})
		require.NoError(t, err)
		assert.NotNil(t, promoted)
	})

	t.Run("empty run id resolves to latest", func(t *testing.T) {
		results := &fakeResultSource{
			latest: "run-9",
			best:   map[string]*models.BacktestResult{"run-9": resultWithScore("run-9", 80)},
		}
		dir := &fakeStrategyDir{}
		p := NewPromoter(results, dir)

		promoted, err := p.Promote(ctx, PromoteOptions{MinScore: 50})
		require.NoError(t, err)
		require.NotNil(t, promoted)
		assert.Equal(t, "run-9", promoted.RunID)
	})

	t.Run("no runs at all", func(t *testing.T) {
		p := NewPromoter(&fakeResultSource{}, &fakeStrategyDir{})
		promoted, err := p.Promote(ctx, PromoteOptions{MinScore: 50})
		require.NoError(t, err)
		assert.Nil(t, promoted)
	})
}
