package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenrank/internal/models"
	"tokenrank/internal/pipeline"
	"tokenrank/internal/store"
)

type fakeRoundWriter struct {
	rounds      map[string]uint
	settlements map[string][]store.SettledToken
	nextID      uint
}

func newFakeRoundWriter() *fakeRoundWriter {
	return &fakeRoundWriter{
		rounds:      map[string]uint{},
		settlements: map[string][]store.SettledToken{},
	}
}

func (f *fakeRoundWriter) EnsureRound(_ context.Context, roundID string) (*models.GameRound, error) {
	id, ok := f.rounds[roundID]
	if !ok {
		f.nextID++
		id = f.nextID
		f.rounds[roundID] = id
	}
	return &models.GameRound{ID: id, RoundID: roundID}, nil
}

func (f *fakeRoundWriter) SaveSettlement(ctx context.Context, roundID string, tokens []store.SettledToken, settledAt time.Time) (*models.GameRound, bool, error) {
	usable := make([]store.SettledToken, 0, len(tokens))
	for _, t := range tokens {
		if t.Rank > 0 && t.Value > 0 {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return nil, false, errors.New("no usable settlement entries")
	}

	round, _ := f.EnsureRound(ctx, roundID)
	if _, done := f.settlements[roundID]; done {
		return round, false, nil
	}
	f.settlements[roundID] = usable
	round.SettledAt = &settledAt
	return round, true, nil
}

type fakeDispatcher struct {
	jobs []pipeline.Job
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job pipeline.Job) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeStateCache struct {
	entries map[string]interface{}
}

func (f *fakeStateCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.entries == nil {
		f.entries = map[string]interface{}{}
	}
	f.entries[key] = value
	return nil
}

type fakeNotifier struct {
	settled []string
}

func (f *fakeNotifier) RoundSettled(_ context.Context, roundID string, _ interface{}) {
	f.settled = append(f.settled, roundID)
}

func settlingMsg(roundID string, symbols ...string) *RoundMessage {
	msg := &RoundMessage{RoundID: roundID, Status: StatusSettling}
	for _, s := range symbols {
		msg.Tokens = append(msg.Tokens, TokenOutcome{Symbol: s})
	}
	return msg
}

func TestProcessorSettling(t *testing.T) {
	ctx := context.Background()

	t.Run("starts prediction pipeline", func(t *testing.T) {
		rounds := newFakeRoundWriter()
		disp := &fakeDispatcher{}
		cacheStore := &fakeStateCache{}
		p := NewProcessor(rounds, disp, cacheStore, &fakeNotifier{})

		err := p.HandleRound(ctx, settlingMsg("r-1", "BTC", "ETH", "SOL"))
		require.NoError(t, err)

		require.Len(t, disp.jobs, 1)
		assert.Equal(t, pipeline.JobFetchInitialPrice, disp.jobs[0].Type)
		assert.Equal(t, "r-1", disp.jobs[0].RoundID)
		assert.Len(t, disp.jobs[0].Symbols, 3)

		state, ok := cacheStore.entries[pipeline.RoundStateKey("r-1")].(pipeline.RoundState)
		require.True(t, ok)
		assert.Equal(t, pipeline.StateAwaitingFirstSample, state.State)
	})

	t.Run("rejects single token round", func(t *testing.T) {
		p := NewProcessor(newFakeRoundWriter(), &fakeDispatcher{}, &fakeStateCache{}, &fakeNotifier{})
		err := p.HandleRound(ctx, settlingMsg("r-2", "BTC"))
		assert.Error(t, err)
	})
}

func TestProcessorSettled(t *testing.T) {
	ctx := context.Background()

	settledMsg := func(roundID string) *RoundMessage {
		return &RoundMessage{
			RoundID:  roundID,
			Status:   StatusSettled,
			SettleAt: time.Now().UTC(),
			Tokens: []TokenOutcome{
				{Symbol: "BTC", Rank: 1, Value: 1.9},
				{Symbol: "ETH", Rank: 2, Value: 1.4},
				{Symbol: "SOL", Rank: 3, Value: 1.1},
			},
		}
	}

	t.Run("persists and dispatches rating job", func(t *testing.T) {
		rounds := newFakeRoundWriter()
		disp := &fakeDispatcher{}
		notifier := &fakeNotifier{}
		p := NewProcessor(rounds, disp, &fakeStateCache{}, notifier)

		err := p.HandleRound(ctx, settledMsg("r-10"))
		require.NoError(t, err)

		require.Len(t, rounds.settlements["r-10"], 3)
		require.Len(t, disp.jobs, 1)
		assert.Equal(t, pipeline.JobUpdateRatings, disp.jobs[0].Type)
		assert.Equal(t, []string{"r-10"}, notifier.settled)
	})

	t.Run("duplicate settlement is a no-op", func(t *testing.T) {
		rounds := newFakeRoundWriter()
		disp := &fakeDispatcher{}
		notifier := &fakeNotifier{}
		p := NewProcessor(rounds, disp, &fakeStateCache{}, notifier)

		require.NoError(t, p.HandleRound(ctx, settledMsg("r-11")))
		require.NoError(t, p.HandleRound(ctx, settledMsg("r-11")))

		assert.Len(t, disp.jobs, 1)
		assert.Len(t, notifier.settled, 1)
	})

	t.Run("all zero entries rejected", func(t *testing.T) {
		p := NewProcessor(newFakeRoundWriter(), &fakeDispatcher{}, &fakeStateCache{}, &fakeNotifier{})
		msg := &RoundMessage{
			RoundID:  "r-12",
			Status:   StatusSettled,
			SettleAt: time.Now().UTC(),
			Tokens: []TokenOutcome{
				{Symbol: "BTC", Rank: 0, Value: 0},
				{Symbol: "ETH", Rank: 0, Value: 0},
			},
		}
		assert.Error(t, p.HandleRound(ctx, msg))
	})
}
