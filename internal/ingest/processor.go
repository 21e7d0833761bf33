package ingest

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"tokenrank/internal/models"
	"tokenrank/internal/pipeline"
	"tokenrank/internal/store"
)

// RoundWriter is the persistence seam of the processor.
type RoundWriter interface {
	EnsureRound(ctx context.Context, roundID string) (*models.GameRound, error)
	SaveSettlement(ctx context.Context, roundID string, tokens []store.SettledToken, settledAt time.Time) (*models.GameRound, bool, error)
}

// JobDispatcher hands pipeline jobs to the queues.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job pipeline.Job) error
}

// StateCache mirrors round lifecycle into redis.
type StateCache interface {
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// SettleNotifier emits the round_settled event.
type SettleNotifier interface {
	RoundSettled(ctx context.Context, roundID string, payload interface{})
}

// Processor turns feed frames into persisted rounds and pipeline jobs. A
// settling frame starts the prediction pipeline; a settled frame persists
// the outcome and triggers rating updates.
type Processor struct {
	rounds     RoundWriter
	dispatcher JobDispatcher
	cacheStore StateCache
	notifier   SettleNotifier
}

func NewProcessor(rounds RoundWriter, dispatcher JobDispatcher, cacheStore StateCache, notifier SettleNotifier) *Processor {
	return &Processor{
		rounds:     rounds,
		dispatcher: dispatcher,
		cacheStore: cacheStore,
		notifier:   notifier,
	}
}

var _ Handler = (*Processor)(nil)

func (p *Processor) HandleRound(ctx context.Context, msg *RoundMessage) error {
	switch msg.Status {
	case StatusSettling:
		return p.handleSettling(ctx, msg)
	case StatusSettled:
		return p.handleSettled(ctx, msg)
	default:
		return nil
	}
}

func (p *Processor) handleSettling(ctx context.Context, msg *RoundMessage) error {
	if len(msg.Tokens) < 2 {
		return fmt.Errorf("round %s: settling frame with %d tokens", msg.RoundID, len(msg.Tokens))
	}

	if _, err := p.rounds.EnsureRound(ctx, msg.RoundID); err != nil {
		return err
	}

	symbols := msg.Symbols()
	state := pipeline.RoundState{
		RoundID:   msg.RoundID,
		State:     pipeline.StateAwaitingFirstSample,
		Symbols:   symbols,
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.cacheStore.SetJSON(ctx, pipeline.RoundStateKey(msg.RoundID), state, 10*time.Minute); err != nil {
		log.WithError(err).WithField("round_id", msg.RoundID).Warn("round state cache write failed")
	}

	job := pipeline.Job{
		Type:    pipeline.JobFetchInitialPrice,
		RoundID: msg.RoundID,
		Symbols: symbols,
	}
	if err := p.dispatcher.Dispatch(ctx, job); err != nil {
		return fmt.Errorf("dispatch initial price job: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id": msg.RoundID,
		"tokens":   len(symbols),
	}).Info("round settling, prediction pipeline started")
	return nil
}

func (p *Processor) handleSettled(ctx context.Context, msg *RoundMessage) error {
	tokens := make([]store.SettledToken, 0, len(msg.Tokens))
	for _, t := range msg.Tokens {
		tokens = append(tokens, store.SettledToken{
			Symbol: t.Symbol,
			Rank:   t.Rank,
			Value:  t.Value,
		})
	}

	round, inserted, err := p.rounds.SaveSettlement(ctx, msg.RoundID, tokens, msg.SettleAt)
	if err != nil {
		return err
	}
	if !inserted {
		log.WithField("round_id", msg.RoundID).Debug("duplicate settlement frame ignored")
		return nil
	}

	job := pipeline.Job{
		Type:    pipeline.JobUpdateRatings,
		RoundID: msg.RoundID,
		Symbols: msg.Symbols(),
	}
	if err := p.dispatcher.Dispatch(ctx, job); err != nil {
		return fmt.Errorf("dispatch rating job: %w", err)
	}

	p.notifier.RoundSettled(ctx, msg.RoundID, map[string]interface{}{
		"game_round_id": round.ID,
		"tokens":        msg.Tokens,
		"settled_at":    msg.SettleAt,
	})

	log.WithFields(log.Fields{
		"round_id": msg.RoundID,
		"tokens":   len(tokens),
	}).Info("round settled")
	return nil
}
