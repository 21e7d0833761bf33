package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tokenrank/internal/models"
)

// SettledToken is one token's final outcome inside a settlement message.
type SettledToken struct {
	Symbol string
	Rank   int
	Value  float64
}

// RoundStore persists game rounds and their settled results.
type RoundStore struct {
	db *gorm.DB
}

func NewRoundStore(db *gorm.DB) *RoundStore {
	return &RoundStore{db: db}
}

// EnsureRound creates the row for an external round id if it does not exist
// yet and returns it either way.
func (s *RoundStore) EnsureRound(ctx context.Context, roundID string) (*models.GameRound, error) {
	if roundID == "" {
		return nil, errors.New("empty round id")
	}

	var round models.GameRound
	err := s.db.WithContext(ctx).
		Where(models.GameRound{RoundID: roundID}).
		FirstOrCreate(&round).Error
	if err != nil {
		return nil, fmt.Errorf("ensure round %s: %w", roundID, err)
	}
	return &round, nil
}

// SaveSettlement stores the final ranking of one round. The write is
// idempotent: a round that already carries results is left untouched and the
// call reports inserted=false. Entries with a non-positive rank or value are
// pre-settlement placeholders and are dropped before anything is written; if
// nothing usable remains the settlement is rejected.
func (s *RoundStore) SaveSettlement(ctx context.Context, roundID string, tokens []SettledToken, settledAt time.Time) (*models.GameRound, bool, error) {
	usable := make([]SettledToken, 0, len(tokens))
	for _, t := range tokens {
		if t.Rank <= 0 || t.Value <= 0 {
			continue
		}
		usable = append(usable, t)
	}
	if len(usable) == 0 {
		return nil, false, fmt.Errorf("round %s: no usable settlement entries", roundID)
	}

	var round models.GameRound
	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.GameRound{RoundID: roundID}).
			FirstOrCreate(&round).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.RoundResult{}).
			Where("game_round_id = ?", round.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			log.WithField("round_id", roundID).Debug("settlement already stored, skipping")
			return nil
		}

		results := make([]models.RoundResult, 0, len(usable))
		for _, t := range usable {
			results = append(results, models.RoundResult{
				GameRoundID: round.ID,
				TokenSymbol: t.Symbol,
				Rank:        t.Rank,
				Value:       t.Value,
			})
		}
		if err := tx.Create(&results).Error; err != nil {
			return err
		}

		round.SettledAt = &settledAt
		if err := tx.Model(&round).Update("settled_at", settledAt).Error; err != nil {
			return err
		}

		inserted = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("save settlement for round %s: %w", roundID, err)
	}
	return &round, inserted, nil
}

// TokenRanks returns a token's final ranks over settled rounds, newest
// first.
func (s *RoundStore) TokenRanks(ctx context.Context, symbol string, limit int) ([]int, error) {
	var ranks []int
	err := s.db.WithContext(ctx).
		Model(&models.RoundResult{}).
		Joins("JOIN game_rounds ON game_rounds.id = round_results.game_round_id").
		Where("round_results.token_symbol = ? AND game_rounds.settled_at IS NOT NULL", symbol).
		Order("game_rounds.settled_at DESC").
		Limit(limit).
		Pluck("round_results.rank", &ranks).Error
	if err != nil {
		return nil, fmt.Errorf("load ranks for %s: %w", symbol, err)
	}
	return ranks, nil
}

// SettledRound bundles a round with its full result set for backtesting.
type SettledRound struct {
	Round   models.GameRound
	Results []models.RoundResult
}

// RecentSettledRounds loads up to limit settled rounds starting at offset,
// newest first, each with its complete result list. Callers page through
// history by advancing the offset.
func (s *RoundStore) RecentSettledRounds(ctx context.Context, limit, offset int) ([]SettledRound, error) {
	var rounds []models.GameRound
	err := s.db.WithContext(ctx).
		Where("settled_at IS NOT NULL").
		Order("settled_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("load settled rounds: %w", err)
	}
	if len(rounds) == 0 {
		return nil, nil
	}

	ids := make([]uint, len(rounds))
	for i, r := range rounds {
		ids[i] = r.ID
	}
	var results []models.RoundResult
	if err := s.db.WithContext(ctx).
		Where("game_round_id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("load round results: %w", err)
	}

	byRound := make(map[uint][]models.RoundResult, len(rounds))
	for _, res := range results {
		byRound[res.GameRoundID] = append(byRound[res.GameRoundID], res)
	}

	out := make([]SettledRound, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, SettledRound{Round: r, Results: byRound[r.ID]})
	}
	return out, nil
}

// RoundByExternalID loads one round by its external id.
func (s *RoundStore) RoundByExternalID(ctx context.Context, roundID string) (*models.GameRound, error) {
	var round models.GameRound
	err := s.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		First(&round).Error
	if err != nil {
		return nil, fmt.Errorf("load round %s: %w", roundID, err)
	}
	return &round, nil
}

// ResultsForRound loads a settled round's results ordered by rank.
func (s *RoundStore) ResultsForRound(ctx context.Context, gameRoundID uint) ([]models.RoundResult, error) {
	var results []models.RoundResult
	err := s.db.WithContext(ctx).
		Where("game_round_id = ?", gameRoundID).
		Order("rank ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("load results for round %d: %w", gameRoundID, err)
	}
	return results, nil
}

// DeleteRoundsBefore removes rounds settled before cutoff together with
// their results and archived predictions. Used by scheduled retention
// cleanup.
func (s *RoundStore) DeleteRoundsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.GameRound{}).
			Where("settled_at IS NOT NULL AND settled_at < ?", cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("game_round_id IN ?", ids).
			Delete(&models.RoundResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_round_id IN ?", ids).
			Delete(&models.RoundPrediction{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.GameRound{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup rounds before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return deleted, nil
}
