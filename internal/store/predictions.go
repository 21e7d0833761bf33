package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenrank/internal/engine"
	"tokenrank/internal/models"
)

// PredictionStore archives computed predictions for later accuracy
// analysis.
type PredictionStore struct {
	db *gorm.DB
}

func NewPredictionStore(db *gorm.DB) *PredictionStore {
	return &PredictionStore{db: db}
}

// SavePredictions upserts the full prediction list of one round. Recomputes
// overwrite earlier rows for the same (round, token).
func (s *PredictionStore) SavePredictions(ctx context.Context, gameRoundID uint, preds []engine.Prediction, degraded bool) error {
	if len(preds) == 0 {
		return nil
	}

	rows := make([]models.RoundPrediction, 0, len(preds))
	for _, p := range preds {
		rows = append(rows, models.RoundPrediction{
			GameRoundID:   gameRoundID,
			TokenSymbol:   strings.ToUpper(p.Symbol),
			PredictedRank: p.PredictedRank,
			FinalScore:    p.FinalScore,
			EloProb:       p.EloProb,
			MomScore:      p.MomScore,
			Confidence:    p.Confidence,
			Degraded:      degraded,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "game_round_id"}, {Name: "token_symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"predicted_rank", "final_score", "elo_prob", "mom_score",
			"confidence", "degraded", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("save predictions for round %d: %w", gameRoundID, err)
	}
	return nil
}

// ByRound loads a round's archived prediction ordered by predicted rank.
func (s *PredictionStore) ByRound(ctx context.Context, gameRoundID uint) ([]models.RoundPrediction, error) {
	var rows []models.RoundPrediction
	err := s.db.WithContext(ctx).
		Where("game_round_id = ?", gameRoundID).
		Order("predicted_rank ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load predictions for round %d: %w", gameRoundID, err)
	}
	return rows, nil
}
