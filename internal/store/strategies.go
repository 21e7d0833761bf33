package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenrank/internal/models"
)

// StrategyStore persists promoted parameter sets.
type StrategyStore struct {
	db *gorm.DB
}

func NewStrategyStore(db *gorm.DB) *StrategyStore {
	return &StrategyStore{db: db}
}

// Active returns the currently active strategy, or nil when none has been
// promoted yet.
func (s *StrategyStore) Active(ctx context.Context) (*models.PredictionStrategy, error) {
	var row models.PredictionStrategy
	err := s.db.WithContext(ctx).
		Where("status = ?", models.StrategyStatusActive).
		Order("activated_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active strategy: %w", err)
	}
	return &row, nil
}

// FindByParams looks up any strategy row sharing the candidate's parameter
// key, regardless of run.
func (s *StrategyStore) FindByParams(ctx context.Context, paramsKey string) (*models.PredictionStrategy, error) {
	var row models.PredictionStrategy
	err := s.db.WithContext(ctx).
		Where("params_key = ?", paramsKey).
		Order("score DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find strategy by params: %w", err)
	}
	return &row, nil
}

// Promote deactivates every active strategy and upserts the candidate as the
// single active one, all in one transaction.
func (s *StrategyStore) Promote(ctx context.Context, candidate *models.PredictionStrategy) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PredictionStrategy{}).
			Where("status = ?", models.StrategyStatusActive).
			Update("status", models.StrategyStatusInactive).Error; err != nil {
			return fmt.Errorf("deactivate strategies: %w", err)
		}

		candidate.Status = models.StrategyStatusActive
		candidate.ActivatedAt = &now
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}, {Name: "params_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"parameters", "strategy_name", "score", "status", "activated_at", "updated_at",
			}),
		}).Create(candidate).Error
		if err != nil {
			return fmt.Errorf("upsert strategy: %w", err)
		}
		return nil
	})
}

// History lists promoted strategies newest first.
func (s *StrategyStore) History(ctx context.Context, limit int) ([]models.PredictionStrategy, error) {
	q := s.db.WithContext(ctx).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.PredictionStrategy
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load strategy history: %w", err)
	}
	return rows, nil
}
