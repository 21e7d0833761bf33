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

// BacktestStore persists parameter-search results.
type BacktestStore struct {
	db *gorm.DB
}

func NewBacktestStore(db *gorm.DB) *BacktestStore {
	return &BacktestStore{db: db}
}

// Exists reports whether a (run, params hash) combination was already
// evaluated.
func (s *BacktestStore) Exists(ctx context.Context, runID, paramsHash string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.BacktestResult{}).
		Where("run_id = ? AND params_hash = ?", runID, paramsHash).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check backtest result %s/%s: %w", runID, paramsHash, err)
	}
	return count > 0, nil
}

// Save inserts one evaluation result. A concurrent evaluator inserting the
// same (run, hash) first wins; the duplicate insert is dropped silently.
func (s *BacktestStore) Save(ctx context.Context, result *models.BacktestResult) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "params_hash"}},
		DoNothing: true,
	}).Create(result).Error
	if err != nil {
		return fmt.Errorf("save backtest result %s/%s: %w", result.RunID, result.ParamsHash, err)
	}
	return nil
}

// BestResult returns the highest-scoring result of a run, or nil when the
// run produced none.
func (s *BacktestStore) BestResult(ctx context.Context, runID string) (*models.BacktestResult, error) {
	var row models.BacktestResult
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("score DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load best result for run %s: %w", runID, err)
	}
	return &row, nil
}

// LatestRunID returns the run id of the most recently written result, empty
// when no backtest has ever run.
func (s *BacktestStore) LatestRunID(ctx context.Context) (string, error) {
	var row models.BacktestResult
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load latest run id: %w", err)
	}
	return row.RunID, nil
}

// DeleteResultsBefore prunes results written before the cutoff, returning
// the number of rows removed.
func (s *BacktestStore) DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.BacktestResult{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete backtest results before %s: %w", cutoff, res.Error)
	}
	return res.RowsAffected, nil
}

// ResultsForRun lists a run's results ordered by score descending.
func (s *BacktestStore) ResultsForRun(ctx context.Context, runID string, limit int) ([]models.BacktestResult, error) {
	q := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("score DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.BacktestResult
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load results for run %s: %w", runID, err)
	}
	return rows, nil
}
