package models

import (
	"encoding/json"
	"time"
)

// BacktestResult is the outcome of evaluating one parameter combination
// against historical rounds. (run_id, params_hash) is unique: re-evaluating
// identical parameters within a run is a no-op.
type BacktestResult struct {
	ID                     uint            `json:"id" gorm:"primaryKey"`
	RunID                  string          `json:"run_id" gorm:"size:64;not null;uniqueIndex:idx_backtest_results_run_hash;index"`
	ParamsHash             string          `json:"params_hash" gorm:"size:32;not null;uniqueIndex:idx_backtest_results_run_hash"`
	Parameters             json.RawMessage `json:"parameters" gorm:"type:jsonb"`
	Score                  float64         `json:"score" gorm:"index"`
	TotalGames             int             `json:"total_games"`
	CorrectPredictions     int             `json:"correct_predictions"`
	Top3CorrectPredictions int             `json:"top3_correct_predictions"`
	Accuracy               float64         `json:"accuracy"`
	WeightedAccuracy       float64         `json:"weighted_accuracy"`
	Top3Accuracy           float64         `json:"top3_accuracy"`
	Top3WeightedAccuracy   float64         `json:"top3_weighted_accuracy"`
	AvgConfidence          float64         `json:"avg_confidence"`
	SharpeRatio            float64         `json:"sharpe_ratio"`
	SortinoRatio           float64         `json:"sortino_ratio"`
	CalmarRatio            float64         `json:"calmar_ratio"`
	MaxDrawdown            float64         `json:"max_drawdown"`
	ProfitFactor           float64         `json:"profit_factor"`
	DetailedResults        json.RawMessage `json:"detailed_results" gorm:"type:jsonb"`
	CreatedAt              time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt              time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (BacktestResult) TableName() string {
	return "backtest_results"
}
