package models

import (
	"encoding/json"
	"time"
)

const (
	StrategyStatusActive   = "active"
	StrategyStatusInactive = "inactive"
)

// PredictionStrategy is a promoted parameter set. At most one row carries
// status "active" at any time; promotion deactivates every other row in the
// same transaction.
type PredictionStrategy struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RunID        string          `json:"run_id" gorm:"size:64;not null;uniqueIndex:idx_prediction_strategies_run_params"`
	ParamsKey    string          `json:"params_key" gorm:"size:512;not null;uniqueIndex:idx_prediction_strategies_run_params"`
	Parameters   json.RawMessage `json:"parameters" gorm:"type:jsonb"`
	StrategyName string          `json:"strategy_name" gorm:"size:100;not null"`
	Score        float64         `json:"score"`
	Status       string          `json:"status" gorm:"size:20;not null;default:inactive;index"`
	ActivatedAt  *time.Time      `json:"activated_at"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PredictionStrategy) TableName() string {
	return "prediction_strategies"
}
