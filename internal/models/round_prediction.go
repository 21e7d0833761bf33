package models

import (
	"time"
)

// RoundPrediction archives the prediction made for one token in one round.
// The cache holds the authoritative copy while the round is live; these rows
// exist for later accuracy analysis.
type RoundPrediction struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	GameRoundID   uint      `json:"game_round_id" gorm:"not null;uniqueIndex:idx_round_predictions_round_token"`
	TokenSymbol   string    `json:"token_symbol" gorm:"size:20;not null;uniqueIndex:idx_round_predictions_round_token"`
	PredictedRank int       `json:"predicted_rank" gorm:"not null"`
	FinalScore    float64   `json:"final_score"`
	EloProb       float64   `json:"elo_prob"`
	MomScore      float64   `json:"mom_score"`
	Confidence    float64   `json:"confidence"`
	Degraded      bool      `json:"degraded" gorm:"default:false"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (RoundPrediction) TableName() string {
	return "round_predictions"
}
