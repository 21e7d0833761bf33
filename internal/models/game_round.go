package models

import (
	"time"
)

// GameRound is one instance of the token-ranking game. A row is created the
// first time any message references its external round id; settled_at stays
// NULL until the settlement message arrives.
type GameRound struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	RoundID   string     `json:"round_id" gorm:"size:64;not null;uniqueIndex"`
	SettledAt *time.Time `json:"settled_at" gorm:"index"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (GameRound) TableName() string {
	return "game_rounds"
}

// RoundResult is the settled outcome of one token in one round. Ranks within
// a round form a contiguous permutation of 1..N; zero-value entries are
// pre-settlement placeholders and are never stored.
type RoundResult struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	GameRoundID uint      `json:"game_round_id" gorm:"not null;uniqueIndex:idx_round_results_round_token"`
	TokenSymbol string    `json:"token_symbol" gorm:"size:20;not null;uniqueIndex:idx_round_results_round_token;index"`
	Rank        int       `json:"rank" gorm:"not null"`
	Value       float64   `json:"value" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (RoundResult) TableName() string {
	return "round_results"
}
