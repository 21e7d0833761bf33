package models

import (
	"time"
)

// TokenRating holds the Elo skill score of one token. Unseen tokens default
// to 1500 with zero games; only the rating engine mutates rows, always inside
// a single transaction per pairwise comparison.
type TokenRating struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Symbol    string    `json:"symbol" gorm:"size:20;not null;uniqueIndex"`
	Elo       float64   `json:"elo" gorm:"not null;default:1500"`
	Games     int       `json:"games" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (TokenRating) TableName() string {
	return "token_ratings"
}
