package models

import (
	"time"
)

// TokenPrice is one minute-aligned price sample. Samples are upserted on
// (symbol, minute_timestamp) so repeated fetches within the same minute do
// not duplicate rows.
type TokenPrice struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Symbol          string    `json:"symbol" gorm:"size:20;not null;uniqueIndex:idx_token_prices_symbol_minute"`
	PriceUSD        float64   `json:"price_usd" gorm:"not null"`
	Currency        string    `json:"currency" gorm:"size:10;not null;default:usd"`
	MinuteTimestamp time.Time `json:"minute_timestamp" gorm:"not null;uniqueIndex:idx_token_prices_symbol_minute;index"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (TokenPrice) TableName() string {
	return "token_prices"
}
