package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokenrank/internal/models"
)

// PriceStore persists minute-aligned price samples.
type PriceStore struct {
	db *gorm.DB
}

func NewPriceStore(db *gorm.DB) *PriceStore {
	return &PriceStore{db: db}
}

// UpsertMinute stores one sample, truncating the timestamp to the minute.
// A second sample for the same (symbol, minute) overwrites the price instead
// of duplicating the row.
func (s *PriceStore) UpsertMinute(ctx context.Context, symbol string, price float64, at time.Time) error {
	if price <= 0 {
		return fmt.Errorf("refusing to store non-positive price %f for %s", price, symbol)
	}

	row := models.TokenPrice{
		Symbol:          strings.ToUpper(symbol),
		PriceUSD:        price,
		Currency:        "usd",
		MinuteTimestamp: at.UTC().Truncate(time.Minute),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "minute_timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"price_usd", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert price %s@%s: %w", symbol, row.MinuteTimestamp, err)
	}
	return nil
}

// LatestSeries returns the most recent n samples for a symbol ordered
// oldest-first, ready for slope regression.
func (s *PriceStore) LatestSeries(ctx context.Context, symbol string, n int) ([]float64, error) {
	var rows []models.TokenPrice
	err := s.db.WithContext(ctx).
		Where("symbol = ?", strings.ToUpper(symbol)).
		Order("minute_timestamp DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load price series for %s: %w", symbol, err)
	}

	out := make([]float64, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.PriceUSD
	}
	return out, nil
}

// DeletePricesBefore trims samples older than cutoff.
func (s *PriceStore) DeletePricesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("minute_timestamp < ?", cutoff).
		Delete(&models.TokenPrice{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup prices before %s: %w", cutoff.Format(time.RFC3339), res.Error)
	}
	return res.RowsAffected, nil
}
