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

// GormRatingStore is the database-backed rating store used by the Elo
// engine. UpdatePair locks both rows for the duration of the transaction so
// overlapping pairwise updates serialize instead of losing writes.
type GormRatingStore struct {
	db *gorm.DB
}

func NewRatingStore(db *gorm.DB) *GormRatingStore {
	return &GormRatingStore{db: db}
}

var _ engine.RatingStore = (*GormRatingStore)(nil)

func (s *GormRatingStore) UpdatePair(ctx context.Context, winner, loser string, apply func(w, l *models.TokenRating)) error {
	winner = strings.ToUpper(winner)
	loser = strings.ToUpper(loser)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Rows lock in sorted-symbol order regardless of who won, so two
		// concurrent rounds touching the same pair cannot deadlock.
		first, second := lockOrder(winner, loser)
		locked := make(map[string]*models.TokenRating, 2)
		for _, symbol := range []string{first, second} {
			r, err := lockOrCreateRating(tx, symbol)
			if err != nil {
				return err
			}
			locked[symbol] = r
		}
		w := locked[winner]
		l := locked[loser]

		apply(w, l)

		if err := tx.Model(w).
			Updates(map[string]interface{}{"elo": w.Elo, "games": w.Games}).Error; err != nil {
			return fmt.Errorf("store rating %s: %w", winner, err)
		}
		if err := tx.Model(l).
			Updates(map[string]interface{}{"elo": l.Elo, "games": l.Games}).Error; err != nil {
			return fmt.Errorf("store rating %s: %w", loser, err)
		}
		return nil
	})
}

func (s *GormRatingStore) GetRatings(ctx context.Context, symbols []string) (map[string]models.TokenRating, error) {
	upper := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		upper = append(upper, strings.ToUpper(sym))
	}

	var rows []models.TokenRating
	err := s.db.WithContext(ctx).
		Where("symbol IN ?", upper).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}

	out := make(map[string]models.TokenRating, len(rows))
	for _, r := range rows {
		out[r.Symbol] = r
	}
	return out, nil
}

// AllRatings returns every rating ordered by Elo descending, for the
// leaderboard API.
func (s *GormRatingStore) AllRatings(ctx context.Context, limit int) ([]models.TokenRating, error) {
	var rows []models.TokenRating
	q := s.db.WithContext(ctx).Order("elo DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load all ratings: %w", err)
	}
	return rows, nil
}

// lockOrder fixes the order two rating rows are locked in.
func lockOrder(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// lockOrCreateRating fetches a rating row under FOR UPDATE, inserting the
// default row first if the symbol has never been seen.
func lockOrCreateRating(tx *gorm.DB, symbol string) (*models.TokenRating, error) {
	seed := models.TokenRating{Symbol: symbol, Elo: engine.DefaultElo, Games: 0}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("seed rating %s: %w", symbol, err)
	}

	var row models.TokenRating
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("symbol = ?", symbol).
		First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("lock rating %s: %w", symbol, err)
	}
	return &row, nil
}
