package prices

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// MinuteWriter persists one minute-aligned sample.
type MinuteWriter interface {
	UpsertMinute(ctx context.Context, symbol string, price float64, at time.Time) error
}

// Fetcher is the batch price lookup the sampler polls.
type Fetcher interface {
	Batch(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Sampler records a minute-aligned price history for a fixed token universe.
// It is triggered by the scheduler; each run is one batch fetch plus one
// upsert per token.
type Sampler struct {
	fetcher Fetcher
	writer  MinuteWriter
	symbols []string
}

func NewSampler(fetcher Fetcher, writer MinuteWriter, symbols []string) *Sampler {
	return &Sampler{fetcher: fetcher, writer: writer, symbols: symbols}
}

// SampleOnce fetches and persists one sample per tracked symbol. Tokens with
// a 0 sentinel price are skipped, not stored.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	if len(s.symbols) == 0 {
		return nil
	}

	batch, err := s.fetcher.Batch(ctx, s.symbols)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	stored := 0
	for symbol, price := range batch {
		if price <= 0 {
			continue
		}
		if err := s.writer.UpsertMinute(ctx, symbol, price, now); err != nil {
			log.WithError(err).WithField("symbol", symbol).Error("price sample store failed")
			continue
		}
		stored++
	}

	log.WithFields(log.Fields{
		"tracked": len(s.symbols),
		"stored":  stored,
	}).Debug("price sampling pass complete")
	return nil
}
