package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the typed prediction/backtest configuration, validated once at
// startup. Every knob can be overridden from the environment.
type Config struct {
	// Score mixing
	EloWeight      float64
	MomentumWeight float64

	// Elo engine
	KBase float64

	// Time decay statistics
	DecayRate        float64
	MinGamesForDecay int
	MaxDecayRounds   int

	// Momentum calculator
	MomentumThreshold   float64
	MomentumSensitivity float64
	MicroSensitivity    float64

	// Job pipeline
	SecondSampleDelay time.Duration
	MaxAttempts       int
	RetryBackoff      time.Duration

	// Ingestion
	ReconnectDelay time.Duration

	// Backtesting
	BacktestBatchSize int
	DefaultGameCount  int
	MaxGameCount      int
	PromotionMinScore float64

	Grid ParameterGrid
}

// ParameterGrid enumerates the candidate values for every tunable parameter.
// The backtest driver walks the cartesian product of these slices.
type ParameterGrid struct {
	EloWeight         []float64
	MomentumWeight    []float64
	MinGamesThreshold []int
	StabilityPenalty  []float64
}

// Default returns the built-in configuration mirroring the live tuning.
func Default() *Config {
	return &Config{
		EloWeight:      0.65,
		MomentumWeight: 0.35,

		KBase: 32,

		DecayRate:        0.97,
		MinGamesForDecay: 10,
		MaxDecayRounds:   1000,

		MomentumThreshold:   0.01,
		MomentumSensitivity: 5.0,
		MicroSensitivity:    500,

		SecondSampleDelay: 10 * time.Second,
		MaxAttempts:       3,
		RetryBackoff:      10 * time.Second,

		ReconnectDelay: 5 * time.Second,

		BacktestBatchSize: 200,
		DefaultGameCount:  1000,
		MaxGameCount:      2000,
		PromotionMinScore: 50,

		Grid: ParameterGrid{
			EloWeight:         []float64{0.4, 0.5, 0.6, 0.7},
			MomentumWeight:    []float64{0.6, 0.5, 0.4, 0.3},
			MinGamesThreshold: []int{3, 5},
			StabilityPenalty:  []float64{0.1, 0.25, 0.5},
		},
	}
}

// Load builds the configuration from defaults plus environment overrides and
// validates it.
func Load() (*Config, error) {
	cfg := Default()

	if v := os.Getenv("PRED_W_ELO"); v != "" {
		w, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PRED_W_ELO %q: %w", v, err)
		}
		cfg.EloWeight = w
		cfg.MomentumWeight = 1 - w
	}
	if v := os.Getenv("PRED_DECAY_RATE"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PRED_DECAY_RATE %q: %w", v, err)
		}
		cfg.DecayRate = r
	}
	if v := os.Getenv("PRED_MIN_GAMES_FOR_DECAY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PRED_MIN_GAMES_FOR_DECAY %q: %w", v, err)
		}
		cfg.MinGamesForDecay = n
	}
	if v := os.Getenv("BACKTEST_GAME_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BACKTEST_GAME_COUNT %q: %w", v, err)
		}
		cfg.DefaultGameCount = n
	}
	if v := os.Getenv("PROMOTION_MIN_SCORE"); v != "" {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PROMOTION_MIN_SCORE %q: %w", v, err)
		}
		cfg.PromotionMinScore = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would silently corrupt predictions.
func (c *Config) Validate() error {
	if c.EloWeight < 0 || c.EloWeight > 1 {
		return fmt.Errorf("elo weight %v out of [0,1]", c.EloWeight)
	}
	if c.MomentumWeight < 0 || c.MomentumWeight > 1 {
		return fmt.Errorf("momentum weight %v out of [0,1]", c.MomentumWeight)
	}
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		return fmt.Errorf("decay rate %v out of (0,1]", c.DecayRate)
	}
	if c.MinGamesForDecay < 0 {
		return fmt.Errorf("min games for decay %d is negative", c.MinGamesForDecay)
	}
	if c.MaxDecayRounds <= 0 {
		return fmt.Errorf("max decay rounds %d must be positive", c.MaxDecayRounds)
	}
	if c.KBase <= 0 {
		return fmt.Errorf("k base %v must be positive", c.KBase)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts %d must be positive", c.MaxAttempts)
	}
	if c.DefaultGameCount <= 0 || c.DefaultGameCount > c.MaxGameCount {
		return fmt.Errorf("default game count %d out of (0,%d]", c.DefaultGameCount, c.MaxGameCount)
	}
	return nil
}
