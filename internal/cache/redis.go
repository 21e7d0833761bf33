package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLs of the hot-path keys. The cache is the authoritative read path for
// live predictions; the database only archives.
const (
	PriceP0TTL      = 60 * time.Second
	PredictionTTL   = 30 * time.Second
	FailedMarkerTTL = 300 * time.Second
	MomentumTTL     = 60 * time.Second
)

// Store wraps the redis client with JSON helpers and the key scheme shared
// by the worker, listener and API processes.
type Store struct {
	Client *redis.Client
}

func NewStore(opt *redis.Options) *Store {
	return &Store{Client: redis.NewClient(opt)}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.Client.Close()
}

// GetJSON loads key into dest, reporting found=false on a miss.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	b, err := s.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value under key with the given TTL.
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// Key scheme. Round-scoped keys embed the external round id.

func PriceP0Key(roundID string) string {
	return "price_p0:" + roundID
}

func PredictionKey(roundID string) string {
	return "prediction:" + roundID
}

func FailedMarkerKey(roundID string) string {
	return "prediction_failed:" + roundID
}

// MomentumKey caches a slope-score summary per symbol set; the key embeds
// the sorted symbol list so different sets do not collide.
func MomentumKey(symbols string) string {
	return "momentum:" + symbols
}

// InitialPrices is the stage-one snapshot cached while waiting for the
// second sample.
type InitialPrices struct {
	RoundID   string             `json:"round_id"`
	Prices    map[string]float64 `json:"prices"`
	SampledAt time.Time          `json:"sampled_at"`
}

// CachedPrediction is the live prediction served by the API.
type CachedPrediction struct {
	RoundID     string          `json:"round_id"`
	Predictions json.RawMessage `json:"predictions"`
	Degraded    bool            `json:"degraded"`
	ComputedAt  time.Time       `json:"computed_at"`
}

// MarkFailed flags a round whose prediction pipeline exhausted its retries.
func (s *Store) MarkFailed(ctx context.Context, roundID, reason string) error {
	return s.SetJSON(ctx, FailedMarkerKey(roundID),
		map[string]string{"reason": reason}, FailedMarkerTTL)
}

// Failed reports whether a round carries the failure marker.
func (s *Store) Failed(ctx context.Context, roundID string) (bool, error) {
	n, err := s.Client.Exists(ctx, FailedMarkerKey(roundID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", FailedMarkerKey(roundID), err)
	}
	return n > 0, nil
}

// Lock acquires a cluster-wide mutex via SET NX, returning a release
// function. ok is false when another process holds the lock.
func (s *Store) Lock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error) {
	key := "lock:" + name
	ok, err = s.Client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Client.Del(ctx, key).Err()
	}, true, nil
}
