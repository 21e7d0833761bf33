package pipeline

import (
	"fmt"
	"time"
)

// Queue names. Prediction stages and rating updates run on separate queues
// so a slow price API cannot starve Elo bookkeeping.
const (
	QueuePredictions = "prediction_jobs"
	QueueRatings     = "rating_jobs"
)

const (
	JobFetchInitialPrice = "fetch_initial_price"
	JobComputePrediction = "compute_prediction"
	JobUpdateRatings     = "update_ratings"
)

// Round lifecycle states mirrored into the round cache entry.
const (
	StateAwaitingFirstSample  = "awaiting_first_sample"
	StateAwaitingSecondSample = "awaiting_second_sample"
	StateComputed             = "computed"
	StateFailed               = "failed"
)

// Job is one unit of pipeline work. Attempt starts at 0 and counts
// republished retries; RunAt, when set, is the earliest execution time.
type Job struct {
	Type    string    `json:"type"`
	RoundID string    `json:"round_id"`
	Symbols []string  `json:"symbols,omitempty"`
	Attempt int       `json:"attempt"`
	RunAt   time.Time `json:"run_at,omitempty"`
}

// QueueFor maps a job type onto its queue.
func QueueFor(jobType string) (string, error) {
	switch jobType {
	case JobFetchInitialPrice, JobComputePrediction:
		return QueuePredictions, nil
	case JobUpdateRatings:
		return QueueRatings, nil
	default:
		return "", fmt.Errorf("unknown job type %q", jobType)
	}
}

// RoundState is the cached lifecycle entry of one live round.
type RoundState struct {
	RoundID   string    `json:"round_id"`
	State     string    `json:"state"`
	Symbols   []string  `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoundStateKey is the cache key of a round's lifecycle entry.
func RoundStateKey(roundID string) string {
	return "round_state:" + roundID
}
