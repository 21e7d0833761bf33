package events

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"tokenrank/pkg/config"
)

// Queue is the durable queue downstream consumers subscribe to.
const Queue = "game_events"

const (
	TypeRoundSettled      = "round_settled"
	TypePredictionUpdated = "prediction_updated"
	TypeRatingUpdated     = "rating_updated"
)

// Event is the wire form of one outbound notification.
type Event struct {
	Type    string          `json:"type"`
	RoundID string          `json:"round_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// Publisher emits lifecycle events. Event delivery is best effort: a publish
// failure is logged and swallowed so it never blocks the pipeline.
type Publisher struct {
	pub *config.Publisher
}

func NewPublisher(pub *config.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

func (p *Publisher) emit(ctx context.Context, eventType, roundID string, payload interface{}) {
	if p == nil || p.pub == nil {
		return
	}

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.WithError(err).WithField("event", eventType).Error("event payload encode failed")
			return
		}
		raw = b
	}

	evt := Event{
		Type:    eventType,
		RoundID: roundID,
		Payload: raw,
		At:      time.Now().UTC(),
	}
	if err := p.pub.Publish(ctx, Queue, evt); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"event":    eventType,
			"round_id": roundID,
		}).Error("event publish failed")
	}
}

func (p *Publisher) RoundSettled(ctx context.Context, roundID string, payload interface{}) {
	p.emit(ctx, TypeRoundSettled, roundID, payload)
}

func (p *Publisher) PredictionUpdated(ctx context.Context, roundID string, payload interface{}) {
	p.emit(ctx, TypePredictionUpdated, roundID, payload)
}

func (p *Publisher) RatingUpdated(ctx context.Context, roundID string, payload interface{}) {
	p.emit(ctx, TypeRatingUpdated, roundID, payload)
}
