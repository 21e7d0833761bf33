package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Feed framing. Data frames arrive as "NF#" followed by a JSON envelope
// whose data field is itself a JSON string.
const (
	framePrefix     = "NF#"
	handshakePrefix = "RG#"
)

// Round statuses the pipeline cares about. Everything else on the feed is
// betting chatter and is dropped.
const (
	StatusSettling = "settling"
	StatusSettled  = "settled"
)

type envelope struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type tokenEntry struct {
	Rank  int     `json:"s"`
	Value float64 `json:"p"`
}

type roundPayload struct {
	Type   string                `json:"type"`
	Status string                `json:"status"`
	RdID   string                `json:"rdId"`
	Token  map[string]tokenEntry `json:"token"`
	Time   struct {
		Now struct {
			Settle int64 `json:"settle"`
		} `json:"now"`
	} `json:"time"`
}

// TokenOutcome is one token's entry in a round frame. Before settlement the
// rank and value are zero placeholders.
type TokenOutcome struct {
	Symbol string
	Rank   int
	Value  float64
}

// RoundMessage is the normalized form of a relevant feed frame.
type RoundMessage struct {
	RoundID  string
	Status   string
	Tokens   []TokenOutcome
	SettleAt time.Time
}

// Symbols lists the round's token symbols, uppercased.
func (m *RoundMessage) Symbols() []string {
	out := make([]string, 0, len(m.Tokens))
	for _, t := range m.Tokens {
		out = append(out, t.Symbol)
	}
	return out
}

// ParseFrame decodes one raw websocket frame. ok is false for frames that
// are well formed but irrelevant (wrong prefix, wrong type, wrong status);
// an error means the frame claimed to be game data but could not be
// decoded.
func ParseFrame(raw []byte, now time.Time) (*RoundMessage, bool, error) {
	text := string(raw)
	if !strings.HasPrefix(text, framePrefix) {
		return nil, false, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(text[len(framePrefix):]), &env); err != nil {
		return nil, false, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != "gameData" {
		return nil, false, nil
	}

	var payload roundPayload
	if err := json.Unmarshal([]byte(env.Data), &payload); err != nil {
		return nil, false, fmt.Errorf("decode round payload: %w", err)
	}
	if payload.Type != "round" {
		return nil, false, nil
	}
	if payload.Status != StatusSettling && payload.Status != StatusSettled {
		return nil, false, nil
	}
	if payload.RdID == "" {
		return nil, false, fmt.Errorf("round frame without rdId")
	}

	msg := &RoundMessage{
		RoundID: payload.RdID,
		Status:  payload.Status,
		Tokens:  make([]TokenOutcome, 0, len(payload.Token)),
	}
	for sym, entry := range payload.Token {
		msg.Tokens = append(msg.Tokens, TokenOutcome{
			Symbol: strings.ToUpper(sym),
			Rank:   entry.Rank,
			Value:  entry.Value,
		})
	}

	if ms := payload.Time.Now.Settle; ms > 0 {
		msg.SettleAt = time.UnixMilli(ms).UTC()
	} else {
		msg.SettleAt = now.UTC()
	}
	return msg, true, nil
}
